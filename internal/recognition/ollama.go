package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"

	"floravision/internal/services"
)

const detectionPrompt = `You are a flower detector. Find every flower in the image.
Reply with JSON only, in the form
{"detections":[{"name":"<flower species>","confidence":<0..1>,"bbox":[x1,y1,x2,y2]}]}
where bbox values are fractions of the image width and height in [0,1].
Ignore detections below a confidence of %.2f. Reply {"detections":[]} when no flower is visible.`

// OllamaDetector asks a local vision model for flower boxes.
type OllamaDetector struct {
	client *api.Client
	model  string
}

// NewOllamaDetector builds a detector for the Ollama server at endpoint.
// Any path on endpoint is ignored.
func NewOllamaDetector(endpoint, model string, httpClient *http.Client) (*OllamaDetector, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "ollama detector", "model required", nil)
	}
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "ollama detector", "invalid endpoint "+endpoint, err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &OllamaDetector{client: api.NewClient(base, httpClient), model: model}, nil
}

// Load confirms the model is present on the server.
func (d *OllamaDetector) Load(ctx context.Context, _ string) error {
	if _, err := d.client.Show(ctx, &api.ShowRequest{Model: d.model}); err != nil {
		return fmt.Errorf("show model %s: %w", d.model, err)
	}
	return nil
}

type visionReply struct {
	Detections []struct {
		Name       string    `json:"name"`
		Confidence float64   `json:"confidence"`
		BBox       []float64 `json:"bbox"`
	} `json:"detections"`
}

// Detect sends the image to the model and scales its fractional boxes to
// pixels. The iou threshold is not used by vision models.
func (d *OllamaDetector) Detect(ctx context.Context, imagePath string, conf, _ float64) ([]RawDetection, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrFileAccess, "recognition", "read image", imagePath, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "decode image", imagePath, err)
	}

	stream := false
	req := &api.ChatRequest{
		Model: d.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: fmt.Sprintf(detectionPrompt, conf),
			Images:  []api.ImageData{api.ImageData(data)},
		}},
		Stream:  &stream,
		Format:  json.RawMessage(`"json"`),
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err = d.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "ollama chat", d.model, err)
	}
	return parseVisionReply(content.String(), cfg.Width, cfg.Height, conf)
}

func parseVisionReply(raw string, width, height int, conf float64) ([]RawDetection, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var reply visionReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "parse model reply", truncate(raw, 200), err)
	}
	out := make([]RawDetection, 0, len(reply.Detections))
	for _, det := range reply.Detections {
		if len(det.BBox) != 4 || det.Confidence < conf {
			continue
		}
		w, h := float64(width), float64(height)
		out = append(out, RawDetection{
			Name:       det.Name,
			Confidence: det.Confidence,
			BBox:       [4]float64{det.BBox[0] * w, det.BBox[1] * h, det.BBox[2] * w, det.BBox[3] * h},
		})
	}
	return out, nil
}
