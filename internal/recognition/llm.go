package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"strings"

	"floravision/internal/services"
	"floravision/internal/services/llm"
)

const llmSystemPrompt = "You are a botanist who locates flowers in photos. You must respond with JSON only."

// LLMDetector asks an OpenAI-compatible vision model for flower boxes.
type LLMDetector struct {
	client *llm.Client
	model  string
}

// NewLLMDetector builds a detector for the chat completion endpoint.
func NewLLMDetector(endpoint, model, apiKey string, httpClient *http.Client) (*LLMDetector, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "llm detector", "model required", nil)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "llm detector", "api key required", nil)
	}
	var opts []llm.Option
	if httpClient != nil {
		opts = append(opts, llm.WithHTTPClient(httpClient))
	}
	client := llm.NewClient(llm.Config{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Title:    "floravision",
	}, opts...)
	return &LLMDetector{client: client, model: model}, nil
}

// Load sends the detection prompt with a blank 8x8 image and requires a
// reply in the detections format, which proves the key works and the model
// accepts images.
func (d *LLMDetector) Load(ctx context.Context, _ string) error {
	var buf bytes.Buffer
	blank := image.NewGray(image.Rect(0, 0, 8, 8))
	if err := png.Encode(&buf, blank); err != nil {
		return fmt.Errorf("encode probe image: %w", err)
	}
	content, err := d.client.Ask(ctx, llm.Request{
		System:   llmSystemPrompt,
		Prompt:   fmt.Sprintf(detectionPrompt, 0.5),
		ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("check model %s: %w", d.model, err)
	}
	if _, err := parseVisionReply(content, 8, 8, 0.5); err != nil {
		return fmt.Errorf("check model %s: %w", d.model, err)
	}
	return nil
}

// Detect sends the image as a data URL. Boxes come back as fractions and are
// scaled to pixels; iou is not used.
func (d *LLMDetector) Detect(ctx context.Context, imagePath string, conf, _ float64) ([]RawDetection, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, services.Wrap(services.ErrFileAccess, "recognition", "read image", imagePath, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "decode image", imagePath, err)
	}
	dataURL, err := encodeDataURL(imagePath)
	if err != nil {
		return nil, err
	}
	content, err := d.client.Ask(ctx, llm.Request{
		System:   llmSystemPrompt,
		Prompt:   fmt.Sprintf(detectionPrompt, conf),
		ImageURL: dataURL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "llm describe", d.model, err)
	}
	return parseVisionReply(content, cfg.Width, cfg.Height, conf)
}
