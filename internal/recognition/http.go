package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"floravision/internal/services"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxErrorBody       = 2048
)

// HTTPDetector posts images to a detection web service.
//
// Request:  {"image": "data:<mime>;base64,...", "conf_thres": 0.25, "iou_thres": 0.45}
// Response: {"success": true, "results": [{"name", "confidence", "bbox": [x1,y1,x2,y2]}]}
type HTTPDetector struct {
	endpoint   string
	httpClient *http.Client
}

// HTTPOption customizes an HTTPDetector.
type HTTPOption func(*HTTPDetector)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(d *HTTPDetector) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithTimeout sets the overall request timeout of the default client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(d *HTTPDetector) {
		if timeout > 0 {
			d.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewHTTPDetector constructs a detector for endpoint.
func NewHTTPDetector(endpoint string, opts ...HTTPOption) (*HTTPDetector, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "recognition", "http detector", "endpoint required", nil)
	}
	d := &HTTPDetector{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

type detectRequest struct {
	Image     string  `json:"image"`
	ConfThres float64 `json:"conf_thres"`
	IOUThres  float64 `json:"iou_thres"`
}

type detectResponse struct {
	Success bool           `json:"success"`
	Results []RawDetection `json:"results"`
	Error   string         `json:"error"`
}

// Load probes the service. The service owns its weights, so any HTTP answer
// (including 405 for the GET) means the model endpoint is reachable.
func (d *HTTPDetector) Load(ctx context.Context, _ string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", d.endpoint, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: http %d", d.endpoint, resp.StatusCode)
	}
	return nil
}

// Detect uploads the image as a data URL and decodes the detections.
func (d *HTTPDetector) Detect(ctx context.Context, imagePath string, conf, iou float64) ([]RawDetection, error) {
	dataURL, err := encodeDataURL(imagePath)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(detectRequest{Image: dataURL, ConfThres: conf, IOUThres: iou})
	if err != nil {
		return nil, fmt.Errorf("encode detect request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", "request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", "read response", err)
	}
	var decoded detectResponse
	decodeErr := json.Unmarshal(payload, &decoded)
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(decoded.Error)
		if decodeErr != nil || msg == "" {
			msg = truncate(string(payload), maxErrorBody)
		}
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", fmt.Sprintf("http %d: %s", resp.StatusCode, msg), nil)
	}
	if decodeErr != nil {
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", "decode response", decodeErr)
	}
	if !decoded.Success {
		msg := strings.TrimSpace(decoded.Error)
		if msg == "" {
			msg = "service reported failure"
		}
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", msg, nil)
	}
	return decoded.Results, nil
}

func encodeDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", services.Wrap(services.ErrFileAccess, "recognition", "read image", path, err)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrFileAccess, "recognition", "read image", path, errors.New("empty file"))
	}
	return "data:" + mimeType(path, data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func mimeType(path string, data []byte) string {
	if detected := http.DetectContentType(data); strings.HasPrefix(detected, "image/") {
		return detected
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(byExt, "image/") {
		return byExt
	}
	return "application/octet-stream"
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
