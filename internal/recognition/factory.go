package recognition

import (
	"net/http"

	"floravision/internal/config"
	"floravision/internal/services"
)

// NewDetector builds the backend selected by [detector] backend.
func NewDetector(cfg *config.Config) (Detector, error) {
	switch cfg.Detector.Backend {
	case config.BackendHTTP, "":
		return NewHTTPDetector(cfg.Detector.Endpoint, WithTimeout(cfg.DetectorTimeout()))
	case config.BackendOllama:
		return NewOllamaDetector(cfg.Detector.Endpoint, cfg.Detector.Model, &http.Client{Timeout: cfg.DetectorTimeout()})
	case config.BackendLLM:
		return NewLLMDetector(cfg.Detector.Endpoint, cfg.Detector.Model, cfg.Detector.APIKey, &http.Client{Timeout: cfg.DetectorTimeout()})
	}
	return nil, services.Wrap(services.ErrConfiguration, "recognition", "new detector",
		"unsupported backend "+cfg.Detector.Backend, nil)
}
