package config

import (
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable. The first invalid field is
// reported by its TOML key.
func (c *Config) Validate() error {
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateGeocoding(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDetector() error {
	switch c.Detector.Backend {
	case BackendHTTP, BackendOllama, BackendLLM:
	default:
		return fmt.Errorf("detector.backend: unsupported value %q (want %q, %q or %q)", c.Detector.Backend, BackendHTTP, BackendOllama, BackendLLM)
	}
	if _, err := url.ParseRequestURI(c.Detector.Endpoint); err != nil {
		return fmt.Errorf("detector.endpoint: %w", err)
	}
	if c.Detector.Backend == BackendOllama && c.Detector.Model == "" {
		return errors.New("detector.model is required for the ollama backend")
	}
	if c.Detector.Backend == BackendLLM {
		if c.Detector.Model == "" {
			return errors.New("detector.model is required for the llm backend")
		}
		if c.Detector.APIKey == "" {
			return fmt.Errorf("detector.api_key is required for the llm backend (or set %s)", envDetectorAPIKey)
		}
	}
	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return errors.New("detector.confidence_threshold must be between 0 and 1")
	}
	if c.Detector.IOUThreshold < 0 || c.Detector.IOUThreshold > 1 {
		return errors.New("detector.iou_threshold must be between 0 and 1")
	}
	if c.Detector.TimeoutSeconds < 0 {
		return errors.New("detector.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateGeocoding() error {
	if _, err := language.Parse(c.Geocoding.Language); err != nil {
		return fmt.Errorf("geocoding.language: invalid tag %q: %w", c.Geocoding.Language, err)
	}
	if !c.Geocoding.Enabled {
		return nil
	}
	if _, err := url.ParseRequestURI(c.Geocoding.BaseURL); err != nil {
		return fmt.Errorf("geocoding.base_url: %w", err)
	}
	if c.Geocoding.TimeoutSeconds <= 0 {
		return errors.New("geocoding.timeout_seconds must be positive")
	}
	if c.Geocoding.MaxRetries < 1 {
		return errors.New("geocoding.max_retries must be at least 1")
	}
	if c.Geocoding.BackoffMillis < 0 {
		return errors.New("geocoding.backoff_millis must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxEntries < 0 {
		return errors.New("cache.max_entries must not be negative (0 disables the bound)")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
