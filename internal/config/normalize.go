package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDetector(); err != nil {
		return err
	}
	c.normalizeGeocoding()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv(envAPIToken); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeDetector() error {
	c.Detector.Backend = strings.ToLower(strings.TrimSpace(c.Detector.Backend))
	if c.Detector.Backend == "" {
		c.Detector.Backend = defaultDetectorBackend
	}
	c.Detector.Endpoint = strings.TrimSpace(c.Detector.Endpoint)
	if c.Detector.Endpoint == "" {
		if value, ok := os.LookupEnv(envDetectorEndpoint); ok {
			c.Detector.Endpoint = strings.TrimSpace(value)
		}
	}
	if c.Detector.Endpoint == "" {
		switch c.Detector.Backend {
		case BackendOllama:
			c.Detector.Endpoint = defaultOllamaEndpoint
		case BackendLLM:
			c.Detector.Endpoint = defaultLLMEndpoint
		default:
			c.Detector.Endpoint = defaultDetectorEndpoint
		}
	}
	c.Detector.Model = strings.TrimSpace(c.Detector.Model)
	c.Detector.APIKey = strings.TrimSpace(c.Detector.APIKey)
	if c.Detector.APIKey == "" {
		if value, ok := os.LookupEnv(envDetectorAPIKey); ok {
			c.Detector.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Detector.Model == "" && c.Detector.Backend == BackendOllama {
		c.Detector.Model = defaultOllamaModel
	}
	var err error
	if c.Detector.WeightsPath, err = expandPath(strings.TrimSpace(c.Detector.WeightsPath)); err != nil {
		return fmt.Errorf("detector.weights_path: %w", err)
	}
	if c.Detector.TimeoutSeconds == 0 {
		c.Detector.TimeoutSeconds = defaultDetectorTimeout
	}
	return nil
}

func (c *Config) normalizeGeocoding() {
	c.Geocoding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Geocoding.BaseURL), "/")
	if c.Geocoding.BaseURL == "" {
		c.Geocoding.BaseURL = defaultGeocodeBaseURL
	}
	c.Geocoding.UserAgent = strings.TrimSpace(c.Geocoding.UserAgent)
	if c.Geocoding.UserAgent == "" {
		c.Geocoding.UserAgent = defaultGeocodeUserAgent
	}
	c.Geocoding.Email = strings.TrimSpace(c.Geocoding.Email)
	if c.Geocoding.Email == "" {
		if value, ok := os.LookupEnv(envGeocodeEmail); ok {
			c.Geocoding.Email = strings.TrimSpace(value)
		}
	}
	c.Geocoding.Language = strings.TrimSpace(c.Geocoding.Language)
	if c.Geocoding.Language == "" {
		c.Geocoding.Language = defaultGeocodeLanguage
	}
}

func (c *Config) normalizeCache() error {
	path := strings.TrimSpace(c.Cache.Path)
	if path == "" {
		path = filepath.Join(c.Paths.DataDir, defaultCacheFileName)
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.Path = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
