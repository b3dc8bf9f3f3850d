package testsupport

import (
	"path/filepath"
	"testing"

	"floravision/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a per-test temp directory. Geocoding
// and notifications are disabled so tests never reach the network unless an
// option points them at a test server.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Detector.Endpoint = "http://127.0.0.1:0/api/detect"
	cfgVal.Geocoding.Enabled = false
	cfgVal.Geocoding.BackoffMillis = 0
	cfgVal.Cache.Path = filepath.Join(base, "data", "cache.db")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDetectorEndpoint points the HTTP detector at endpoint.
func WithDetectorEndpoint(endpoint string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Detector.Backend = config.BackendHTTP
		b.cfg.Detector.Endpoint = endpoint
	}
}

// WithGeocoder enables geocoding against baseURL.
func WithGeocoder(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Geocoding.Enabled = true
		b.cfg.Geocoding.BaseURL = baseURL
		b.cfg.Geocoding.TimeoutSeconds = 2
		b.cfg.Geocoding.MaxRetries = 1
	}
}

// WithCacheLimit bounds the enrichment cache.
func WithCacheLimit(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.MaxEntries = n
	}
}

// WithWeights writes a placeholder weights file and records it on the config.
func WithWeights() ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "models", "best.pt")
		WriteFile(b.t, path, 64)
		b.cfg.Detector.WeightsPath = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
