package config

const (
	defaultConfigPath        = "~/.config/floravision/config.toml"
	projectConfigName        = "floravision.toml"
	defaultDataDir           = "~/.local/share/floravision"
	defaultLogDir            = "~/.local/share/floravision/logs"
	defaultAPIBind           = "127.0.0.1:7487"
	defaultDetectorBackend   = BackendHTTP
	defaultDetectorEndpoint  = "http://127.0.0.1:5000/api/detect"
	defaultOllamaEndpoint    = "http://127.0.0.1:11434"
	defaultOllamaModel       = "qwen2.5vl:7b"
	defaultLLMEndpoint       = "https://openrouter.ai/api/v1/chat/completions"
	defaultConfidence        = 0.25
	defaultIOU               = 0.45
	defaultDetectorTimeout   = 60
	defaultGeocodeBaseURL    = "https://nominatim.openstreetmap.org"
	defaultGeocodeUserAgent  = "floravision/1.0"
	defaultGeocodeLanguage   = "zh-CN"
	defaultGeocodeTimeout    = 10
	defaultGeocodeMaxRetries = 3
	defaultGeocodeBackoffMS  = 1000
	defaultCacheFileName     = "cache.db"
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	envDetectorEndpoint      = "FLORAVISION_DETECTOR_ENDPOINT"
	envDetectorAPIKey        = "FLORAVISION_DETECTOR_API_KEY"
	envGeocodeEmail          = "NOMINATIM_EMAIL"
	envNtfyTopic             = "FLORAVISION_NTFY_TOPIC"
	envAPIToken              = "FLORAVISION_API_TOKEN"
	BackendHTTP              = "http"
	BackendOllama            = "ollama"
	BackendLLM               = "llm"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Detector: Detector{
			Backend:             defaultDetectorBackend,
			ConfidenceThreshold: defaultConfidence,
			IOUThreshold:        defaultIOU,
			TimeoutSeconds:      defaultDetectorTimeout,
		},
		Geocoding: Geocoding{
			Enabled:        true,
			BaseURL:        defaultGeocodeBaseURL,
			UserAgent:      defaultGeocodeUserAgent,
			Language:       defaultGeocodeLanguage,
			TimeoutSeconds: defaultGeocodeTimeout,
			MaxRetries:     defaultGeocodeMaxRetries,
			BackoffMillis:  defaultGeocodeBackoffMS,
		},
		Cache: Cache{
			Persist: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Batch:          true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
