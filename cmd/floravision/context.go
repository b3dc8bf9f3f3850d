package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"floravision/internal/config"
	"floravision/internal/enrichment"
	"floravision/internal/geocode"
	"floravision/internal/logging"
	"floravision/internal/notifications"
	"floravision/internal/recognition"
	"floravision/internal/services/nominatim"
	"floravision/internal/store"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, levelFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && strings.TrimSpace(*c.levelFlag) != "" {
			cfg.Logging.Level = strings.TrimSpace(*c.levelFlag)
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// runtime is the wired enrichment stack for one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	adapter  *recognition.Adapter
	resolver *geocode.Resolver
	store    *store.Store
	enricher *enrichment.Enricher
	notifier notifications.Service
}

type runtimeOptions struct {
	// loadDetector asks the backend to load; a failure is logged and every
	// recognition then reports the model as not loaded.
	loadDetector bool
	// snapshot opens the SQLite snapshot when persistence is enabled.
	snapshot bool
}

func (c *commandContext) openRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		resolver: newResolver(cfg, logger),
		notifier: notifications.NewService(cfg),
	}

	det, err := recognition.NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	rt.adapter = recognition.NewAdapter(det, logger)
	if opts.loadDetector {
		if err := rt.adapter.Load(ctx, cfg.Detector.WeightsPath); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			logging.WarnWithContext(logger, "detector unavailable", "detector_load_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'floravision doctor' to check the detector backend"),
				logging.String(logging.FieldImpact, "images are enriched without flower detections"),
			)
		}
	}

	enrichOpts := enrichment.Options{
		Confidence: cfg.Detector.ConfidenceThreshold,
		IOU:        cfg.Detector.IOUThreshold,
		MaxEntries: cfg.Cache.MaxEntries,
		Logger:     logger,
	}
	if opts.snapshot && cfg.Cache.Persist {
		st, err := store.Open(cfg)
		switch {
		case err == nil:
			rt.store = st
			enrichOpts.Snapshot = st
		case errors.Is(err, store.ErrLocked):
			logging.WarnWithContext(logger, "snapshot in use", "snapshot_locked",
				logging.String("path", cfg.Cache.Path),
				logging.String(logging.FieldErrorHint, "stop 'floravision serve' or use its HTTP API"),
				logging.String(logging.FieldImpact, "results of this run are not persisted"),
			)
		default:
			return nil, err
		}
	}
	rt.enricher = enrichment.New(rt.adapter, nil, rt.resolver, enrichOpts)
	return rt, nil
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.enricher != nil {
		r.enricher.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("close snapshot", logging.Error(err))
		}
	}
}

func newResolver(cfg *config.Config, logger *slog.Logger) *geocode.Resolver {
	opts := geocode.Options{
		Enabled:    cfg.Geocoding.Enabled,
		Language:   cfg.Geocoding.Language,
		Timeout:    cfg.GeocodeTimeout(),
		MaxRetries: cfg.Geocoding.MaxRetries,
		Backoff:    cfg.GeocodeBackoff(),
	}
	var provider geocode.Provider
	if cfg.Geocoding.Enabled {
		client, err := nominatim.New(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent,
			nominatim.WithEmail(cfg.Geocoding.Email),
			nominatim.WithHTTPClient(&http.Client{Timeout: cfg.GeocodeTimeout()}),
		)
		if err != nil {
			logging.WarnWithContext(logger, "geocoder disabled", "geocoder_config_invalid",
				logging.Error(err),
				logging.String(logging.FieldImpact, "addresses come from the local region table"),
			)
		} else {
			provider = client
		}
	}
	return geocode.NewResolver(provider, opts, geocode.WithLogger(logger))
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if errors.Is(err, store.ErrLocked) {
		return nil, fmt.Errorf("%w; stop 'floravision serve' first", err)
	}
	return st, err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
