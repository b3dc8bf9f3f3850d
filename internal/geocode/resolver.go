package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"floravision/internal/geo"
	"floravision/internal/logging"
	"floravision/internal/services"
	"floravision/internal/services/nominatim"
)

// Provider performs one remote reverse lookup.
type Provider interface {
	Reverse(ctx context.Context, lat, lon float64, language string) (map[string]string, error)
}

// Options controls the remote attempt policy.
type Options struct {
	Enabled    bool
	Language   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:    true,
		Language:   "zh-CN",
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// Resolver turns coordinates into addresses. It is safe for concurrent use.
type Resolver struct {
	provider Provider
	matcher  *geo.Matcher
	opts     Options
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatcher overrides the offline region table.
func WithMatcher(m *geo.Matcher) Option {
	return func(r *Resolver) {
		if m != nil {
			r.matcher = m
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logging.NewComponentLogger(logger, "geocode")
	}
}

// WithSleeper overrides how backoff waits are performed (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Resolver) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewResolver builds a resolver. A nil provider behaves like a disabled remote.
func NewResolver(provider Provider, opts Options, options ...Option) *Resolver {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	r := &Resolver{
		provider: provider,
		matcher:  geo.DefaultMatcher(),
		opts:     opts,
		logger:   logging.NewComponentLogger(nil, "geocode"),
		sleep:    sleepContext,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// ResolveChecked validates the coordinates before resolving. Invalid input is
// the only error it returns.
func (r *Resolver) ResolveChecked(ctx context.Context, lat, lon float64) (Address, error) {
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return Address{}, err
	}
	return r.Resolve(ctx, lat, lon), nil
}

// Resolve tries the remote provider and falls back to the local matcher.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) Address {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.WithContext(ctx, r.logger)
	if r.remoteEnabled() {
		components, err := r.resolveRemote(ctx, lat, lon)
		if err == nil {
			return remoteAddress(components)
		}
		if errors.Is(err, nominatim.ErrNoResult) {
			logger.Debug("remote geocoder returned no result; using local matcher")
		} else if ctx.Err() == nil {
			logging.WarnWithContext(logger, "remote geocoding failed; using local matcher", "geocode_fallback",
				logging.String("kind", services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "address approximated from local region table"),
				logging.String(logging.FieldErrorHint, "check network access or geocoding.base_url"),
			)
		}
	}
	return localAddress(r.matcher.Match(lat, lon))
}

func (r *Resolver) remoteEnabled() bool {
	return r.opts.Enabled && r.provider != nil
}

func (r *Resolver) resolveRemote(ctx context.Context, lat, lon float64) (map[string]string, error) {
	attempts := r.opts.MaxRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		components, err := r.attempt(ctx, lat, lon)
		if err == nil {
			return components, nil
		}
		if !retryable(ctx, err) {
			return nil, err
		}
		lastErr = err
		r.logger.Debug("geocode attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", attempts),
			logging.Error(err),
		)
		if attempt < attempts {
			if err := r.sleep(ctx, r.opts.Backoff); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (r *Resolver) attempt(ctx context.Context, lat, lon float64) (map[string]string, error) {
	attemptCtx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	components, err := r.provider.Reverse(attemptCtx, lat, lon, r.opts.Language)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrGeocodeTimeout) {
			err = services.Wrap(services.ErrGeocodeTimeout, "geocode", "reverse", "attempt timed out", err)
		}
		return nil, err
	}
	if len(components) == 0 {
		return nil, nominatim.ErrNoResult
	}
	return components, nil
}

// retryable limits retries to timeouts and service errors while the caller
// is still interested.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, services.ErrGeocodeTimeout) || errors.Is(err, services.ErrGeocodeService)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
