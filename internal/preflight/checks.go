package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"floravision/internal/config"
	"floravision/internal/recognition"
	"floravision/internal/services/nominatim"
)

// probePoint sits inside Shenzhen and always has a Nominatim answer.
var probePoint = struct{ lat, lon float64 }{22.5431, 114.0579}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWeights verifies the model weights file is a readable regular file.
func CheckWeights(path string) Result {
	const name = "Model weights"
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

// CheckDetector asks the detector backend to load, with a 10-second budget.
func CheckDetector(ctx context.Context, backend string, det recognition.Detector, weights string) Result {
	name := "Detector (" + backend + ")"
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := det.Load(checkCtx, weights); err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckGeocoding performs a single reverse lookup against the configured
// Nominatim instance.
func CheckGeocoding(ctx context.Context, cfg *config.Config) Result {
	const name = "Geocoding"
	if !cfg.Geocoding.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled (local region table only)"}
	}

	client, err := nominatim.New(cfg.Geocoding.BaseURL, cfg.Geocoding.UserAgent, nominatim.WithEmail(cfg.Geocoding.Email))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	timeout := cfg.GeocodeTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	components, err := client.Reverse(checkCtx, probePoint.lat, probePoint.lon, cfg.Geocoding.Language)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%d address components)", len(components))}
}

// CheckSnapshot reports whether the snapshot lock is free. A held lock is not
// a failure: a running "floravision serve" owns it.
func CheckSnapshot(cfg *config.Config) Result {
	const name = "Snapshot"
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", cfg.LockPath(), err)}
	}
	if !ok {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (in use by another process)", cfg.Cache.Path)}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", cfg.Cache.Path)}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
