package recognition

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"floravision/internal/logging"
	"floravision/internal/photo"
	"floravision/internal/services"
)

const unknownLabel = "unknown"

// Adapter normalizes detector output and tracks whether a model is loaded.
type Adapter struct {
	detector Detector
	logger   *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	weights string
}

// NewAdapter wraps detector.
func NewAdapter(detector Detector, logger *slog.Logger) *Adapter {
	return &Adapter{
		detector: detector,
		logger:   logging.NewComponentLogger(logger, "recognition"),
	}
}

// Load checks the weights file, when one is given, and asks the detector to
// load its model.
func (a *Adapter) Load(ctx context.Context, weightsPath string) error {
	weightsPath = strings.TrimSpace(weightsPath)
	if weightsPath != "" {
		info, err := os.Stat(weightsPath)
		if err != nil {
			return services.Wrap(services.ErrFileAccess, "recognition", "load", "weights "+weightsPath, err)
		}
		if info.IsDir() {
			return services.Wrap(services.ErrFileAccess, "recognition", "load", "weights path is a directory", nil)
		}
	}
	if a.detector == nil {
		return services.Wrap(services.ErrModelNotLoaded, "recognition", "load", "no detector configured", nil)
	}

	started := time.Now()
	if err := a.detector.Load(ctx, weightsPath); err != nil {
		a.setLoaded(false, "")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrModelNotLoaded, "recognition", "load", "detector load", err)
	}
	a.setLoaded(true, weightsPath)
	a.logger.Info("detector ready",
		logging.String(logging.FieldEventType, "detector_loaded"),
		logging.String("weights", weightsPath),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// Loaded reports whether Load has succeeded.
func (a *Adapter) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Weights returns the weights path of the last successful Load.
func (a *Adapter) Weights() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.weights
}

func (a *Adapter) setLoaded(loaded bool, weights string) {
	a.mu.Lock()
	a.loaded = loaded
	a.weights = weights
	a.mu.Unlock()
}

// Recognize runs the detector on path and returns normalized detections
// sorted by descending confidence.
func (a *Adapter) Recognize(ctx context.Context, path string, conf, iou float64) ([]photo.Detection, error) {
	if !a.Loaded() {
		return nil, services.Wrap(services.ErrModelNotLoaded, "recognition", "recognize", "model not loaded", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrFileAccess, "recognition", "recognize", path, err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrFileAccess, "recognition", "recognize", path+" is a directory", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := a.detector.Detect(ctx, path, conf, iou)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, services.ErrFileAccess) || errors.Is(err, services.ErrInference) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrInference, "recognition", "detect", path, err)
	}

	detections := Normalize(raw)
	a.logger.Debug("recognition finished",
		logging.String(logging.FieldImagePath, path),
		logging.Int("raw", len(raw)),
		logging.Int("kept", len(detections)),
	)
	return detections, nil
}

// Normalize converts raw detections, dropping boxes without positive extent or
// with coordinates outside the int32 range, dropping non-finite confidences, clamping the rest into [0,1], and sorting by
// descending confidence. Equal confidences keep their input order.
func Normalize(raw []RawDetection) []photo.Detection {
	out := make([]photo.Detection, 0, len(raw))
	for _, r := range raw {
		if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) {
			continue
		}
		box, ok := toBox(r.BBox)
		if !ok || !box.Valid() {
			continue
		}
		label := strings.TrimSpace(r.Name)
		if label == "" {
			label = unknownLabel
		}
		out = append(out, photo.Detection{
			Label:      label,
			Confidence: min(max(r.Confidence, 0), 1),
			BBox:       box,
		})
	}
	slices.SortStableFunc(out, func(a, b photo.Detection) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}

func toBox(raw [4]float64) (photo.BBox, bool) {
	var c [4]int
	for i, v := range raw {
		r := math.Round(v)
		if math.IsNaN(r) || r < math.MinInt32 || r > math.MaxInt32 {
			return photo.BBox{}, false
		}
		c[i] = int(r)
	}
	return photo.BBox{X1: c[0], Y1: c[1], X2: c[2], Y2: c[3]}, true
}
