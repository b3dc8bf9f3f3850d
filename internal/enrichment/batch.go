package enrichment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"floravision/internal/logging"
	"floravision/internal/photo"
	"floravision/internal/scheduler"
	"floravision/internal/services"
)

// ItemFailure records why one image of a batch is incomplete.
type ItemFailure struct {
	Path     string `json:"path"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
	Err      error  `json:"-"`
}

// BatchReport aggregates a batch run. Every count is per input, so a path
// listed twice counts twice. TotalProcessed includes failed inputs.
// AddressResolvedCount only counts inputs that end the run with at least one
// address component; a local fallback outside every known region does not
// count.
type BatchReport struct {
	TotalProcessed       int           `json:"total_processed"`
	WithLocationCount    int           `json:"with_location_count"`
	AddressResolvedCount int           `json:"address_resolved_count"`
	Failures             []ItemFailure `json:"failures,omitempty"`
	Elapsed              time.Duration `json:"elapsed"`
}

// StartBatch launches a batch task over paths and returns immediately,
// superseding any batch already running.
func (e *Enricher) StartBatch(paths []string) (*scheduler.Handle, error) {
	return e.startBatch(e.baseCtx, paths)
}

func (e *Enricher) startBatch(ctx context.Context, paths []string) (*scheduler.Handle, error) {
	cleaned := make([]string, len(paths))
	for i, p := range paths {
		cleaned[i] = filepath.Clean(p)
	}
	return e.sched.Start(ctx, scheduler.BatchTask(scheduler.BatchJob{
		Paths:      cleaned,
		Confidence: e.opts.Confidence,
		IOU:        e.opts.IOU,
	}))
}

// Batch enriches paths sequentially, then resolves addresses for every image
// whose location is still pending, and returns aggregate counts. Per-image
// failures are reported in the result and never abort the run.
func (e *Enricher) Batch(ctx context.Context, paths []string) (BatchReport, error) {
	h, err := e.startBatch(ctx, paths)
	if err != nil {
		return BatchReport{}, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		h.Cancel()
		<-h.Done()
	}
	result, err := h.Wait()
	report, _ := result.(BatchReport)
	return report, err
}

func (e *Enricher) runBatch(ctx context.Context, job scheduler.BatchJob, progress scheduler.Reporter) (any, error) {
	started := time.Now()
	logger := logging.WithContext(ctx, e.logger)
	report := BatchReport{}
	var pending []scheduler.GeocodeItem
	total := len(job.Paths)

	for i, path := range job.Paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		progress.Progress(i+1, total, fmt.Sprintf("processing %d/%d", i+1, total))

		rec, failures, err := e.batchItem(ctx, path, job.Confidence, job.IOU)
		if err != nil {
			return report, err
		}
		report.Failures = append(report.Failures, failures...)

		report.TotalProcessed++
		if rec.HasLocation() {
			report.WithLocationCount++
		}
		if rec.Location.Pending() {
			lat, lon, _ := rec.Location.Coordinates()
			pending = append(pending, scheduler.GeocodeItem{Path: path, Lat: lat, Lon: lon})
		}
	}

	if len(pending) > 0 {
		var h *scheduler.Handle
		var startErr error
		if err := e.do(ctx, func() { h, startErr = e.startGeocode(pending) }); err != nil {
			return report, err
		}
		if startErr != nil {
			logging.WarnWithContext(logger, "geocoding pass not started", "batch_geocode_failed",
				logging.Error(startErr),
				logging.String(logging.FieldImpact, "addresses stay pending"),
			)
		} else if err := e.awaitGeocode(ctx, h); err != nil {
			return report, err
		}
	}

	if err := e.do(ctx, func() {
		for _, path := range job.Paths {
			if rec, ok := e.cache.Peek(path); ok && hasAddress(rec.Location) {
				report.AddressResolvedCount++
			}
		}
	}); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(started)
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_completed"),
		logging.Int("processed", report.TotalProcessed),
		logging.Int("with_location", report.WithLocationCount),
		logging.Int("address_resolved", report.AddressResolvedCount),
		logging.Int("failed", len(report.Failures)),
		logging.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// enrichOne runs recognition and metadata extraction for one uncached image.
// Only cancellation is returned as an error.
func (e *Enricher) enrichOne(ctx context.Context, path string, conf, iou float64) (*photo.Record, []ItemFailure, error) {
	var failures []ItemFailure
	var detections []photo.Detection
	var recErr error
	if e.recognizer == nil {
		recErr = services.Wrap(services.ErrModelNotLoaded, "enrichment", "recognize", "no recognizer configured", nil)
	} else {
		detections, recErr = e.recognizer.Recognize(ctx, path, conf, iou)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if recErr != nil {
		failures = append(failures, itemFailure(path, scheduler.CategoryRecognition, recErr))
	}

	meta, metaErr := e.reader.Extract(path)
	if metaErr != nil {
		failures = append(failures, itemFailure(path, scheduler.CategoryMetadata, metaErr))
	}
	return buildRecord(path, detections, recErr, meta, metaErr), failures, nil
}

// batchItem returns the record for one batch input. It reuses the cache, the
// snapshot, or an open already recognizing path. Otherwise it claims path so
// opens arriving meanwhile wait for the batch result instead of recognizing
// the image a second time.
func (e *Enricher) batchItem(ctx context.Context, path string, conf, iou float64) (*photo.Record, []ItemFailure, error) {
	for {
		var rec *photo.Record
		var join chan openResult
		if err := e.do(ctx, func() { rec, join = e.claim(path) }); err != nil {
			return nil, nil, err
		}
		if rec != nil {
			return rec, nil, nil
		}
		if join == nil {
			break
		}
		var res openResult
		select {
		case res = <-join:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		switch {
		case res.err == nil:
			return res.rec, nil, nil
		case errors.Is(res.err, ErrClosed):
			return nil, nil, res.err
		case !errors.Is(res.err, services.ErrSuperseded) && !errors.Is(res.err, context.Canceled):
			return e.keepOpenFailure(ctx, path, res.err)
		}
	}

	rec, failures, err := e.enrichOne(ctx, path, conf, iou)
	if err != nil {
		_ = e.do(e.baseCtx, func() {
			e.releaseClaim(path, nil, services.NewTaskError(string(scheduler.CategoryBatch), path, err))
		})
		return nil, nil, err
	}
	stored := rec.Clone()
	if err := e.do(e.baseCtx, func() { e.releaseClaim(path, stored, nil) }); err != nil {
		return nil, nil, err
	}
	return rec, failures, nil
}

// keepOpenFailure stores a batch record for path after the open the batch
// joined failed recognition. Recognition is not retried.
func (e *Enricher) keepOpenFailure(ctx context.Context, path string, recErr error) (*photo.Record, []ItemFailure, error) {
	failures := []ItemFailure{itemFailure(path, scheduler.CategoryRecognition, recErr)}
	meta, metaErr := e.reader.Extract(path)
	if metaErr != nil {
		failures = append(failures, itemFailure(path, scheduler.CategoryMetadata, metaErr))
	}
	rec := buildRecord(path, nil, recErr, meta, metaErr)
	stored := rec.Clone()
	if err := e.do(ctx, func() { e.put(stored) }); err != nil {
		return nil, nil, err
	}
	return rec, failures, nil
}

func itemFailure(path string, category scheduler.Category, err error) ItemFailure {
	return ItemFailure{
		Path:     path,
		Category: string(category),
		Kind:     services.Kind(err),
		Error:    err.Error(),
		Err:      services.NewTaskError(string(category), path, err),
	}
}

func hasAddress(loc *photo.Location) bool {
	return loc.Resolved() && len(loc.AddressInfo) > 0
}

// awaitGeocode waits for h, following the replacement task when h is
// superseded, since a replacement carries over unresolved items.
func (e *Enricher) awaitGeocode(ctx context.Context, h *scheduler.Handle) error {
	for h != nil {
		select {
		case <-h.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if _, err := h.Wait(); !errors.Is(err, services.ErrSuperseded) {
			return nil
		}
		var next *scheduler.Handle
		if err := e.do(ctx, func() {
			if g := e.geocode; g != nil {
				next = g.handle
			}
		}); err != nil {
			return err
		}
		if next == h {
			return nil
		}
		h = next
	}
	return nil
}

func (e *Enricher) runGeocode(ctx context.Context, job scheduler.GeocodeJob, progress scheduler.Reporter) (any, error) {
	taskID, _ := services.TaskIDFromContext(ctx)
	summary := GeocodeSummary{Total: len(job.Items)}
	for i, item := range job.Items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		progress.Progress(i+1, summary.Total, fmt.Sprintf("geocoding %d/%d", i+1, summary.Total))
		addr := e.resolver.Resolve(ctx, item.Lat, item.Lon)
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		applied := false
		if err := e.do(ctx, func() { applied = e.applyAddress(taskID, item.Path, addr) }); err != nil {
			return summary, err
		}
		if applied {
			summary.Resolved++
		}
	}
	return summary, nil
}
