package scheduler

import (
	"context"
	"fmt"

	"floravision/internal/services"
)

// Category names the lane a task runs in.
type Category string

// Task categories.
const (
	CategoryRecognition Category = "recognition"
	CategoryMetadata    Category = "metadata"
	CategoryGeocode     Category = "geocode"
	CategoryBatch       Category = "batch"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryRecognition, CategoryMetadata, CategoryGeocode, CategoryBatch}
}

// RecognitionJob detects flowers in one image.
type RecognitionJob struct {
	Path       string
	Confidence float64
	IOU        float64
}

// MetadataJob extracts EXIF data from one image.
type MetadataJob struct {
	Path string
}

// GeocodeItem is one coordinate pair awaiting an address.
type GeocodeItem struct {
	Path string
	Lat  float64
	Lon  float64
}

// GeocodeJob resolves addresses for a list of images.
type GeocodeJob struct {
	Items []GeocodeItem
}

// BatchJob runs recognition and metadata extraction over many images.
type BatchJob struct {
	Paths      []string
	Confidence float64
	IOU        float64
}

// Task is a unit of background work. Exactly one payload is set and it must
// match Category.
type Task struct {
	Category    Category
	Recognition *RecognitionJob
	Metadata    *MetadataJob
	Geocode     *GeocodeJob
	Batch       *BatchJob
}

// RecognitionTask builds a recognition task.
func RecognitionTask(job RecognitionJob) Task {
	return Task{Category: CategoryRecognition, Recognition: &job}
}

// MetadataTask builds a metadata task.
func MetadataTask(job MetadataJob) Task {
	return Task{Category: CategoryMetadata, Metadata: &job}
}

// GeocodeTask builds a geocode task.
func GeocodeTask(job GeocodeJob) Task {
	return Task{Category: CategoryGeocode, Geocode: &job}
}

// BatchTask builds a batch task.
func BatchTask(job BatchJob) Task {
	return Task{Category: CategoryBatch, Batch: &job}
}

// Path returns the image the task concerns, or an empty string for
// multi-image tasks.
func (t Task) Path() string {
	switch {
	case t.Recognition != nil:
		return t.Recognition.Path
	case t.Metadata != nil:
		return t.Metadata.Path
	}
	return ""
}

// Validate checks that exactly the payload for Category is present.
func (t Task) Validate() error {
	set := 0
	for _, present := range []bool{t.Recognition != nil, t.Metadata != nil, t.Geocode != nil, t.Batch != nil} {
		if present {
			set++
		}
	}
	var match bool
	switch t.Category {
	case CategoryRecognition:
		match = t.Recognition != nil
	case CategoryMetadata:
		match = t.Metadata != nil
	case CategoryGeocode:
		match = t.Geocode != nil
	case CategoryBatch:
		match = t.Batch != nil
	default:
		return services.Wrap(services.ErrInvalidArgument, "scheduler", "validate task", fmt.Sprintf("unknown category %q", t.Category), nil)
	}
	if set != 1 || !match {
		return services.Wrap(services.ErrInvalidArgument, "scheduler", "validate task", fmt.Sprintf("%s task needs exactly its own payload", t.Category), nil)
	}
	return nil
}

// Reporter receives progress from a running task.
type Reporter interface {
	Progress(current, total int, message string)
}

// HandlerFunc runs one payload type.
type HandlerFunc[J any] func(ctx context.Context, job J, progress Reporter) (any, error)

// Handlers holds the per-category work functions.
type Handlers struct {
	Recognition HandlerFunc[RecognitionJob]
	Metadata    HandlerFunc[MetadataJob]
	Geocode     HandlerFunc[GeocodeJob]
	Batch       HandlerFunc[BatchJob]
}

// Executor dispatches tasks to their handler.
type Executor struct {
	handlers Handlers
}

// NewExecutor builds an executor. Categories without a handler fail when run.
func NewExecutor(h Handlers) *Executor {
	return &Executor{handlers: h}
}

// Execute runs task with the handler registered for its category.
func (e *Executor) Execute(ctx context.Context, task Task, progress Reporter) (any, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	switch task.Category {
	case CategoryRecognition:
		return dispatch(ctx, e.handlers.Recognition, *task.Recognition, progress, task.Category)
	case CategoryMetadata:
		return dispatch(ctx, e.handlers.Metadata, *task.Metadata, progress, task.Category)
	case CategoryGeocode:
		return dispatch(ctx, e.handlers.Geocode, *task.Geocode, progress, task.Category)
	default:
		return dispatch(ctx, e.handlers.Batch, *task.Batch, progress, task.Category)
	}
}

func dispatch[J any](ctx context.Context, fn HandlerFunc[J], job J, progress Reporter, category Category) (any, error) {
	if fn == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "execute", fmt.Sprintf("no handler for %s", category), nil)
	}
	return fn(ctx, job, progress)
}
