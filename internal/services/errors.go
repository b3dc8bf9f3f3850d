package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileAccess      = errors.New("file access error")
	ErrModelNotLoaded  = errors.New("model not loaded")
	ErrInference       = errors.New("inference error")
	ErrMetadataParse   = errors.New("metadata parse error")
	ErrConversion      = errors.New("coordinate conversion error")
	ErrGeocodeTimeout  = errors.New("geocode timeout")
	ErrGeocodeService  = errors.New("geocode service error")
	ErrSuperseded      = errors.New("superseded")
	ErrConfiguration   = errors.New("configuration error")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Wrap builds an error message that includes task context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, category, operation, message string, err error) error {
	detail := buildDetail(category, operation, message)
	if marker == nil {
		marker = ErrInference
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// TaskError reports a failure of a background task for a specific image.
type TaskError struct {
	Category string
	Path     string
	Err      error
}

func (e *TaskError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Category != "" {
		b.WriteString(e.Category)
	} else {
		b.WriteString("task")
	}
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("failed")
	}
	return b.String()
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTaskError returns nil when err is nil so call sites can wrap unconditionally.
func NewTaskError(category, path string, err error) error {
	if err == nil {
		return nil
	}
	var existing *TaskError
	if errors.As(err, &existing) && existing.Category == category && existing.Path == path {
		return err
	}
	return &TaskError{Category: category, Path: path, Err: err}
}

// Kind returns a short classification label for err, used in reports and
// notifications.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileAccess):
		return "file_access"
	case errors.Is(err, ErrModelNotLoaded):
		return "model_not_loaded"
	case errors.Is(err, ErrInference):
		return "inference"
	case errors.Is(err, ErrMetadataParse):
		return "metadata_parse"
	case errors.Is(err, ErrConversion):
		return "conversion"
	case errors.Is(err, ErrGeocodeTimeout):
		return "geocode_timeout"
	case errors.Is(err, ErrGeocodeService):
		return "geocode_service"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "unknown"
	}
}

func buildDetail(category, operation, message string) string {
	parts := make([]string, 0, 3)
	if category = strings.TrimSpace(category); category != "" {
		parts = append(parts, category)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
