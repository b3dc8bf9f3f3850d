package api

import (
	"errors"
	"net/http"
	"time"

	"floravision/internal/enrichment"
	"floravision/internal/photo"
	"floravision/internal/preflight"
	"floravision/internal/scheduler"
	"floravision/internal/services"
)

// TaskView describes a running scheduler task.
type TaskView struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Path     string `json:"path,omitempty"`
	State    string `json:"state"`
}

// Status is the payload of GET /api/status.
type Status struct {
	Records int                `json:"records"`
	Running []TaskView         `json:"running"`
	Checks  []preflight.Result `json:"checks,omitempty"`
	Time    time.Time          `json:"time"`
}

// EnrichRequest is the body of POST /api/enrich.
type EnrichRequest struct {
	Path string `json:"path"`
}

// BatchRequest is the body of POST /api/batch.
type BatchRequest struct {
	Paths []string `json:"paths"`
}

// BatchAccepted is returned when a batch task starts.
type BatchAccepted struct {
	TaskID string `json:"taskId"`
	Total  int    `json:"total"`
}

// RecordsResponse wraps the record listing.
type RecordsResponse struct {
	Records []*photo.Record `json:"records"`
}

// Event is the websocket representation of a scheduler event.
type Event struct {
	TaskID    string                  `json:"taskId"`
	Category  string                  `json:"category"`
	Kind      string                  `json:"kind"`
	Path      string                  `json:"path,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Current   int                     `json:"current,omitempty"`
	Total     int                     `json:"total,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Record    *photo.Record           `json:"record,omitempty"`
	Batch     *enrichment.BatchReport `json:"batch,omitempty"`
	Timestamp string                  `json:"timestamp"`
}

// FromHandle converts a scheduler handle.
func FromHandle(h *scheduler.Handle) TaskView {
	return TaskView{
		ID:       h.ID(),
		Category: string(h.Category()),
		Path:     h.Path(),
		State:    h.State().String(),
	}
}

// FromEvent converts a scheduler event. Results other than records and batch
// reports are not forwarded.
func FromEvent(ev scheduler.Event) Event {
	out := Event{
		TaskID:    ev.TaskID,
		Category:  string(ev.Category),
		Kind:      string(ev.Kind),
		Path:      ev.Path,
		Message:   ev.Message,
		Current:   ev.Current,
		Total:     ev.Total,
		Timestamp: ev.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	switch result := ev.Result.(type) {
	case *photo.Record:
		out.Record = result
	case enrichment.BatchReport:
		out.Batch = &result
	}
	return out
}

// statusFor maps classified errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrFileAccess), errors.Is(err, services.ErrMetadataParse):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, services.ErrModelNotLoaded), errors.Is(err, enrichment.ErrClosed), errors.Is(err, scheduler.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
