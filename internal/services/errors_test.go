package services_test

import (
	"errors"
	"strings"
	"testing"

	"floravision/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrInference, "recognition", "detect", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrInference) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"recognition", "detect", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrConversion, "", "", "", nil)
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestTaskErrorUnwrap(t *testing.T) {
	cause := services.Wrap(services.ErrFileAccess, "recognition", "open", "missing", nil)
	err := services.NewTaskError("recognition", "/tmp/none.jpg", cause)

	var taskErr *services.TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected TaskError, got %T", err)
	}
	if taskErr.Path != "/tmp/none.jpg" || taskErr.Category != "recognition" {
		t.Fatalf("unexpected task error fields: %+v", taskErr)
	}
	if !errors.Is(err, services.ErrFileAccess) {
		t.Fatalf("expected file access marker through TaskError, got %v", err)
	}
	if !strings.Contains(err.Error(), "/tmp/none.jpg") {
		t.Fatalf("expected path in message, got %q", err.Error())
	}
	if services.NewTaskError("recognition", "x", nil) != nil {
		t.Fatal("expected nil for nil cause")
	}
	if again := services.NewTaskError("recognition", "/tmp/none.jpg", err); again != err {
		t.Fatal("expected identical task error to be returned unchanged")
	}
}

func TestKindClassification(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrModelNotLoaded, "", "", "", nil), "model_not_loaded"},
		{services.NewTaskError("metadata", "a", services.ErrMetadataParse), "metadata_parse"},
		{services.ErrGeocodeTimeout, "geocode_timeout"},
		{services.ErrSuperseded, "superseded"},
		{errors.New("other"), "unknown"},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
