package logs_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"floravision/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "floravision.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}

	all, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil || len(all.Lines) != 3 || all.Lines[0] != "a" {
		t.Fatalf("expected all lines, got %#v (%v)", all.Lines, err)
	}
}

func TestTailFromOffsetKeepsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthr")

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 4})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 1 || result.Lines[0] != "two" || result.Offset != 8 {
		t.Fatalf("unexpected result %+v", result)
	}

	past, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 500})
	if err != nil || len(past.Lines) != 0 {
		t.Fatalf("offset past the end should read nothing: %+v %v", past, err)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil || len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %+v %v", result, err)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}

	done := make(chan logs.TailResult, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		done <- res
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case res := <-done:
		if len(res.Lines) != 1 || res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestFilterAndFormat(t *testing.T) {
	lines := []string{
		`{"ts":"2026-05-01T08:00:00Z","level":"debug","msg":"cache hit","component":"enrichment"}`,
		`{"ts":"2026-05-01T08:00:01Z","level":"warn","msg":"geocode retry","component":"geocode","attempt":2}`,
		`{"ts":"2026-05-01T08:00:02Z","level":"error","msg":"recognition failed","component":"recognition","image_path":"/photos/rose.jpg"}`,
		`panic: boom`,
	}

	warn, err := logs.ParseLevel("warn")
	if err != nil {
		t.Fatalf("ParseLevel: %v", err)
	}
	if got := (logs.Filter{MinLevel: warn}).Apply(lines); len(got) != 3 {
		t.Fatalf("expected warn+error+raw lines, got %#v", got)
	}
	if got := (logs.Filter{MinLevel: slog.LevelDebug, Component: "GEOCODE"}).Apply(lines); len(got) != 1 {
		t.Fatalf("expected one geocode line, got %#v", got)
	}
	if got := (logs.Filter{MinLevel: slog.LevelDebug, Image: "rose"}).Apply(lines); len(got) != 1 {
		t.Fatalf("expected one image line, got %#v", got)
	}
	if _, err := logs.ParseLevel("loud"); err == nil {
		t.Fatal("expected unknown level to fail")
	}

	formatted := logs.Format(lines[1])
	if !strings.Contains(formatted, "WARN  [geocode] geocode retry attempt=2") {
		t.Fatalf("unexpected format %q", formatted)
	}
	if logs.Format(lines[3]) != lines[3] {
		t.Fatal("non-JSON lines should pass through")
	}
}
