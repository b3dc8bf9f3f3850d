package preflight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"floravision/internal/recognition"
	"floravision/internal/store"
	"floravision/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWeights(t *testing.T) {
	dir := t.TempDir()
	weights := filepath.Join(dir, "best.pt")
	testsupport.WriteFile(t, weights, 256)

	if r := CheckWeights(weights); !r.Passed || !strings.Contains(r.Detail, "256 bytes") {
		t.Fatalf("CheckWeights(file) = %+v", r)
	}
	if r := CheckWeights(dir); r.Passed {
		t.Fatal("expected failure for directory")
	}
	if r := CheckWeights(filepath.Join(dir, "missing.pt")); r.Passed {
		t.Fatal("expected failure for missing weights")
	}
}

func TestCheckDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	det, err := recognition.NewHTTPDetector(srv.URL + "/api/detect")
	if err != nil {
		t.Fatal(err)
	}
	if r := CheckDetector(context.Background(), "http", det, ""); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}

	down, err := recognition.NewHTTPDetector("http://127.0.0.1:1/api/detect")
	if err != nil {
		t.Fatal(err)
	}
	if r := CheckDetector(context.Background(), "http", down, ""); r.Passed {
		t.Fatal("expected failure for unreachable detector")
	}
}

func TestCheckGeocoding(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckGeocoding(context.Background(), cfg); !r.Passed || !strings.HasPrefix(r.Detail, "Disabled") {
		t.Fatalf("disabled geocoding = %+v", r)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"display_name": "福田区, 深圳市, 广东省, 中国",
			"address":      map[string]string{"city": "深圳市", "suburb": "福田区", "state": "广东省"},
		})
	}))
	defer srv.Close()

	cfg = testsupport.NewConfig(t, testsupport.WithGeocoder(srv.URL))
	if r := CheckGeocoding(context.Background(), cfg); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
}

func TestCheckSnapshotReportsHeldLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckSnapshot(cfg); !r.Passed || !strings.Contains(r.Detail, "available") {
		t.Fatalf("free snapshot = %+v", r)
	}
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if r := CheckSnapshot(cfg); !r.Passed || !strings.Contains(r.Detail, "in use") {
		t.Fatalf("held snapshot = %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t, testsupport.WithDetectorEndpoint(srv.URL+"/api/detect"), testsupport.WithWeights())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	results := RunAll(context.Background(), cfg)

	names := make(map[string]Result, len(results))
	for _, r := range results {
		names[r.Name] = r
	}
	for _, want := range []string{"Data directory", "Model weights", "Detector (http)", "Geocoding"} {
		r, ok := names[want]
		if !ok {
			t.Fatalf("missing check %q in %v", want, results)
		}
		if !r.Passed {
			t.Fatalf("check %q failed: %s", want, r.Detail)
		}
	}
	if Failed(results) != 0 {
		t.Fatalf("unexpected failures: %v", results)
	}
}
