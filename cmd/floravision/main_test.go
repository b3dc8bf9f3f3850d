package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"floravision/internal/album"
	"floravision/internal/config"
	"floravision/internal/enrichment"
	"floravision/internal/geo"
	"floravision/internal/geocode"
	"floravision/internal/photo"
	"floravision/internal/preflight"
	"floravision/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	imageDir   string
	detections *atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	for _, key := range []string{"FLORAVISION_API_TOKEN", "FLORAVISION_DETECTOR_ENDPOINT", "FLORAVISION_NTFY_TOPIC", "NOMINATIM_EMAIL"} {
		t.Setenv(key, "")
	}

	calls := &atomic.Int32{}
	detector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"results":[{"name":"玫瑰","confidence":0.88,"bbox":[2,3,20,30]}]}`))
	}))
	t.Cleanup(detector.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithDetectorEndpoint(detector.URL+"/api/detect"))
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)

	configPath := filepath.Join(base, "config", "floravision.toml")
	writeTestConfig(t, configPath, cfg)

	imageDir := filepath.Join(base, "photos")
	testsupport.WriteEXIF(t, filepath.Join(imageDir, "baoan.tif"), testsupport.EXIF{Make: "Canon", Model: "R6"}.
		WithGPS(testsupport.BaoanLat, "N", testsupport.BaoanLon, "E"))
	testsupport.WritePNG(t, filepath.Join(imageDir, "plain.png"), 16, 16)
	testsupport.WriteFile(t, filepath.Join(imageDir, "notes.txt"), 8)

	return &cliTestEnv{cfg: cfg, configPath: configPath, imageDir: imageDir, detections: calls}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) image(name string) string {
	return filepath.Join(env.imageDir, name)
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", env.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeJSON(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
}

func TestRegionsMatchSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing", "nope.toml"), "regions", "match", "22.6539", "113.8833", "--json")
	if err != nil {
		t.Fatalf("regions match: %v", err)
	}
	var region geo.Region
	decodeJSON(t, out, &region)
	if region.Province != "广东省" || region.City != "深圳市" || region.District != "宝安区" {
		t.Fatalf("unexpected region %+v", region)
	}
}

func TestRegionsMatchRejectsBadCoordinates(t *testing.T) {
	if _, _, err := runCLI(t, "regions", "match", "91", "113"); err == nil {
		t.Fatal("expected out-of-range latitude to fail")
	}
	if _, _, err := runCLI(t, "regions", "match", "north", "113"); err == nil || !strings.Contains(err.Error(), "invalid latitude") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestGeocodeFallsBackToLocalTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "geocode", "22.6539", "113.8833", "--json")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	var addr geocode.Address
	decodeJSON(t, out, &addr)
	if addr.Source != geocode.SourceLocal || addr.Formatted != "中国，广东省，深圳市，宝安区" {
		t.Fatalf("unexpected address %+v", addr)
	}

	out, _, err = env.run(t, "geocode", "22.6539", "113.8833")
	if err != nil {
		t.Fatalf("geocode text: %v", err)
	}
	if !strings.Contains(out, "Source:") || !strings.Contains(out, "local") {
		t.Fatalf("unexpected text output %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cfg", "floravision.toml")

	out, _, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file error, got %v", err)
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	env := setupCLITestEnv(t)
	out, _, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.HasPrefix(out, "# "+env.configPath) || !strings.Contains(out, "[detector]") {
		t.Fatalf("unexpected config show output %q", out)
	}

	out, _, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output %q", out)
	}
}

func TestEnrichResolvesAddressAndPersists(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.image("baoan.tif")

	out, _, err := env.run(t, "enrich", path, "--json")
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	var rec photo.Record
	decodeJSON(t, out, &rec)
	if len(rec.Detections) != 1 || rec.Detections[0].Label != "玫瑰" {
		t.Fatalf("unexpected detections %+v", rec.Detections)
	}
	if rec.Device.Make != "Canon" {
		t.Fatalf("unexpected device %+v", rec.Device)
	}
	if !rec.HasLocation() || rec.Location.Pending() || rec.Location.District != "宝安区" {
		t.Fatalf("expected resolved location, got %+v", rec.Location)
	}

	out, _, err = env.run(t, "cache", "show", path)
	if err != nil {
		t.Fatalf("cache show: %v", err)
	}
	if !strings.Contains(out, "宝安区") || !strings.Contains(out, "玫瑰") {
		t.Fatalf("unexpected cache show output %q", out)
	}

	// Unchanged files are served from the snapshot.
	if _, _, err := env.run(t, "enrich", path, "--json"); err != nil {
		t.Fatalf("second enrich: %v", err)
	}
	if got := env.detections.Load(); got != 1 {
		t.Fatalf("expected one detector call, got %d", got)
	}
}

func TestEnrichWithoutGPS(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "enrich", env.image("plain.png"))
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if !strings.Contains(out, photo.NoGPSMessage) {
		t.Fatalf("expected no-GPS message, got %q", out)
	}
	if !strings.Contains(out, "16x16") {
		t.Fatalf("expected decoded dimensions, got %q", out)
	}
}

func TestBatchThenCacheAndAlbum(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "batch", env.imageDir, "--json")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var report enrichment.BatchReport
	decodeJSON(t, out, &report)
	if report.TotalProcessed != 2 || report.WithLocationCount != 1 || report.AddressResolvedCount != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}

	out, _, err = env.run(t, "cache", "list")
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	if !strings.Contains(out, "baoan.tif") || !strings.Contains(out, "plain.png") || !strings.Contains(out, "2 records") {
		t.Fatalf("unexpected cache list %q", out)
	}

	out, _, err = env.run(t, "album", "group", "--by", "location", "--json")
	if err != nil {
		t.Fatalf("album group: %v", err)
	}
	var groups []album.Group
	decodeJSON(t, out, &groups)
	if len(groups) != 2 {
		t.Fatalf("expected two location groups, got %+v", groups)
	}
	names := []string{groups[0].Name, groups[1].Name}
	if !strings.Contains(strings.Join(names, "|"), "广东省 深圳市") || !strings.Contains(strings.Join(names, "|"), album.UnknownLocation) {
		t.Fatalf("unexpected group names %v", names)
	}

	dest := filepath.Join(t.TempDir(), "albums")
	out, _, err = env.run(t, "album", "export", "--dest", dest, "--json")
	if err != nil {
		t.Fatalf("album export: %v", err)
	}
	var result album.ExportResult
	decodeJSON(t, out, &result)
	if result.Total != 2 || result.Categories["玫瑰"] != 2 {
		t.Fatalf("unexpected export result %+v", result)
	}
	if _, err := os.Stat(filepath.Join(result.Root, "玫瑰", "baoan.tif")); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}

	if _, _, err := env.run(t, "album", "group", "--by", "colour"); err == nil {
		t.Fatal("expected unknown grouping to fail")
	}
}

func TestCacheClear(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "batch", env.imageDir, "--json"); err != nil {
		t.Fatalf("batch: %v", err)
	}

	out, _, err := env.run(t, "cache", "clear", env.image("plain.png"))
	if err != nil {
		t.Fatalf("cache clear one: %v", err)
	}
	if !strings.HasPrefix(out, "Removed ") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, err := env.run(t, "cache", "show", env.image("plain.png")); err == nil {
		t.Fatal("expected removed record to be missing")
	}

	out, _, err = env.run(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if out != "Cleared 1 records\n" {
		t.Fatalf("unexpected output %q", out)
	}

	out, _, err = env.run(t, "cache", "clear", "--purge")
	if err != nil {
		t.Fatalf("cache purge: %v", err)
	}
	if !strings.Contains(out, "Purged snapshot") {
		t.Fatalf("unexpected purge output %q", out)
	}
	if _, err := os.Stat(env.cfg.Cache.Path); !os.IsNotExist(err) {
		t.Fatalf("expected snapshot removed, stat err=%v", err)
	}
}

func TestDoctorReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := env.run(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	var results []preflight.Result
	decodeJSON(t, out, &results)
	if len(results) == 0 || preflight.Failed(results) != 0 {
		t.Fatalf("unexpected results %+v", results)
	}

	env.cfg.Detector.Endpoint = "http://127.0.0.1:1/api/detect"
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err = env.run(t, "doctor")
	if err == nil || !strings.Contains(err.Error(), "checks failed") {
		t.Fatalf("expected doctor failure, got %v", err)
	}
	if !strings.Contains(out, "[ERROR]") {
		t.Fatalf("expected error line, got %q", out)
	}
}

func TestCollectImages(t *testing.T) {
	dir := t.TempDir()
	testsupport.WritePNG(t, filepath.Join(dir, "a.png"), 4, 4)
	testsupport.WritePNG(t, filepath.Join(dir, "B.JPG"), 4, 4)
	testsupport.WritePNG(t, filepath.Join(dir, "nested", "c.png"), 4, 4)
	testsupport.WritePNG(t, filepath.Join(dir, ".hidden", "d.png"), 4, 4)
	testsupport.WriteFile(t, filepath.Join(dir, "readme.md"), 4)

	flat, err := collectImages([]string{dir, filepath.Join(dir, "a.png")}, false)
	if err != nil {
		t.Fatalf("collectImages: %v", err)
	}
	if len(flat) != 2 || filepath.Base(flat[0]) != "B.JPG" || filepath.Base(flat[1]) != "a.png" {
		t.Fatalf("unexpected flat listing %v", flat)
	}

	deep, err := collectImages([]string{dir}, true)
	if err != nil {
		t.Fatalf("collectImages recursive: %v", err)
	}
	if len(deep) != 3 {
		t.Fatalf("expected hidden directory skipped, got %v", deep)
	}

	explicit, err := collectImages([]string{filepath.Join(dir, "readme.md")}, false)
	if err != nil || len(explicit) != 1 {
		t.Fatalf("explicit files are kept: %v %v", explicit, err)
	}

	if _, err := collectImages([]string{filepath.Join(dir, "nested", "missing")}, false); err == nil {
		t.Fatal("expected missing path to fail")
	}
	empty := filepath.Join(dir, "empty")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := collectImages([]string{empty}, false); err == nil || err.Error() != "no images found" {
		t.Fatalf("expected no images error, got %v", err)
	}
}

func TestLogsCommandFormatsAndFilters(t *testing.T) {
	env := setupCLITestEnv(t)
	content := `{"ts":"2026-05-01T08:00:00Z","level":"info","msg":"batch started","component":"enrichment"}
{"ts":"2026-05-01T08:00:01Z","level":"warn","msg":"geocode retry","component":"geocode","attempt":2}
`
	if err := os.MkdirAll(filepath.Dir(env.cfg.LogPath()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run(t, "logs", "--level", "warn")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "batch started") || !strings.Contains(out, "[geocode] geocode retry attempt=2") {
		t.Fatalf("unexpected logs output %q", out)
	}

	out, _, err = env.run(t, "logs", "-n", "1", "--raw")
	if err != nil {
		t.Fatalf("logs --raw: %v", err)
	}
	if !strings.HasPrefix(out, `{"ts":"2026-05-01T08:00:01Z"`) {
		t.Fatalf("unexpected raw output %q", out)
	}
}
