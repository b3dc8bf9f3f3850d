package metadata_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"floravision/internal/metadata"
	"floravision/internal/photo"
	"floravision/internal/services"
	"floravision/internal/testsupport"
)

func TestExtractFullGPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baoan.tif")
	testsupport.WriteEXIF(t, path, testsupport.EXIF{
		Make:     "Canon",
		Model:    "EOS R6",
		DateTime: "2024:04:05 10:11:12",
		Width:    6000,
		Height:   4000,
	}.WithGPS(testsupport.BaoanLat, "N", testsupport.BaoanLon, "E"))

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Device.Make != "Canon" || rec.Device.Model != "EOS R6" {
		t.Fatalf("unexpected device %+v", rec.Device)
	}
	if rec.Width != 6000 || rec.Height != 4000 {
		t.Fatalf("unexpected dimensions %dx%d", rec.Width, rec.Height)
	}
	if rec.CapturedAtSource != metadata.TimeSourceEXIF {
		t.Fatalf("expected exif capture time, got %q", rec.CapturedAtSource)
	}
	if got := rec.CapturedAt.Format("2006-01-02 15:04:05"); got != "2024-04-05 10:11:12" {
		t.Fatalf("unexpected capture time %s", got)
	}

	loc := rec.Location
	if loc == nil || !loc.HasLocation {
		t.Fatalf("expected location, got %+v", loc)
	}
	lat, lon, ok := loc.Coordinates()
	if !ok {
		t.Fatal("expected coordinates")
	}
	if math.Abs(lat-22.653889) > 1e-6 || math.Abs(lon-113.883333) > 1e-6 {
		t.Fatalf("unexpected coordinates %f,%f", lat, lon)
	}
	if loc.AddressInfo != nil {
		t.Fatalf("address must be pending, got %v", loc.AddressInfo)
	}
	if loc.FormattedAddress != photo.PendingAddress {
		t.Fatalf("unexpected formatted address %q", loc.FormattedAddress)
	}
	if loc.RawLat != `22° 39' 14" N` {
		t.Fatalf("unexpected raw latitude %q", loc.RawLat)
	}
	if !loc.Pending() {
		t.Fatal("expected location to be pending")
	}
}

func TestExtractSouthernWesternHemisphere(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sw.tif")
	lat := testsupport.DMS{{33, 1}, {52, 1}, {3060, 100}}
	lon := testsupport.DMS{{151, 1}, {12, 1}, {0, 1}}
	testsupport.WriteEXIF(t, path, testsupport.EXIF{Make: "Apple"}.WithGPS(lat, "S", lon, "W"))

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	gotLat, gotLon, ok := rec.Location.Coordinates()
	if !ok {
		t.Fatalf("expected coordinates, got %+v", rec.Location)
	}
	if math.Abs(gotLat+(33+52.0/60+30.6/3600)) > 1e-6 || math.Abs(gotLon+151.2) > 1e-6 {
		t.Fatalf("unexpected coordinates %f,%f", gotLat, gotLon)
	}
}

func TestExtractWithoutGPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nogps.tif")
	testsupport.WriteEXIF(t, path, testsupport.EXIF{Make: "Xiaomi", Model: "14", Width: 100, Height: 80})

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Location.HasLocation {
		t.Fatal("expected no location")
	}
	if rec.Location.Error != photo.NoGPSMessage {
		t.Fatalf("unexpected location error %q", rec.Location.Error)
	}
	if rec.Device.Make != "Xiaomi" {
		t.Fatalf("unexpected make %q", rec.Device.Make)
	}
}

func TestExtractPartialGPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.tif")
	lat := testsupport.BaoanLat
	testsupport.WriteEXIF(t, path, testsupport.EXIF{Make: "Canon", Lat: &lat, LatRef: "N"})

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Location.HasLocation {
		t.Fatal("partial GPS must not produce a location")
	}
	if !strings.Contains(rec.Location.Error, "GPSLongitude") {
		t.Fatalf("error should name the missing tag, got %q", rec.Location.Error)
	}
}

func TestExtractZeroDenominatorIsConversionProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.tif")
	lat := testsupport.DMS{{22, 1}, {39, 0}, {14, 1}}
	testsupport.WriteEXIF(t, path, testsupport.EXIF{}.WithGPS(lat, "N", testsupport.BaoanLon, "E"))

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("conversion problems must not fail extraction: %v", err)
	}
	if rec.Location.HasLocation {
		t.Fatal("expected no location")
	}
	if !strings.Contains(rec.Location.Error, "转换") {
		t.Fatalf("error should mention conversion, got %q", rec.Location.Error)
	}
}

func TestExtractWithoutEXIFUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.png")
	testsupport.WritePNG(t, path, 32, 24)
	modTime := time.Date(2023, 6, 1, 8, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	rec, err := metadata.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Device.Make != photo.UnknownDevice || rec.Device.Model != photo.UnknownDevice {
		t.Fatalf("expected unknown device, got %+v", rec.Device)
	}
	if rec.Width != 32 || rec.Height != 24 {
		t.Fatalf("expected decoded dimensions, got %dx%d", rec.Width, rec.Height)
	}
	if rec.CapturedAtSource != metadata.TimeSourceFile || !rec.CapturedAt.Equal(modTime) {
		t.Fatalf("expected file time fallback, got %s (%s)", rec.CapturedAt, rec.CapturedAtSource)
	}
	if rec.Location.Error != photo.NoGPSMessage {
		t.Fatalf("unexpected location error %q", rec.Location.Error)
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := metadata.Extract(filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, services.ErrMetadataParse) {
		t.Fatalf("expected ErrMetadataParse, got %v", err)
	}
}

func TestExtractDirectory(t *testing.T) {
	_, err := metadata.NewExtractor(nil).Extract(t.TempDir())
	if !errors.Is(err, services.ErrMetadataParse) {
		t.Fatalf("expected ErrMetadataParse, got %v", err)
	}
}
