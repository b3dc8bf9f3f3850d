package enrichment_test

import (
	"testing"

	"floravision/internal/enrichment"
	"floravision/internal/photo"
)

func record(path string) *photo.Record {
	return &photo.Record{
		Path:       path,
		Detections: []photo.Detection{{Label: "rose", Confidence: 0.9, BBox: photo.BBox{X1: 0, Y1: 0, X2: 5, Y2: 5}}},
		Location:   photo.NoLocation(photo.NoGPSMessage),
	}
}

func TestCacheUpdateLocationKeepsDetections(t *testing.T) {
	c := enrichment.NewCache(0)
	c.Put("a.jpg", record("a.jpg"))

	lat, lon := 22.5, 113.9
	if !c.UpdateLocation("a.jpg", &photo.Location{HasLocation: true, DecimalLat: &lat, DecimalLon: &lon}) {
		t.Fatal("expected update on cached path")
	}
	got, ok := c.Get("a.jpg")
	if !ok {
		t.Fatal("expected cached record")
	}
	if len(got.Detections) != 1 || !got.Location.HasLocation {
		t.Fatalf("unexpected record after update: %+v", got)
	}
	if c.UpdateLocation("missing.jpg", photo.NoLocation("x")) {
		t.Fatal("update of unknown path must report false")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := enrichment.NewCache(2)
	c.Put("a", record("a"))
	c.Put("b", record("b"))
	c.Get("a")
	c.Put("c", record("c"))

	if _, ok := c.Peek("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	for _, p := range []string{"a", "c"} {
		if _, ok := c.Peek(p); !ok {
			t.Fatalf("expected %s to remain", p)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestCacheUnboundedAndReset(t *testing.T) {
	c := enrichment.NewCache(0)
	for _, p := range []string{"a", "b", "c", "d", "e"} {
		c.Put(p, record(p))
	}
	if c.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", c.Len())
	}
	if recs := c.Records(); recs[0].Path != "e" {
		t.Fatalf("expected most recent first, got %s", recs[0].Path)
	}
	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}
