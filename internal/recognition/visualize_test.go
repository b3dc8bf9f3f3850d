package recognition_test

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"floravision/internal/photo"
	"floravision/internal/recognition"
	"floravision/internal/testsupport"
)

func TestVisualizeDrawsBoxWithoutMutatingSource(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 100, 80))
	white := color.NRGBA{255, 255, 255, 255}
	for y := range 80 {
		for x := range 100 {
			src.SetNRGBA(x, y, white)
		}
	}
	det := photo.Detection{Label: "rose", Confidence: 0.9, BBox: photo.BBox{X1: 20, Y1: 30, X2: 70, Y2: 60}}

	out := recognition.Visualize(src, []photo.Detection{det}, recognition.VisualizeOptions{Thickness: 2, FontScale: 1})

	if out.Bounds() != src.Bounds() {
		t.Fatalf("bounds changed: %v", out.Bounds())
	}
	want := recognition.LabelColor("rose")
	got := color.NRGBAModel.Convert(out.At(45, 59)).(color.NRGBA)
	if got != want {
		t.Fatalf("expected box colour %v on bottom edge, got %v", want, got)
	}
	if inside := color.NRGBAModel.Convert(out.At(45, 45)).(color.NRGBA); inside != white {
		t.Fatalf("box interior should be untouched, got %v", inside)
	}
	if src.NRGBAAt(45, 59) != white {
		t.Fatal("source image was modified")
	}
}

func TestLabelHelpers(t *testing.T) {
	if got := recognition.LabelText(photo.Detection{Label: "sunflower", Confidence: 0.876}); got != "Sunflower 0.88" {
		t.Fatalf("unexpected label text %q", got)
	}
	if recognition.LabelColor("rose") != recognition.LabelColor("rose") {
		t.Fatal("label colour must be stable")
	}
}

func TestAnnotateWritesOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	dst := filepath.Join(dir, "out.png")
	testsupport.WritePNG(t, src, 40, 40)

	dets := []photo.Detection{{Label: "lily", Confidence: 0.5, BBox: photo.BBox{X1: 5, Y1: 20, X2: 35, Y2: 38}}}
	if err := recognition.Annotate(src, dst, dets, recognition.DefaultVisualizeOptions()); err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	img, err := imaging.Open(dst)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 40 {
		t.Fatalf("unexpected output size %v", img.Bounds())
	}
}
