package recognition

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"floravision/internal/photo"
	"floravision/internal/services"
)

// VisualizeOptions controls box and label rendering.
type VisualizeOptions struct {
	Thickness int
	FontScale float64
}

// DefaultVisualizeOptions matches the review tool defaults.
func DefaultVisualizeOptions() VisualizeOptions {
	return VisualizeOptions{Thickness: 2, FontScale: 1}
}

var labelCaser = cases.Title(language.Und)

// LabelText returns the caption drawn above a detection box.
func LabelText(d photo.Detection) string {
	return fmt.Sprintf("%s %.2f", labelCaser.String(strings.TrimSpace(d.Label)), d.Confidence)
}

// LabelColor derives a stable colour for a label.
func LabelColor(label string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	idx := h.Sum32() % 10
	return color.NRGBA{
		R: uint8((idx*30)%200 + 55),
		G: uint8((idx*70)%200 + 55),
		B: uint8((idx*130)%200 + 55),
		A: 255,
	}
}

// Visualize returns a copy of img with a rectangle and caption for every
// detection. img is not modified.
func Visualize(img image.Image, detections []photo.Detection, opts VisualizeOptions) image.Image {
	if opts.Thickness <= 0 {
		opts.Thickness = 1
	}
	if opts.FontScale <= 0 {
		opts.FontScale = 1
	}
	canvas := imaging.Clone(img)
	for _, det := range detections {
		if !det.BBox.Valid() {
			continue
		}
		c := LabelColor(det.Label)
		drawRect(canvas, det.BBox, c, opts.Thickness)
		drawLabel(canvas, det, c, opts.FontScale)
	}
	return canvas
}

func drawRect(dst *image.NRGBA, box photo.BBox, c color.NRGBA, thickness int) {
	src := image.NewUniform(c)
	r := image.Rect(box.X1, box.Y1, box.X2, box.Y2)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel renders the caption on a filled tag sitting on top of the box,
// or inside it when the box touches the top edge.
func drawLabel(dst *image.NRGBA, det photo.Detection, c color.NRGBA, scale float64) {
	face := basicfont.Face7x13
	text := LabelText(det)
	width := font.MeasureString(face, text).Ceil() + 4
	height := face.Metrics().Height.Ceil() + 4

	tag := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(tag, tag.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	drawer := &font.Drawer{
		Dst:  tag,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(2, height-2-face.Metrics().Descent.Ceil()),
	}
	drawer.DrawString(text)

	var scaled image.Image = tag
	if scale != 1 {
		scaled = imaging.Resize(tag, max(1, int(float64(width)*scale)), 0, imaging.NearestNeighbor)
	}
	size := scaled.Bounds().Size()
	top := det.BBox.Y1 - size.Y
	if top < dst.Bounds().Min.Y {
		top = det.BBox.Y1
	}
	target := image.Rectangle{Min: image.Pt(det.BBox.X1, top), Max: image.Pt(det.BBox.X1+size.X, top+size.Y)}
	clip := target.Intersect(dst.Bounds())
	draw.Draw(dst, clip, scaled, scaled.Bounds().Min.Add(clip.Min.Sub(target.Min)), draw.Over)
}

// Annotate opens the image at src with EXIF orientation applied, draws the
// detections, and saves the result to dst. The output format follows the
// extension of dst.
func Annotate(src, dst string, detections []photo.Detection, opts VisualizeOptions) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return services.Wrap(services.ErrFileAccess, "recognition", "annotate", "open "+src, err)
	}
	if err := imaging.Save(Visualize(img, detections, opts), dst); err != nil {
		return services.Wrap(services.ErrFileAccess, "recognition", "annotate", "save "+dst, err)
	}
	return nil
}
