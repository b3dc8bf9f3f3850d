package metadata

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"floravision/internal/geo"
	"floravision/internal/logging"
	"floravision/internal/photo"
	"floravision/internal/services"
)

// Capture time sources.
const (
	TimeSourceEXIF = "exif"
	TimeSourceFile = "file"
)

const (
	partialGPSMessage    = "GPS信息不完整"
	conversionGPSMessage = "GPS坐标转换失败"
)

// Record is the metadata half of an enrichment result.
type Record struct {
	Path             string
	Device           photo.Device
	CapturedAt       time.Time
	CapturedAtSource string
	LastModified     time.Time
	Width            int
	Height           int
	Location         *photo.Location
}

// Extractor reads metadata from image files. The zero value is usable.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor returns an extractor that logs decode problems at debug level.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "metadata")}
}

// Extract reads metadata with a default extractor.
func Extract(path string) (Record, error) {
	return (&Extractor{}).Extract(path)
}

// Extract returns the metadata record for path. Only an unreadable file is an
// error; missing or damaged EXIF yields defaults.
func (e *Extractor) Extract(path string) (Record, error) {
	logger := e.logger
	if logger == nil {
		logger = logging.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return Record{}, services.Wrap(services.ErrMetadataParse, "metadata", "stat", path, err)
	}
	if info.IsDir() {
		return Record{}, services.Wrap(services.ErrMetadataParse, "metadata", "stat", path+" is a directory", nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return Record{}, services.Wrap(services.ErrMetadataParse, "metadata", "open", path, err)
	}
	defer file.Close()

	rec := Record{
		Path:             path,
		Device:           photo.Device{Make: photo.UnknownDevice, Model: photo.UnknownDevice},
		CapturedAt:       info.ModTime(),
		CapturedAtSource: TimeSourceFile,
		LastModified:     info.ModTime(),
		Location:         photo.NoLocation(photo.NoGPSMessage),
	}

	x, err := exif.Decode(file)
	if x == nil {
		if err != nil {
			logger.Debug("no usable exif data", logging.String(logging.FieldImagePath, path), logging.Error(err))
		}
	} else {
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Debug("exif decoded with warnings", logging.String(logging.FieldImagePath, path), logging.Error(err))
		}
		e.applyEXIF(&rec, x)
	}

	if rec.Width == 0 || rec.Height == 0 {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if cfg, _, err := image.DecodeConfig(file); err == nil {
				rec.Width, rec.Height = cfg.Width, cfg.Height
			}
		}
	}
	return rec, nil
}

func (e *Extractor) applyEXIF(rec *Record, x *exif.Exif) {
	if v := stringTag(x, exif.Make); v != "" {
		rec.Device.Make = v
	}
	if v := stringTag(x, exif.Model); v != "" {
		rec.Device.Model = v
	}
	if ts, err := x.DateTime(); err == nil && !ts.IsZero() {
		rec.CapturedAt = ts
		rec.CapturedAtSource = TimeSourceEXIF
	}
	rec.Width = intTag(x, exif.PixelXDimension)
	rec.Height = intTag(x, exif.PixelYDimension)
	rec.Location = readLocation(x)
}

// readLocation requires all four GPS tags. Missing or broken tags never make
// extraction fail; they only explain why HasLocation is false.
func readLocation(x *exif.Exif) *photo.Location {
	latTag, latErr := x.Get(exif.GPSLatitude)
	latRefTag, latRefErr := x.Get(exif.GPSLatitudeRef)
	lonTag, lonErr := x.Get(exif.GPSLongitude)
	lonRefTag, lonRefErr := x.Get(exif.GPSLongitudeRef)

	var missing []string
	for name, err := range map[string]error{
		"GPSLatitude":     latErr,
		"GPSLatitudeRef":  latRefErr,
		"GPSLongitude":    lonErr,
		"GPSLongitudeRef": lonRefErr,
	} {
		if err != nil {
			missing = append(missing, name)
		}
	}
	switch len(missing) {
	case 0:
	case 4:
		return photo.NoLocation(photo.NoGPSMessage)
	default:
		slices.Sort(missing)
		return photo.NoLocation(fmt.Sprintf("%s: 缺少 %s", partialGPSMessage, strings.Join(missing, ", ")))
	}

	latRef, _ := latRefTag.StringVal()
	lonRef, _ := lonRefTag.StringVal()
	latDMS, err := rationals(latTag)
	if err != nil {
		return photo.NoLocation(fmt.Sprintf("%s: %v", conversionGPSMessage, err))
	}
	lonDMS, err := rationals(lonTag)
	if err != nil {
		return photo.NoLocation(fmt.Sprintf("%s: %v", conversionGPSMessage, err))
	}
	lat, err := geo.ConvertDMS(latDMS, latRef)
	if err != nil {
		return photo.NoLocation(fmt.Sprintf("%s: %v", conversionGPSMessage, err))
	}
	lon, err := geo.ConvertDMS(lonDMS, lonRef)
	if err != nil {
		return photo.NoLocation(fmt.Sprintf("%s: %v", conversionGPSMessage, err))
	}

	return &photo.Location{
		HasLocation:      true,
		DecimalLat:       &lat,
		DecimalLon:       &lon,
		RawLat:           geo.FormatDMS(latDMS, latRef),
		RawLon:           geo.FormatDMS(lonDMS, lonRef),
		FormattedAddress: photo.PendingAddress,
	}
}

func rationals(tag *tiff.Tag) ([]geo.Rational, error) {
	if tag.Format() != tiff.RatVal {
		return nil, services.Wrap(services.ErrConversion, "metadata", "gps", "tag is not rational", nil)
	}
	n := int(tag.Count)
	if n > 3 {
		n = 3
	}
	out := make([]geo.Rational, 0, n)
	for i := range n {
		num, den, err := tag.Rat2(i)
		if err != nil {
			return nil, services.Wrap(services.ErrConversion, "metadata", "gps", "read rational", err)
		}
		out = append(out, geo.Rational{Num: num, Den: den})
	}
	return out, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	value, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(value, "\x00"))
}

func intTag(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	value, err := tag.Int(0)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
