package enrichment

import (
	"floravision/internal/metadata"
	"floravision/internal/photo"
)

// buildRecord merges recognition and metadata outcomes. Failures are kept on
// the record instead of discarding it.
func buildRecord(path string, detections []photo.Detection, recErr error, meta metadata.Record, metaErr error) *photo.Record {
	rec := &photo.Record{
		Path:       path,
		Detections: detections,
		Device:     photo.Device{Make: photo.UnknownDevice, Model: photo.UnknownDevice},
	}
	if rec.Detections == nil || recErr != nil {
		rec.Detections = []photo.Detection{}
	}
	if recErr != nil {
		rec.RecognitionError = recErr.Error()
	}
	if metaErr != nil {
		rec.Location = photo.NoLocation(metaErr.Error())
		return rec
	}
	rec.Device = meta.Device
	rec.CapturedAt = meta.CapturedAt
	rec.LastModified = meta.LastModified
	rec.Width = meta.Width
	rec.Height = meta.Height
	rec.Location = meta.Location
	if rec.Location == nil {
		rec.Location = photo.NoLocation(photo.NoGPSMessage)
	}
	return rec
}
