package recognition

import (
	"context"
)

// RawDetection is a detector result before normalization. BBox is
// [x1, y1, x2, y2] in pixels.
type RawDetection struct {
	Name       string     `json:"name"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Detector is the external detection backend.
type Detector interface {
	// Load prepares the model. weightsPath may be empty for backends that
	// manage their own model.
	Load(ctx context.Context, weightsPath string) error
	// Detect runs inference on the image at imagePath.
	Detect(ctx context.Context, imagePath string, conf, iou float64) ([]RawDetection, error)
}
