package photo

import (
	"maps"
	"slices"
	"time"
)

const (
	// PendingAddress is shown while reverse geocoding has not produced a result.
	PendingAddress = "地址信息获取中..."
	// NoGPSMessage is the location error for images without GPS tags.
	NoGPSMessage = "未找到GPS信息"
	// UnknownDevice fills missing camera make/model values.
	UnknownDevice = "unknown"
)

// BBox is a pixel rectangle with X1<X2 and Y1<Y2.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the rectangle has positive width and height.
func (b BBox) Valid() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// Detection is a single labelled box produced by the recognizer.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Device identifies the camera that produced the image.
type Device struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

// Location captures GPS data and its resolved address. AddressInfo stays nil
// until geocoding has run, which distinguishes "pending" from "resolved to
// nothing".
type Location struct {
	HasLocation      bool              `json:"has_location"`
	DecimalLat       *float64          `json:"decimal_lat,omitempty"`
	DecimalLon       *float64          `json:"decimal_lon,omitempty"`
	RawLat           string            `json:"raw_lat,omitempty"`
	RawLon           string            `json:"raw_lon,omitempty"`
	AddressInfo      map[string]string `json:"address_info"`
	AddressSource    string            `json:"address_source,omitempty"`
	FormattedAddress string            `json:"formatted_address,omitempty"`
	Province         string            `json:"province,omitempty"`
	City             string            `json:"city,omitempty"`
	District         string            `json:"district,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// NoLocation builds a location that only carries an explanation.
func NoLocation(reason string) *Location {
	return &Location{Error: reason}
}

// Pending reports whether the location has coordinates but no address yet.
func (l *Location) Pending() bool {
	return l != nil && l.HasLocation && l.AddressInfo == nil
}

// Resolved reports whether an address has been attached.
func (l *Location) Resolved() bool {
	return l != nil && l.HasLocation && l.AddressInfo != nil
}

// Coordinates returns the decimal pair when both are present.
func (l *Location) Coordinates() (lat, lon float64, ok bool) {
	if l == nil || !l.HasLocation || l.DecimalLat == nil || l.DecimalLon == nil {
		return 0, 0, false
	}
	return *l.DecimalLat, *l.DecimalLon, true
}

// Clone returns a deep copy.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	if l.DecimalLat != nil {
		v := *l.DecimalLat
		out.DecimalLat = &v
	}
	if l.DecimalLon != nil {
		v := *l.DecimalLon
		out.DecimalLon = &v
	}
	if l.AddressInfo != nil {
		out.AddressInfo = maps.Clone(l.AddressInfo)
	}
	return &out
}

// Record is the cached enrichment result for one image path.
type Record struct {
	Path             string      `json:"path"`
	Detections       []Detection `json:"detections"`
	Location         *Location   `json:"location,omitempty"`
	Device           Device      `json:"device"`
	CapturedAt       time.Time   `json:"captured_at"`
	LastModified     time.Time   `json:"last_modified"`
	Width            int         `json:"width,omitempty"`
	Height           int         `json:"height,omitempty"`
	RecognitionError string      `json:"recognition_error,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with the cache.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Detections = slices.Clone(r.Detections)
	out.Location = r.Location.Clone()
	return &out
}

// TopDetection returns the highest-confidence detection. Detections are kept
// sorted, so this is the first entry.
func (r *Record) TopDetection() (Detection, bool) {
	if r == nil || len(r.Detections) == 0 {
		return Detection{}, false
	}
	return r.Detections[0], true
}

// HasLocation reports whether GPS coordinates were extracted.
func (r *Record) HasLocation() bool {
	return r != nil && r.Location != nil && r.Location.HasLocation
}
