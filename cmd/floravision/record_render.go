package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"floravision/internal/photo"
)

func renderRecord(rec *photo.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %s\n", "Image:", rec.Path)
	if rec.Width > 0 && rec.Height > 0 {
		fmt.Fprintf(&b, "%-12s %dx%d\n", "Size:", rec.Width, rec.Height)
	}
	fmt.Fprintf(&b, "%-12s %s %s\n", "Device:", rec.Device.Make, rec.Device.Model)
	fmt.Fprintf(&b, "%-12s %s\n", "Captured:", formatTime(rec.CapturedAt))
	b.WriteString(renderLocation(rec.Location))

	if rec.RecognitionError != "" {
		fmt.Fprintf(&b, "%-12s %s\n", "Recognition:", rec.RecognitionError)
		return b.String()
	}
	if len(rec.Detections) == 0 {
		fmt.Fprintf(&b, "%-12s %s\n", "Flowers:", "none detected")
		return b.String()
	}
	rows := make([][]string, 0, len(rec.Detections))
	for i, d := range rec.Detections {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			d.Label,
			fmt.Sprintf("%.2f", d.Confidence),
			fmt.Sprintf("(%d,%d)-(%d,%d)", d.BBox.X1, d.BBox.Y1, d.BBox.X2, d.BBox.Y2),
		})
	}
	b.WriteString(renderTable(tableSpec{
		title:   "Detections",
		headers: []string{"#", "Flower", "Confidence", "Box"},
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
	}, rows))
	b.WriteString("\n")
	return b.String()
}

func renderLocation(loc *photo.Location) string {
	var b strings.Builder
	switch {
	case loc == nil:
		fmt.Fprintf(&b, "%-12s %s\n", "Location:", photo.NoGPSMessage)
	case !loc.HasLocation:
		fmt.Fprintf(&b, "%-12s %s\n", "Location:", loc.Error)
	default:
		lat, lon, _ := loc.Coordinates()
		fmt.Fprintf(&b, "%-12s %.6f, %.6f\n", "Location:", lat, lon)
		if loc.RawLat != "" {
			fmt.Fprintf(&b, "%-12s %s / %s\n", "DMS:", loc.RawLat, loc.RawLon)
		}
		address := loc.FormattedAddress
		if loc.AddressSource != "" {
			address += " (" + loc.AddressSource + ")"
		}
		fmt.Fprintf(&b, "%-12s %s\n", "Address:", address)
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02 15:04:05")
}

func topLabel(rec *photo.Record) string {
	if rec.RecognitionError != "" {
		return "error"
	}
	if top, ok := rec.TopDetection(); ok {
		return fmt.Sprintf("%s %.2f", top.Label, top.Confidence)
	}
	return "-"
}

func locationSummary(rec *photo.Record) string {
	loc := rec.Location
	switch {
	case loc == nil || !loc.HasLocation:
		return "-"
	case loc.Pending():
		return photo.PendingAddress
	}
	return loc.FormattedAddress
}
