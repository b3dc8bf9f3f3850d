// Package photo holds the enrichment data model shared by the recognition,
// metadata, geocoding, and cache packages: detections, capture location,
// and the per-image record that merges them.
package photo
