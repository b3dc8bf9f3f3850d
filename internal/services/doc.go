// Package services defines shared utilities consumed by the enrichment tasks
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp image paths, task categories, task IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper and TaskError type that
//     let the coordinator classify recognition, metadata, and geocoding
//     failures with errors.Is.
//
// Integrations with external services (the Nominatim reverse geocoder) live
// in subpackages.
package services
