// Package enrichment caches per-image results and coordinates the work that
// produces them.
//
// An Enricher owns a Cache and a scheduler. A single coordinator goroutine is
// the only writer of the Cache: public calls and scheduler events are both
// funnelled onto it. Opening an image runs recognition and metadata
// extraction at most once per path; addresses are resolved afterwards by a
// geocode task that updates the cached record in place. Batch runs the same
// steps sequentially over many images and reports aggregate counts.
package enrichment
