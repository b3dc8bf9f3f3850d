// Package main hosts the floravision CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, wires the detector
// backend, geocoder, snapshot store and enrichment cache, and then hands off
// to a subcommand: single-image enrichment, batches, annotation, cache and
// album maintenance, coordinate lookups, the HTTP API server, and preflight
// checks.
//
// Keep this package lean: new behaviour belongs in internal packages first and
// is surfaced here through dedicated commands or flags.
package main
