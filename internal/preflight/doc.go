// Package preflight provides readiness checks for the detector backend, the
// geocoding service, and the filesystem paths floravision depends on.
//
// The CLI "floravision doctor" command runs RunAll and renders each Result;
// the API server reports the same results from GET /api/status. Checks for
// disabled features are reported as skipped rather than failed.
package preflight
