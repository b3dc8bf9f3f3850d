// Package store keeps a SQLite snapshot of enrichment records so a later
// session can reuse them without running recognition again.
//
// Each record is stored as a JSON payload keyed by image path together with
// the file modification time it was computed for; a changed file misses the
// snapshot. A flock on a sibling lock file keeps two processes from sharing
// one snapshot.
package store
