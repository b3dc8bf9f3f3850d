// Package geo converts EXIF GPS coordinates to decimal degrees and matches
// coordinates against a static province/city/district hierarchy.
//
// The hierarchy is read-only after construction, so a Matcher may be shared
// across goroutines without locking.
package geo
