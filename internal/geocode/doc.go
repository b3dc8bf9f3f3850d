// Package geocode resolves coordinates to human-readable addresses.
//
// Resolver calls a remote reverse-geocoding Provider with a per-attempt
// timeout and a bounded number of attempts, then falls back to the offline
// geo.Matcher. Resolution never fails from the caller's point of view: the
// worst case is an address built from the local region table, or the
// "unavailable" placeholder.
package geocode
