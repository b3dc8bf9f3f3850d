// Package metadata reads EXIF device, timestamp, dimension, and GPS data from
// image files using goexif.
//
// GPS coordinates are converted from the raw degree/minute/second rationals so
// malformed values surface as conversion problems on the record instead of
// being silently rejected. The address of a location is left pending for the
// geocoding task to fill in.
package metadata
