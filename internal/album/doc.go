// Package album groups enrichment records into categories and exports them
// as folders on disk.
//
// Records are grouped either by their highest-confidence flower label or by
// the province and city their GPS position resolved to. Export copies every
// image of a grouping into <dest>/<mode>_classification_<timestamp>/<group>/
// with integrity verification; name collisions get a numeric suffix.
package album
