// Package notifications delivers enrichment events to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so callers
// publish unconditionally. Event toggles in the [notifications] config section
// suppress individual event kinds.
package notifications
