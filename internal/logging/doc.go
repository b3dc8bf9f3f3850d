// Package logging assembles structured slog loggers and formatting helpers used
// across floravision.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so task code can tag log lines
// with image paths, task categories, and task IDs. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
