// Package scheduler runs enrichment work as cancellable background tasks.
//
// A Scheduler keeps at most one running task per Category. Starting a task in
// a busy category supersedes the previous one: its context is cancelled and
// Start joins it before launching the replacement, so results within a
// category arrive in start order. Workers report progress through a Reporter
// and every outcome is published on a single Event channel meant for one
// consumer. Events of superseded tasks are dropped.
//
// Tasks are a tagged variant. Exactly one payload matching Task.Category is
// set, and the Executor dispatches to the handler registered for it.
package scheduler
