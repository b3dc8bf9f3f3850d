package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
)

// State is the lifecycle position of a task.
type State int32

// Task states. A handle moves from Idle to Running and ends in one of the
// terminal states.
const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Handle tracks one started task.
type Handle struct {
	id       string
	category Category
	path     string
	cancel   context.CancelFunc

	state      atomic.Int32
	superseded chan struct{}
	supOnce    sync.Once
	done       chan struct{}

	result any
	err    error
}

func newHandle(id string, task Task, cancel context.CancelFunc) *Handle {
	return &Handle{
		id:         id,
		category:   task.Category,
		path:       task.Path(),
		cancel:     cancel,
		superseded: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// ID returns the task identifier carried on its events.
func (h *Handle) ID() string { return h.id }

// Category returns the task category.
func (h *Handle) Category() Category { return h.category }

// Path returns the image path of single-image tasks.
func (h *Handle) Path() string { return h.path }

// State returns the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

func (h *Handle) setState(s State) { h.state.Store(int32(s)) }

// Cancel requests cooperative cancellation. It does not wait.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the task has stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task stops and returns its result and error. A
// superseded task returns services.ErrSuperseded.
func (h *Handle) Wait() (any, error) {
	<-h.done
	return h.result, h.err
}

// Superseded reports whether a newer task in the same category replaced this one.
func (h *Handle) Superseded() bool {
	select {
	case <-h.superseded:
		return true
	default:
		return false
	}
}

func (h *Handle) supersede() {
	h.supOnce.Do(func() { close(h.superseded) })
	h.cancel()
}
