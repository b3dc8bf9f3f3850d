package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"floravision/internal/logging"
	"floravision/internal/services"
)

const defaultEventBuffer = 64

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("scheduler closed")

// EventKind classifies scheduler events.
type EventKind string

// Event kinds.
const (
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Event reports progress or the outcome of a task.
type Event struct {
	TaskID   string
	Category Category
	Path     string
	Kind     EventKind
	Message  string
	Current  int
	Total    int
	Result   any
	Err      error
	At       time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.buffer = n
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// Scheduler runs at most one task per category.
type Scheduler struct {
	exec   *Executor
	logger *slog.Logger
	buffer int
	events chan Event

	mu      sync.Mutex
	lanes   map[Category]*sync.Mutex
	active  map[Category]*Handle
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup
}

// New constructs a scheduler around exec.
func New(exec *Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		exec:    exec,
		buffer:  defaultEventBuffer,
		lanes:   make(map[Category]*sync.Mutex),
		active:  make(map[Category]*Handle),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "scheduler")
	s.events = make(chan Event, s.buffer)
	return s
}

// Events returns the channel every event is published on. It is closed by
// Close once all workers have stopped.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

func (s *Scheduler) lane(category Category) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lane, ok := s.lanes[category]
	if !ok {
		lane = &sync.Mutex{}
		s.lanes[category] = lane
	}
	return lane
}

// Start launches task, first cancelling and joining any running task of the
// same category. The task context derives from ctx.
func (s *Scheduler) Start(ctx context.Context, task Task) (*Handle, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}
	lane := s.lane(task.Category)
	lane.Lock()
	defer lane.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	prev := s.active[task.Category]
	s.mu.Unlock()

	if prev != nil && !prev.State().Terminal() {
		prev.supersede()
		_, _ = prev.Wait()
		s.logger.Debug("task superseded",
			logging.String(logging.FieldTaskID, prev.ID()),
			logging.String(logging.FieldCategory, string(prev.Category())),
		)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	h := newHandle(uuid.NewString(), task, cancel)
	taskCtx = services.WithTaskID(taskCtx, h.ID())
	taskCtx = services.WithCategory(taskCtx, string(task.Category))
	if path := task.Path(); path != "" {
		taskCtx = services.WithImagePath(taskCtx, path)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrClosed
	}
	s.active[task.Category] = h
	h.setState(StateRunning)
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(taskCtx, h, task)
	return h, nil
}

// Active returns the latest handle for category, which may already be finished.
func (s *Scheduler) Active(category Category) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[category]
}

// Running returns the handles that are currently running.
func (s *Scheduler) Running() []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Handle
	for _, category := range Categories() {
		if h := s.active[category]; h != nil && h.State() == StateRunning {
			out = append(out, h)
		}
	}
	return out
}

// Cancel stops the running task of category and waits for it.
func (s *Scheduler) Cancel(category Category) {
	h := s.Active(category)
	if h == nil {
		return
	}
	h.Cancel()
	_, _ = h.Wait()
}

// Close cancels every task, waits for the workers, and closes the event channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.closing)
	handles := make([]*Handle, 0, len(s.active))
	for _, h := range s.active {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	s.wg.Wait()
	close(s.events)
}

func (s *Scheduler) run(ctx context.Context, h *Handle, task Task) {
	defer s.wg.Done()
	defer close(h.done)
	defer h.cancel()

	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()
	result, err := s.execute(ctx, h, task)

	switch {
	case h.Superseded():
		h.err = services.NewTaskError(string(h.category), h.path, services.ErrSuperseded)
		h.setState(StateCancelled)
		return
	case err == nil:
		h.result = result
		h.setState(StateCompleted)
		logger.Debug("task completed", logging.Duration("elapsed", time.Since(started)))
		s.emitFinal(h, Event{Kind: EventCompleted, Result: result})
	case ctx.Err() != nil:
		h.err = services.NewTaskError(string(h.category), h.path, ctx.Err())
		h.setState(StateCancelled)
		logger.Debug("task cancelled")
		s.emitFinal(h, Event{Kind: EventCancelled, Err: h.err})
	default:
		h.err = services.NewTaskError(string(h.category), h.path, err)
		h.setState(StateFailed)
		logging.WarnWithContext(logger, "task failed", "task_failed",
			logging.String(logging.FieldErrorHint, services.Kind(err)),
			logging.Error(err),
		)
		s.emitFinal(h, Event{Kind: EventFailed, Err: h.err, Result: result})
	}
}

func (s *Scheduler) execute(ctx context.Context, h *Handle, task Task) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrInference, "scheduler", "execute", fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.exec == nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "execute", "no executor", nil)
	}
	return s.exec.Execute(ctx, task, &reporter{s: s, h: h, ctx: ctx})
}

func (s *Scheduler) fill(h *Handle, ev Event) Event {
	ev.TaskID = h.id
	ev.Category = h.category
	ev.Path = h.path
	ev.At = time.Now()
	return ev
}

// emitFinal blocks until the event is accepted unless the task is superseded
// or the scheduler is closing.
func (s *Scheduler) emitFinal(h *Handle, ev Event) {
	select {
	case s.events <- s.fill(h, ev):
	case <-h.superseded:
	case <-s.closing:
	}
}

type reporter struct {
	s   *Scheduler
	h   *Handle
	ctx context.Context
}

// Progress publishes a progress event. It gives up when the task is cancelled.
func (r *reporter) Progress(current, total int, message string) {
	ev := r.s.fill(r.h, Event{Kind: EventProgress, Current: current, Total: total, Message: message})
	select {
	case r.s.events <- ev:
	case <-r.ctx.Done():
	}
}
