package enrichment

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"floravision/internal/geocode"
	"floravision/internal/logging"
	"floravision/internal/metadata"
	"floravision/internal/photo"
	"floravision/internal/scheduler"
	"floravision/internal/services"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("enricher closed")

// Recognizer detects flowers in an image.
type Recognizer interface {
	Recognize(ctx context.Context, path string, conf, iou float64) ([]photo.Detection, error)
}

// MetadataReader extracts EXIF metadata.
type MetadataReader interface {
	Extract(path string) (metadata.Record, error)
}

// AddressResolver turns coordinates into an address. It never fails.
type AddressResolver interface {
	Resolve(ctx context.Context, lat, lon float64) geocode.Address
}

// Snapshot persists cached records across sessions.
type Snapshot interface {
	// Lookup returns the stored record for path if it was saved for a file
	// with the given modification time.
	Lookup(ctx context.Context, path string, modTime time.Time) (*photo.Record, bool, error)
	Save(ctx context.Context, rec *photo.Record) error
	Clear(ctx context.Context) error
}

// Options configures an Enricher.
type Options struct {
	Confidence float64
	IOU        float64
	MaxEntries int
	Snapshot   Snapshot
	Logger     *slog.Logger
	// OnEvent is called on the coordinator goroutine for every scheduler
	// event and must not block.
	OnEvent func(scheduler.Event)
}

// Enricher coordinates recognition, metadata extraction, and geocoding for
// single images and batches.
type Enricher struct {
	opts       Options
	recognizer Recognizer
	reader     MetadataReader
	resolver   AddressResolver
	logger     *slog.Logger
	sched      *scheduler.Scheduler

	baseCtx    context.Context
	cancelBase context.CancelFunc
	requests   chan func()
	quit       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once

	subsMu  sync.Mutex
	subs    map[int]chan scheduler.Event
	nextSub int

	// Owned by the coordinator goroutine.
	cache    *Cache
	current  *openState
	batching map[string][]chan openResult
	geocode *geocodeRun
	settled []chan struct{}
}

type openResult struct {
	rec *photo.Record
	err error
}

type openState struct {
	path    string
	waiters []chan openResult

	recognitionID   string
	detections      []photo.Detection
	recognitionErr  error
	recognitionDone bool

	metadataID   string
	meta         metadata.Record
	metadataErr  error
	metadataDone bool
}

type geocodeRun struct {
	handle  *scheduler.Handle
	items   []scheduler.GeocodeItem
	applied map[string]bool
}

func (g *geocodeRun) covers(path string) bool {
	return slices.ContainsFunc(g.items, func(it scheduler.GeocodeItem) bool { return it.Path == path })
}

func (g *geocodeRun) remaining() []scheduler.GeocodeItem {
	var out []scheduler.GeocodeItem
	for _, it := range g.items {
		if !g.applied[it.Path] {
			out = append(out, it)
		}
	}
	return out
}

// GeocodeSummary is the result of a geocode task.
type GeocodeSummary struct {
	Total    int
	Resolved int
}

// New starts an Enricher. A nil resolver resolves addresses from the local
// region table only.
func New(recognizer Recognizer, reader MetadataReader, resolver AddressResolver, opts Options) *Enricher {
	if reader == nil {
		reader = metadata.NewExtractor(opts.Logger)
	}
	if resolver == nil {
		resolver = geocode.NewResolver(nil, geocode.Options{}, geocode.WithLogger(opts.Logger))
	}
	e := &Enricher{
		opts:       opts,
		recognizer: recognizer,
		reader:     reader,
		resolver:   resolver,
		logger:     logging.NewComponentLogger(opts.Logger, "enrichment"),
		requests:   make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		subs:       make(map[int]chan scheduler.Event),
		cache:      NewCache(opts.MaxEntries),
		batching:   make(map[string][]chan openResult),
	}
	e.cache.onEvict = func(path string) {
		e.logger.Debug("cache entry evicted",
			logging.String(logging.FieldImagePath, path),
			logging.Int("max_entries", opts.MaxEntries),
		)
	}
	e.baseCtx, e.cancelBase = context.WithCancel(context.Background())
	e.sched = scheduler.New(scheduler.NewExecutor(scheduler.Handlers{
		Recognition: e.runRecognition,
		Metadata:    e.runMetadata,
		Geocode:     e.runGeocode,
		Batch:       e.runBatch,
	}), scheduler.WithLogger(opts.Logger))
	go e.loop()
	return e
}

// Close cancels running work and stops the coordinator.
func (e *Enricher) Close() {
	e.closeOnce.Do(func() {
		e.cancelBase()
		close(e.quit)
		<-e.stopped
		e.sched.Close()
		e.subsMu.Lock()
		for id, ch := range e.subs {
			close(ch)
			delete(e.subs, id)
		}
		e.subsMu.Unlock()
	})
}

func (e *Enricher) loop() {
	defer close(e.stopped)
	events := e.sched.Events()
	for {
		select {
		case <-e.quit:
			e.shutdown()
			return
		case fn := <-e.requests:
			fn()
		case ev, ok := <-events:
			if !ok {
				e.shutdown()
				return
			}
			e.handleEvent(ev)
		}
		e.releaseSettled()
	}
}

func (e *Enricher) shutdown() {
	if st := e.current; st != nil {
		e.finishOpen(st, nil, ErrClosed)
	}
	for path := range e.batching {
		e.releaseClaim(path, nil, ErrClosed)
	}
	for _, ch := range e.settled {
		close(ch)
	}
	e.settled = nil
}

// do runs fn on the coordinator goroutine and waits for it. It must never be
// called from the coordinator itself.
func (e *Enricher) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case e.requests <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.quit:
		return ErrClosed
	}
	<-done
	return nil
}

// Open returns the enriched record for path, running recognition and
// metadata extraction only when the path is not cached. Concurrent opens of
// one path share a single run. Opening a different path while one is in
// flight supersedes it and its callers receive services.ErrSuperseded.
func (e *Enricher) Open(ctx context.Context, path string) (*photo.Record, error) {
	path = filepath.Clean(path)
	reply := make(chan openResult, 1)
	if err := e.do(ctx, func() { e.open(path, reply) }); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, ErrClosed
	}
}

func (e *Enricher) open(path string, reply chan openResult) {
	if rec, ok := e.cache.Get(path); ok {
		reply <- openResult{rec: rec.Clone()}
		e.maybeGeocode(rec)
		return
	}
	if rec := e.lookupSnapshot(path); rec != nil {
		e.cache.Put(path, rec)
		reply <- openResult{rec: rec.Clone()}
		e.maybeGeocode(rec)
		return
	}
	if waiters, ok := e.batching[path]; ok {
		e.batching[path] = append(waiters, reply)
		return
	}
	if st := e.current; st != nil {
		if st.path == path {
			st.waiters = append(st.waiters, reply)
			return
		}
		e.finishOpen(st, nil, services.NewTaskError(string(scheduler.CategoryRecognition), st.path, services.ErrSuperseded))
	}

	st := &openState{path: path, waiters: []chan openResult{reply}}
	e.current = st
	rh, err := e.sched.Start(e.baseCtx, scheduler.RecognitionTask(scheduler.RecognitionJob{
		Path:       path,
		Confidence: e.opts.Confidence,
		IOU:        e.opts.IOU,
	}))
	if err != nil {
		e.finishOpen(st, nil, err)
		return
	}
	st.recognitionID = rh.ID()
	mh, err := e.sched.Start(e.baseCtx, scheduler.MetadataTask(scheduler.MetadataJob{Path: path}))
	if err != nil {
		st.metadataErr = err
		st.metadataDone = true
		return
	}
	st.metadataID = mh.ID()
}

func (e *Enricher) handleEvent(ev scheduler.Event) {
	e.publish(ev)
	if ev.Kind == scheduler.EventProgress {
		return
	}
	switch ev.Category {
	case scheduler.CategoryRecognition:
		st := e.current
		if st == nil || st.recognitionID != ev.TaskID {
			return
		}
		st.recognitionDone = true
		if ev.Kind == scheduler.EventCompleted {
			st.detections, _ = ev.Result.([]photo.Detection)
		} else {
			st.recognitionErr = ev.Err
		}
		e.tryFinish(st)
	case scheduler.CategoryMetadata:
		st := e.current
		if st == nil || st.metadataID != ev.TaskID {
			return
		}
		st.metadataDone = true
		if ev.Kind == scheduler.EventCompleted {
			st.meta, _ = ev.Result.(metadata.Record)
		} else {
			st.metadataErr = ev.Err
		}
		e.tryFinish(st)
	case scheduler.CategoryGeocode:
		if g := e.geocode; g != nil && g.handle.ID() == ev.TaskID {
			e.geocode = nil
		}
	}
}

func (e *Enricher) tryFinish(st *openState) {
	if !st.recognitionDone || !st.metadataDone {
		return
	}
	if st.recognitionErr != nil {
		e.finishOpen(st, nil, st.recognitionErr)
		return
	}
	rec := buildRecord(st.path, st.detections, nil, st.meta, st.metadataErr)
	e.put(rec)
	e.finishOpen(st, rec, nil)
	e.maybeGeocode(rec)
}

func (e *Enricher) finishOpen(st *openState, rec *photo.Record, err error) {
	if e.current == st {
		e.current = nil
	}
	for _, w := range st.waiters {
		if rec != nil {
			w <- openResult{rec: rec.Clone()}
		} else {
			w <- openResult{err: err}
		}
	}
	st.waiters = nil
}

// claim serves path from the cache or snapshot, joins the open already
// recognizing it, or marks it as being enriched by the batch.
func (e *Enricher) claim(path string) (*photo.Record, chan openResult) {
	if rec, ok := e.cache.Get(path); ok {
		return rec.Clone(), nil
	}
	if rec := e.lookupSnapshot(path); rec != nil {
		e.cache.Put(path, rec)
		return rec.Clone(), nil
	}
	if st := e.current; st != nil && st.path == path {
		join := make(chan openResult, 1)
		st.waiters = append(st.waiters, join)
		return nil, join
	}
	e.batching[path] = nil
	return nil, nil
}

// releaseClaim stores the batch record for path, when there is one, and hands
// it to the opens that waited on the batch.
func (e *Enricher) releaseClaim(path string, rec *photo.Record, err error) {
	if rec != nil {
		e.put(rec)
	}
	waiters := e.batching[path]
	delete(e.batching, path)
	for _, w := range waiters {
		if rec != nil {
			w <- openResult{rec: rec.Clone()}
		} else {
			w <- openResult{err: err}
		}
	}
}

func (e *Enricher) put(rec *photo.Record) {
	e.cache.Put(rec.Path, rec)
	e.persist(rec)
}

func (e *Enricher) persist(rec *photo.Record) {
	if e.opts.Snapshot == nil {
		return
	}
	if err := e.opts.Snapshot.Save(e.baseCtx, rec.Clone()); err != nil {
		logging.WarnWithContext(e.logger, "snapshot save failed", "snapshot_save_failed",
			logging.String(logging.FieldImagePath, rec.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "record will be recomputed next session"),
		)
	}
}

func (e *Enricher) lookupSnapshot(path string) *photo.Record {
	if e.opts.Snapshot == nil {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	rec, ok, err := e.opts.Snapshot.Lookup(e.baseCtx, path, info.ModTime())
	if err != nil {
		e.logger.Debug("snapshot lookup failed", logging.String(logging.FieldImagePath, path), logging.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return rec
}

// maybeGeocode schedules address resolution for a pending record unless the
// running geocode task already covers it.
func (e *Enricher) maybeGeocode(rec *photo.Record) {
	if !rec.Location.Pending() {
		return
	}
	if g := e.geocode; g != nil && g.covers(rec.Path) && !g.applied[rec.Path] {
		return
	}
	lat, lon, _ := rec.Location.Coordinates()
	if _, err := e.startGeocode([]scheduler.GeocodeItem{{Path: rec.Path, Lat: lat, Lon: lon}}); err != nil {
		e.logger.Debug("geocode not scheduled", logging.String(logging.FieldImagePath, rec.Path), logging.Error(err))
	}
}

// startGeocode launches a geocode task for items plus whatever the running
// geocode task has not applied yet.
func (e *Enricher) startGeocode(items []scheduler.GeocodeItem) (*scheduler.Handle, error) {
	if g := e.geocode; g != nil {
		items = mergeItems(items, g.remaining())
	}
	h, err := e.sched.Start(e.baseCtx, scheduler.GeocodeTask(scheduler.GeocodeJob{Items: items}))
	if err != nil {
		return nil, err
	}
	e.geocode = &geocodeRun{handle: h, items: items, applied: make(map[string]bool, len(items))}
	return h, nil
}

func mergeItems(first, second []scheduler.GeocodeItem) []scheduler.GeocodeItem {
	seen := make(map[string]bool, len(first)+len(second))
	out := make([]scheduler.GeocodeItem, 0, len(first)+len(second))
	for _, it := range slices.Concat(first, second) {
		if seen[it.Path] {
			continue
		}
		seen[it.Path] = true
		out = append(out, it)
	}
	return out
}

func (e *Enricher) applyAddress(taskID, path string, addr geocode.Address) bool {
	if g := e.geocode; g != nil && g.handle.ID() == taskID {
		g.applied[path] = true
	}
	rec, ok := e.cache.Peek(path)
	if !ok || rec.Location == nil || !rec.Location.HasLocation {
		return false
	}
	loc := rec.Location.Clone()
	addr.Apply(loc)
	e.cache.UpdateLocation(path, loc)
	e.persist(rec)
	return true
}

func (e *Enricher) publish(ev scheduler.Event) {
	if e.opts.OnEvent != nil {
		e.opts.OnEvent(ev)
	}
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel receiving every scheduler event. Slow
// subscribers miss events rather than stall the coordinator. The returned
// function unsubscribes.
func (e *Enricher) Subscribe(buffer int) (<-chan scheduler.Event, func()) {
	if buffer <= 0 {
		buffer = 32
	}
	ch := make(chan scheduler.Event, buffer)
	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	e.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subsMu.Lock()
			defer e.subsMu.Unlock()
			if _, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(ch)
			}
		})
	}
}

func (e *Enricher) releaseSettled() {
	if len(e.settled) == 0 || e.current != nil || e.geocode != nil {
		return
	}
	for _, ch := range e.settled {
		close(ch)
	}
	e.settled = nil
}

// Settle waits until no open is in flight and no geocode task is pending.
func (e *Enricher) Settle(ctx context.Context) error {
	ch := make(chan struct{})
	if err := e.do(ctx, func() { e.settled = append(e.settled, ch) }); err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a copy of the cached record for path.
func (e *Enricher) Get(ctx context.Context, path string) (*photo.Record, bool) {
	path = filepath.Clean(path)
	var rec *photo.Record
	_ = e.do(ctx, func() {
		if cached, ok := e.cache.Peek(path); ok {
			rec = cached.Clone()
		}
	})
	return rec, rec != nil
}

// Records returns copies of every cached record ordered by path.
func (e *Enricher) Records(ctx context.Context) []*photo.Record {
	var out []*photo.Record
	_ = e.do(ctx, func() {
		for _, rec := range e.cache.Records() {
			out = append(out, rec.Clone())
		}
	})
	slices.SortFunc(out, func(a, b *photo.Record) int { return cmp.Compare(a.Path, b.Path) })
	return out
}

// Len returns the number of cached records.
func (e *Enricher) Len(ctx context.Context) int {
	n := 0
	_ = e.do(ctx, func() { n = e.cache.Len() })
	return n
}

// Restore loads records into the cache without persisting them again.
func (e *Enricher) Restore(ctx context.Context, records []*photo.Record) error {
	return e.do(ctx, func() {
		for _, rec := range records {
			if rec != nil && rec.Path != "" {
				e.cache.Put(rec.Path, rec.Clone())
			}
		}
	})
}

// Reset clears the cache and the snapshot.
func (e *Enricher) Reset(ctx context.Context) error {
	var snapErr error
	if err := e.do(ctx, func() {
		e.cache.Reset()
		if e.opts.Snapshot != nil {
			snapErr = e.opts.Snapshot.Clear(ctx)
		}
	}); err != nil {
		return err
	}
	return snapErr
}

// Running returns the handles of running tasks.
func (e *Enricher) Running() []*scheduler.Handle {
	return e.sched.Running()
}

// Cancel stops the running task of category.
func (e *Enricher) Cancel(category scheduler.Category) {
	e.sched.Cancel(category)
}

func (e *Enricher) runRecognition(ctx context.Context, job scheduler.RecognitionJob, progress scheduler.Reporter) (any, error) {
	if e.recognizer == nil {
		return nil, services.Wrap(services.ErrModelNotLoaded, "enrichment", "recognize", "no recognizer configured", nil)
	}
	progress.Progress(0, 1, "recognizing "+filepath.Base(job.Path))
	return e.recognizer.Recognize(ctx, job.Path, job.Confidence, job.IOU)
}

func (e *Enricher) runMetadata(ctx context.Context, job scheduler.MetadataJob, _ scheduler.Reporter) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.reader.Extract(job.Path)
}
