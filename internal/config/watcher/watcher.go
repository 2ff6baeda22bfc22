// Package watcher polls configuration files and reports settled changes.
//
// Editors save files in several steps (truncate, write, rename), so a single
// save can look like a remove followed by a create. Changes are held until a
// file has been quiet for the debounce period and then delivered once.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

// Operation is the kind of change observed on a watched file.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates the file appeared.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a settled change of one watched file.
type Event struct {
	Path string
	Op   Operation
	Time time.Time
}

// Handler is called for every settled change.
type Handler func(Event)

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithDebounce sets how long a file must stay unchanged before its change
// is delivered. Zero delivers changes on the poll that sees them.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger used for handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

type pending struct {
	op   Operation
	seen time.Time
}

// Watcher polls a set of files through a vfs.VFS.
type Watcher struct {
	fsys     vfs.VFS
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	files    map[string]time.Time // zero time: file absent
	pending  map[string]pending
	handlers []Handler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped watcher.
func New(fsys vfs.VFS, opts ...Option) *Watcher {
	w := &Watcher{
		fsys:     fsys,
		interval: 500 * time.Millisecond,
		debounce: 100 * time.Millisecond,
		logger:   slog.Default(),
		now:      time.Now,
		files:    make(map[string]time.Time),
		pending:  make(map[string]pending),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch adds a file. A file that does not exist yet is watched for creation.
func (w *Watcher) Watch(path string) error {
	abs, err := w.fsys.Abs(path)
	if err != nil {
		return err
	}
	mod, err := w.modTime(abs)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.files[abs] = mod
	w.mu.Unlock()
	return nil
}

// Unwatch removes a file and drops its undelivered change.
func (w *Watcher) Unwatch(path string) error {
	abs, err := w.fsys.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.files, abs)
	delete(w.pending, abs)
	w.mu.Unlock()
	return nil
}

// WatchedFiles returns the watched paths in sorted order.
func (w *Watcher) WatchedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// OnChange registers a handler.
func (w *Watcher) OnChange(h Handler) {
	w.mu.Lock()
	w.handlers = append(w.handlers, h)
	w.mu.Unlock()
}

// Start begins polling until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Poll()
			}
		}
	}()
}

// Stop stops polling and waits for the poller to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		w.wg.Wait()
	}
}

// Running reports whether the poller is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Poll checks every watched file once and delivers changes that have
// settled.
func (w *Watcher) Poll() {
	w.mu.Lock()
	files := make(map[string]time.Time, len(w.files))
	for p, m := range w.files {
		files[p] = m
	}
	w.mu.Unlock()

	for path, last := range files {
		if op, ok := w.check(path, last); ok {
			w.queue(path, op)
		}
	}
	w.deliver()
}

func (w *Watcher) modTime(path string) (time.Time, error) {
	info, err := w.fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (w *Watcher) check(path string, last time.Time) (Operation, bool) {
	mod, err := w.modTime(path)
	if err != nil {
		return 0, false
	}

	var op Operation
	switch {
	case mod.IsZero() && last.IsZero(), mod.Equal(last):
		return 0, false
	case mod.IsZero():
		op = OpRemove
	case last.IsZero():
		op = OpCreate
	default:
		op = OpWrite
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[path]; !ok {
		return 0, false
	}
	w.files[path] = mod
	return op, true
}

// queue coalesces changes: a remove wins, a create survives later writes,
// and a create after a remove is a write.
func (w *Watcher) queue(path string, op Operation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev, ok := w.pending[path]
	if ok {
		switch {
		case op == OpCreate && prev.op == OpRemove:
			op = OpWrite
		case op == OpWrite && prev.op == OpCreate:
			op = OpCreate
		}
	}
	w.pending[path] = pending{op: op, seen: w.now()}
}

func (w *Watcher) deliver() {
	now := w.now()

	w.mu.Lock()
	var ready []Event
	for path, p := range w.pending {
		if now.Sub(p.seen) >= w.debounce {
			ready = append(ready, Event{Path: path, Op: p.op, Time: p.seen})
			delete(w.pending, path)
		}
	}
	handlers := append([]Handler(nil), w.handlers...)
	w.mu.Unlock()

	sort.Slice(ready, func(i, j int) bool { return ready[i].Path < ready[j].Path })
	for _, ev := range ready {
		for _, h := range handlers {
			w.call(h, ev)
		}
	}
}

func (w *Watcher) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config watcher handler panicked", "path", ev.Path, "panic", r)
		}
	}()
	h(ev)
}
