// Package orchestrator wires the change monitors to the task manager and
// publishes task changes to a consumer.
//
// Two loops run while the orchestrator is started. The reconcile loop wakes
// every scan delay, drains the monitors, applies their batches to the
// manager, runs the due scans and queues the resulting diff. The flush loop
// wakes every flush interval and hands the queued diff to the interactive
// context, where the published task set is updated and subscribers are told.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/tasktrack/internal/config"
	"github.com/dshills/tasktrack/internal/config/notify"
	"github.com/dshills/tasktrack/internal/monitor"
	"github.com/dshills/tasktrack/internal/project/filestore"
	"github.com/dshills/tasktrack/internal/project/vfs"
	"github.com/dshills/tasktrack/internal/project/watcher"
	"github.com/dshills/tasktrack/internal/tasklist"
	"github.com/dshills/tasktrack/internal/uiloop"
)

// State is the lifecycle state of an Orchestrator.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// TasksChanged is raised on the interactive context after each flush that
// changed the published task set.
type TasksChanged struct {
	Added   []*tasklist.Task
	Removed []*tasklist.Task
}

// Location is where a task lives.
type Location struct {
	Path string
	Line int
}

// WatcherFactory creates a change watcher for one run.
type WatcherFactory func() (watcher.Watcher, error)

// Options configures an Orchestrator.
type Options struct {
	// Workspace is the host tree. Required.
	Workspace monitor.TreeSource
	// Documents is the host buffer model. Required.
	Documents *filestore.FileStore
	// Config supplies settings and receives comment exclusions. Required.
	Config *config.Store
	// Loop is the interactive context. Required.
	Loop *uiloop.Loop

	// FS is used for every read. Defaults to the operating system.
	FS vfs.VFS
	// FileWatcher, when set, reports on-disk edits of tracked files.
	FileWatcher WatcherFactory
	// TreeWatcher, when set, reports files created or removed under the
	// workspace folders.
	TreeWatcher WatcherFactory

	Logger *slog.Logger
	Clock  func() time.Time
}

// session holds the components of one Start/Stop cycle.
type session struct {
	tree    *monitor.TreeMonitor
	buffers *monitor.BufferMonitor
	files   *monitor.FSMonitor
	manager *tasklist.Manager
	cfgSub  *notify.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Orchestrator schedules reconciliation and publishes task changes.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	state atomic.Int32
	sess  *session

	busy        atomic.Bool
	updateAll   atomic.Bool
	flushQueued atomic.Bool

	// pubMu guards the queued diff and the published set together so a
	// flush and a teardown never interleave.
	pubMu     sync.RWMutex
	queue     tasklist.Diff
	published map[*tasklist.Task]struct{}

	notifier *notify.Notifier[TasksChanged]
}

// New validates opts and creates a stopped Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Workspace == nil:
		return nil, fmt.Errorf("%w: workspace is required", ErrInvalidOptions)
	case opts.Documents == nil:
		return nil, fmt.Errorf("%w: documents are required", ErrInvalidOptions)
	case opts.Config == nil:
		return nil, fmt.Errorf("%w: config store is required", ErrInvalidOptions)
	case opts.Loop == nil:
		return nil, fmt.Errorf("%w: interactive loop is required", ErrInvalidOptions)
	}
	if opts.FS == nil {
		opts.FS = vfs.NewOSFS()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Orchestrator{
		opts:      opts,
		logger:    opts.Logger,
		published: make(map[*tasklist.Task]struct{}),
		notifier:  notify.New[TasksChanged](),
	}, nil
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Start builds the monitors and the manager and starts both loops. The
// first reconcile runs immediately. Cancelling ctx stops the loops but not
// the components; call Stop to release them.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	s, err := o.newSession()
	if err != nil {
		o.state.Store(int32(StateStopped))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.cfgSub = o.opts.Config.Subscribe(func(cfg *config.Config) {
		o.onConfig(s, cfg)
	})
	o.updateAll.Store(false)
	o.flushQueued.Store(false)

	s.wg.Add(2)
	go o.flushLoop(runCtx, s)
	go o.reconcileLoop(runCtx, s)

	o.sess = s
	o.state.Store(int32(StateRunning))
	o.logger.Debug("orchestrator started")
	return nil
}

func (o *Orchestrator) newSession() (*session, error) {
	s := &session{}

	treeOpts := []monitor.Option{monitor.WithLogger(o.logger)}
	if o.opts.TreeWatcher != nil {
		w, err := o.opts.TreeWatcher()
		if err != nil {
			return nil, &InitError{Component: "tree watcher", Err: err}
		}
		treeOpts = append(treeOpts, monitor.WithStructureWatcher(w))
	}

	managerOpts := []tasklist.Option{
		tasklist.WithLogger(o.logger),
		tasklist.WithClock(o.opts.Clock),
	}
	if o.opts.FileWatcher != nil {
		w, err := o.opts.FileWatcher()
		if err != nil {
			return nil, &InitError{Component: "file watcher", Err: err}
		}
		s.files = monitor.NewFSMonitor(w, monitor.WithLogger(o.logger))
		managerOpts = append(managerOpts, tasklist.WithRegistrar(s.files))
	}

	s.tree = monitor.NewTreeMonitor(o.opts.Workspace, o.opts.FS, treeOpts...)
	s.buffers = monitor.NewBufferMonitor(o.opts.Documents)
	s.manager = tasklist.NewManager(o.opts.FS, o.opts.Config, managerOpts...)
	return s, nil
}

// Stop halts both loops, releases the monitors and clears the published
// tasks. No subscriber is called once Stop has begun, so consumers drop their
// own task lists when Stop returns. Stop is idempotent and may be called from
// a subscriber callback.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.State() != StateRunning {
		o.mu.Unlock()
		return
	}
	o.state.Store(int32(StateStopping))
	s := o.sess
	o.sess = nil
	o.mu.Unlock()

	s.cfgSub.Unsubscribe()
	s.cancel()
	s.wg.Wait()

	s.manager.Dispose()
	s.buffers.Close()
	if err := s.tree.Close(); err != nil {
		o.logger.Debug("tree monitor close", "error", err)
	}
	if s.files != nil {
		if err := s.files.Close(); err != nil {
			o.logger.Debug("file monitor close", "error", err)
		}
	}

	o.pubMu.Lock()
	o.queue = tasklist.Diff{}
	clear(o.published)
	o.pubMu.Unlock()

	o.state.Store(int32(StateStopped))
	o.logger.Debug("orchestrator stopped")
}

func (o *Orchestrator) onConfig(s *session, cfg *config.Config) {
	if !cfg.Enabled() {
		s.manager.RemoveAll()
		o.enqueue(s.manager.PopDiff())
	}
	o.updateAll.Store(true)
}

func (o *Orchestrator) flushLoop(ctx context.Context, s *session) {
	defer s.wg.Done()

	interval := o.opts.Config.Current().FlushInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.requestFlush()
			if next := o.opts.Config.Current().FlushInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (o *Orchestrator) reconcileLoop(ctx context.Context, s *session) {
	defer s.wg.Done()

	o.reconcile(ctx, s)

	interval := o.opts.Config.Current().ScanDelay()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.reconcile(ctx, s)
			if next := o.opts.Config.Current().ScanDelay(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// reconcile is one background pass. Overlapping passes are skipped.
func (o *Orchestrator) reconcile(ctx context.Context, s *session) {
	if !o.busy.CompareAndSwap(false, true) {
		return
	}
	defer o.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("reconcile panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if !o.opts.Config.Current().Enabled() {
		return
	}

	var (
		snap    *monitor.TreeSnapshot
		buffers map[string]monitor.BufferChange
	)
	err := o.opts.Loop.Invoke(ctx, func(ictx context.Context) error {
		var err error
		if snap, err = s.tree.Drain(ictx); err != nil {
			return err
		}
		buffers, err = s.buffers.Drain(ictx)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("draining monitors failed", "error", err)
		}
		return
	}

	if snap != nil {
		items, err := s.tree.Walk(ctx, snap)
		if err != nil {
			return
		}
		s.manager.ApplyTreeChanges(items)
	}
	if buffers != nil {
		s.manager.ApplyBufferChanges(buffers)
	}
	if s.files != nil {
		if changed := s.files.GetChangedSince(); changed != nil {
			s.manager.ApplyFSChanges(changed)
		}
	}

	updateAll := o.updateAll.Swap(false)
	if err := s.manager.RunScans(ctx, updateAll); err != nil {
		if updateAll {
			o.updateAll.Store(true)
		}
		if !errors.Is(err, context.Canceled) {
			o.logger.Warn("scan pass failed", "error", err)
		}
		return
	}
	if !o.opts.Config.Current().Enabled() {
		s.manager.RemoveAll()
	}
	o.enqueue(s.manager.PopDiff())
}

func (o *Orchestrator) enqueue(d tasklist.Diff) {
	if d.Empty() {
		return
	}
	o.pubMu.Lock()
	o.queue.Merge(d)
	o.pubMu.Unlock()
}

// requestFlush posts a flush unless one is already queued. It reports false
// if the interactive loop is closed.
func (o *Orchestrator) requestFlush() bool {
	if !o.flushQueued.CompareAndSwap(false, true) {
		return true
	}
	if !o.opts.Loop.Post(o.flush) {
		o.flushQueued.Store(false)
		return false
	}
	return true
}

// flush publishes the queued diff. It runs on the interactive context and
// does nothing once Stop has begun.
func (o *Orchestrator) flush(ctx context.Context) {
	o.flushQueued.Store(false)

	o.pubMu.Lock()
	if o.State() != StateRunning || o.queue.Empty() {
		o.pubMu.Unlock()
		return
	}
	d := o.queue
	o.queue = tasklist.Diff{}
	for _, t := range d.Removed {
		delete(o.published, t)
	}
	for _, t := range d.Added {
		o.published[t] = struct{}{}
	}
	o.pubMu.Unlock()

	o.notifier.Notify(TasksChanged{Added: d.Added, Removed: d.Removed})
}

// Subscribe registers fn for task changes. fn runs on the interactive context
// and is not called after Stop has begun, including for the remaining
// subscribers of a flush during which Stop was called.
func (o *Orchestrator) Subscribe(fn func(TasksChanged)) *notify.Subscription {
	return o.notifier.Subscribe(func(ev TasksChanged) {
		if o.State() == StateRunning {
			fn(ev)
		}
	})
}

// Rescan schedules every tracked file for a full rescan on the next pass.
func (o *Orchestrator) Rescan() error {
	if o.State() != StateRunning {
		return ErrNotRunning
	}
	o.updateAll.Store(true)
	return nil
}

// Tasks returns the published tasks ordered by path and line.
func (o *Orchestrator) Tasks() []*tasklist.Task {
	o.pubMu.RLock()
	tasks := make([]*tasklist.Task, 0, len(o.published))
	for t := range o.published {
		tasks = append(tasks, t)
	}
	o.pubMu.RUnlock()
	tasklist.SortTasks(tasks)
	return tasks
}

// Navigate opens the buffer holding task and returns its location. The line
// is clamped to the buffer length.
func (o *Orchestrator) Navigate(ctx context.Context, task *tasklist.Task) (Location, error) {
	if task == nil {
		return Location{}, ErrNoTask
	}
	loc := Location{Path: task.Path, Line: task.Line}
	err := o.opts.Loop.Invoke(ctx, func(ictx context.Context) error {
		doc, err := o.opts.Documents.Open(ictx, task.Path)
		if err != nil {
			return err
		}
		if n := doc.LineCount(); n > 0 && loc.Line > n {
			loc.Line = n
		}
		return nil
	})
	if err != nil {
		return Location{}, fmt.Errorf("navigate to %s: %w", task.Path, err)
	}
	return loc, nil
}

// ExcludeComment suppresses task from now on by adding its exclusion text to
// the configuration, which triggers a full rescan.
func (o *Orchestrator) ExcludeComment(task *tasklist.Task) error {
	if task == nil {
		return ErrNoTask
	}
	return o.opts.Config.AddCommentExclusion(task.ExclusionText())
}
