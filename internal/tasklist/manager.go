package tasklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/tasktrack/internal/config"
	"github.com/dshills/tasktrack/internal/monitor"
	"github.com/dshills/tasktrack/internal/project/vfs"
)

// ConfigSource supplies the current configuration snapshot.
type ConfigSource interface {
	Current() *config.Config
}

// Registrar registers files for on-disk change notification.
type Registrar interface {
	Add(path string) error
	Remove(path string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRegistrar sets where scannable, referenced files are registered for
// change notification.
func WithRegistrar(r Registrar) Option {
	return func(m *Manager) {
		m.registrar = r
	}
}

// WithClock sets the clock used for the settle delay.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the tracked files, applies monitor batches to them, runs the
// due scans and accumulates the resulting task diff.
type Manager struct {
	fsys      vfs.VFS
	source    ConfigSource
	registrar Registrar
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	files    map[string]*TrackedFile
	dirty    map[string]struct{}
	watched  map[string]bool
	diff     Diff
	disposed bool
}

// NewManager creates a Manager reading files through fsys.
func NewManager(fsys vfs.VFS, source ConfigSource, opts ...Option) *Manager {
	m := &Manager{
		fsys:    fsys,
		source:  source,
		logger:  slog.Default(),
		now:     time.Now,
		files:   make(map[string]*TrackedFile),
		dirty:   make(map[string]struct{}),
		watched: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ApplyTreeChanges replaces the tree references of every file with the
// file nodes of items. Files left without any reference are evicted, and
// files whose project labels changed are scheduled for a rescan.
func (m *Manager) ApplyTreeChanges(items []monitor.HierarchyItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}

	for _, f := range m.files {
		f.clearTreeRefs()
	}
	for _, it := range items {
		if it.Node == nil || it.Node.Kind != monitor.KindFile {
			continue
		}
		if err := ValidatePath(it.Node.Path); err != nil {
			m.logger.Debug("tree item skipped", "error", err)
			continue
		}
		f := m.fileLocked(it.Node.Path)
		f.addTreeRef(it.Node)
	}

	for path, f := range m.files {
		if !f.Referenced() {
			m.evictLocked(path, f)
			continue
		}
		if f.labelsStale() {
			m.dirty[path] = struct{}{}
		}
		m.syncWatchLocked(f)
	}
}

// ApplyBufferChanges attaches and detaches buffers. A file that loses its
// buffer and has no tree reference is evicted.
func (m *Manager) ApplyBufferChanges(changes map[string]monitor.BufferChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}

	for path, ch := range changes {
		if err := ValidatePath(path); err != nil {
			m.logger.Debug("buffer change skipped", "error", err)
			continue
		}
		switch ch.Kind {
		case monitor.BufferAttached:
			f := m.fileLocked(path)
			f.attachBuffer(ch.Buffer)
			m.dirty[path] = struct{}{}
			m.syncWatchLocked(f)
		case monitor.BufferDetached:
			f, ok := m.files[path]
			if !ok {
				continue
			}
			f.detachBuffer()
			if !f.Referenced() {
				m.evictLocked(path, f)
				continue
			}
			m.dirty[path] = struct{}{}
			m.syncWatchLocked(f)
		}
	}
}

// ApplyFSChanges schedules every tracked path in changes for a rescan.
// Whether the file still exists is rechecked by the scan itself.
func (m *Manager) ApplyFSChanges(changes map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	for path := range changes {
		if _, ok := m.files[path]; ok {
			m.dirty[path] = struct{}{}
		}
	}
}

// fileLocked returns the record for path, creating and scheduling it if new.
func (m *Manager) fileLocked(path string) *TrackedFile {
	f, ok := m.files[path]
	if !ok {
		f = NewTrackedFile(path)
		m.files[path] = f
		m.dirty[path] = struct{}{}
	}
	return f
}

func (m *Manager) evictLocked(path string, f *TrackedFile) {
	m.diff.Merge(f.evict().Diff)
	delete(m.files, path)
	delete(m.dirty, path)
	m.unwatchLocked(path)
}

// syncWatchLocked keeps a file registered for change notification exactly
// while it is scannable and referenced.
func (m *Manager) syncWatchLocked(f *TrackedFile) {
	if m.registrar == nil {
		return
	}
	path := f.Path()
	want := f.Scannable() && f.Referenced()
	switch {
	case want && !m.watched[path]:
		if err := m.registrar.Add(path); err != nil {
			m.logger.Debug("watch failed", "path", path, "error", err)
			return
		}
		m.watched[path] = true
	case !want && m.watched[path]:
		m.unwatchLocked(path)
	}
}

func (m *Manager) unwatchLocked(path string) {
	if m.registrar == nil || !m.watched[path] {
		return
	}
	if err := m.registrar.Remove(path); err != nil {
		m.logger.Debug("unwatch failed", "path", path, "error", err)
	}
	delete(m.watched, path)
}

// RunScans refreshes the scheduled files, or every file when updateAll is
// set, in parallel. Per-file failures are logged and never abort the batch.
// Files not reached before ctx ends stay scheduled.
func (m *Manager) RunScans(ctx context.Context, updateAll bool) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return ErrDisposed
	}
	cfg := m.source.Current()
	var targets []*TrackedFile
	if updateAll {
		for _, f := range m.files {
			targets = append(targets, f)
		}
	} else {
		for path := range m.dirty {
			targets = append(targets, m.files[path])
		}
	}
	clear(m.dirty)
	m.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	env := Env{FS: m.fsys, Config: cfg, Now: m.now(), Logger: m.logger}
	var (
		errMu sync.Mutex
		errs  []error
	)
	g := new(errgroup.Group)
	g.SetLimit(cfg.Parallelism())
	for _, f := range targets {
		g.Go(func() error {
			if ctx.Err() != nil {
				m.reschedule(f)
				return nil
			}
			res, err := m.refresh(ctx, f, updateAll, env)
			if err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			m.collect(f, res)
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		m.logger.Error("scan batch had failures", "count", len(errs), "error", errors.Join(errs...))
	}
	return ctx.Err()
}

func (m *Manager) refresh(ctx context.Context, f *TrackedFile, updateAll bool, env Env) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debug("scan panicked", "path", f.Path(), "stack", string(debug.Stack()))
			err = fmt.Errorf("scan %s: panic: %v", f.Path(), r)
		}
	}()

	action := ActionIfNeeded
	if updateAll {
		action = ActionAlways
	}
	if !env.Config.Enabled() || env.Config.IsPathExcluded(f.Path()) {
		action = ActionRemove
	}
	return f.Refresh(ctx, action, env), nil
}

// collect merges a scan result unless the manager was disposed meanwhile.
func (m *Manager) collect(f *TrackedFile, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.diff.Merge(res.Diff)
	if res.Deferred && m.files[f.Path()] == f {
		m.dirty[f.Path()] = struct{}{}
	}
	if m.files[f.Path()] == f {
		m.syncWatchLocked(f)
	}
}

func (m *Manager) reschedule(f *TrackedFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.disposed && m.files[f.Path()] == f {
		m.dirty[f.Path()] = struct{}{}
	}
}

// PopDiff returns and clears the accumulated diff.
func (m *Manager) PopDiff() Diff {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.diff
	m.diff = Diff{}
	return d
}

// RemoveAll drops the tasks of every file. The files stay tracked and are
// rescanned by the next full update.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	for _, f := range m.files {
		m.diff.Merge(f.Refresh(context.Background(), ActionRemove, Env{}).Diff)
	}
}

// Files returns the tracked paths, sorted.
func (m *Manager) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// File returns the record for path.
func (m *Manager) File(path string) (*TrackedFile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	return f, ok
}

// Pending returns the number of files scheduled for a rescan.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

// Tasks returns the current tasks of all files ordered by path and line.
func (m *Manager) Tasks() []*Task {
	m.mu.Lock()
	files := make([]*TrackedFile, 0, len(m.files))
	for _, f := range m.files {
		files = append(files, f)
	}
	m.mu.Unlock()

	var tasks []*Task
	for _, f := range files {
		tasks = append(tasks, f.Tasks()...)
	}
	SortTasks(tasks)
	return tasks
}

// SortTasks orders tasks by path, then line.
func SortTasks(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Path != tasks[j].Path {
			return tasks[i].Path < tasks[j].Path
		}
		return tasks[i].Line < tasks[j].Line
	})
}

// Dispose stops the manager. Scans still running have their results
// discarded.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	for path := range m.watched {
		m.unwatchLocked(path)
	}
	m.disposed = true
	m.files = make(map[string]*TrackedFile)
	clear(m.dirty)
	m.diff = Diff{}
}
