package monitor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/dshills/tasktrack/internal/config/notify"
	"github.com/dshills/tasktrack/internal/project/vfs"
	"github.com/dshills/tasktrack/internal/project/watcher"
	"github.com/dshills/tasktrack/internal/project/workspace"
	"github.com/dshills/tasktrack/internal/uiloop"
)

// TreeSource is the host tree model. Its methods are only called from the
// interactive context.
type TreeSource interface {
	Name() string
	Folders() []workspace.Folder
	Subscribe(fn func(workspace.ChangeEvent)) *notify.Subscription
}

// TreeSnapshot is the host state captured by Drain.
type TreeSnapshot struct {
	Name    string
	Folders []workspace.Folder
}

// Option configures a monitor. Options that do not apply to a monitor are
// ignored by it.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	ignore  *watcher.Ignore
	watcher watcher.Watcher
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIgnore replaces the default ignore patterns used by tree walks.
func WithIgnore(ig *watcher.Ignore) Option {
	return func(o *options) {
		if ig != nil {
			o.ignore = ig
		}
	}
}

// WithStructureWatcher makes the TreeMonitor watch folder directories and
// mark itself dirty when entries are created, removed or renamed. The monitor
// owns the watcher and closes it.
func WithStructureWatcher(w watcher.Watcher) Option {
	return func(o *options) {
		o.watcher = w
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), ignore: watcher.DefaultIgnore()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TreeMonitor tracks whether the workspace structure changed. Draining is
// split in two: Drain snapshots the folders on the interactive context and
// Walk does the directory I/O on a worker.
type TreeMonitor struct {
	mu     sync.Mutex
	dirty  bool
	closed bool

	source TreeSource
	fsys   vfs.VFS
	ignore *watcher.Ignore
	logger *slog.Logger
	sub    *notify.Subscription

	watcher watcher.Watcher
	watchMu sync.Mutex
	roots   map[string]bool

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewTreeMonitor creates a TreeMonitor. It starts dirty so the first drain
// yields the full tree.
func NewTreeMonitor(source TreeSource, fsys vfs.VFS, opts ...Option) *TreeMonitor {
	o := buildOptions(opts)
	m := &TreeMonitor{
		dirty:   true,
		source:  source,
		fsys:    fsys,
		ignore:  o.ignore,
		logger:  o.logger,
		watcher: o.watcher,
		roots:   make(map[string]bool),
		done:    make(chan struct{}),
	}
	m.sub = source.Subscribe(func(workspace.ChangeEvent) {
		m.MarkDirty()
	})
	if m.watcher != nil {
		m.wg.Add(1)
		go m.watchLoop()
	}
	return m
}

func (m *TreeMonitor) watchLoop() {
	defer m.wg.Done()
	events := m.watcher.Events()
	errs := m.watcher.Errors()
	for events != nil || errs != nil {
		select {
		case <-m.done:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op.Has(watcher.OpCreate) || ev.Op.Gone() {
				m.MarkDirty()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.logger.Warn("tree watcher error", "error", err)
		}
	}
}

// MarkDirty schedules a new walk.
func (m *TreeMonitor) MarkDirty() {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
}

// IsDirty reports whether a walk is pending.
func (m *TreeMonitor) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// Drain returns a snapshot of the host folders if the tree changed since the
// previous drain, or nil. ctx must belong to the interactive context.
func (m *TreeMonitor) Drain(ctx context.Context) (*TreeSnapshot, error) {
	if err := uiloop.Require(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed || !m.dirty {
		m.mu.Unlock()
		return nil, nil
	}
	m.dirty = false
	m.mu.Unlock()

	return &TreeSnapshot{Name: m.source.Name(), Folders: m.source.Folders()}, nil
}

// Walk expands snap into the flat list of solution, project and file items.
// A file reachable from several folders appears once per folder. If ctx ends
// the monitor is marked dirty again and ctx.Err() is returned.
func (m *TreeMonitor) Walk(ctx context.Context, snap *TreeSnapshot) ([]HierarchyItem, error) {
	if snap == nil {
		return nil, nil
	}

	solution := &TreeNode{Kind: KindSolution, Caption: snap.Name}
	items := []HierarchyItem{newItem(solution)}
	for _, f := range snap.Folders {
		project := &TreeNode{Path: f.Path, Kind: KindProject, Caption: f.Name, Parent: solution}
		items = append(items, newItem(project))

		var err error
		items, err = m.walkFolder(ctx, f, project, items)
		if err != nil {
			m.MarkDirty()
			return nil, err
		}
	}

	m.syncWatches(snap.Folders)
	return items, nil
}

func (m *TreeMonitor) walkFolder(ctx context.Context, f workspace.Folder, project *TreeNode, items []HierarchyItem) ([]HierarchyItem, error) {
	ig := m.ignore.With(f.Exclude...)
	patterns, err := watcher.ReadIgnoreFile(m.fsys, filepath.Join(f.Path, ".gitignore"))
	switch {
	case err == nil:
		ig = ig.With(patterns...)
	case !errors.Is(err, fs.ErrNotExist):
		m.logger.Debug("gitignore unreadable", "path", f.Path, "error", err)
	}

	seen := make(map[string]bool)
	err = m.fsys.Walk(f.Path, func(p string, info vfs.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			m.logger.Debug("tree walk skipped entry", "path", p, "error", err)
			return nil
		}
		if p == f.Path {
			return nil
		}
		rel, rerr := filepath.Rel(f.Path, p)
		if rerr != nil {
			return nil
		}
		if ig.Match(rel, info.IsDir()) {
			if info.IsDir() {
				return vfs.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		seen[p] = true
		items = append(items, newItem(&TreeNode{Path: p, Kind: KindFile, Caption: info.Name(), Parent: project}))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.logger.Warn("tree walk failed", "path", f.Path, "error", err)
	}

	for _, p := range f.Files {
		if seen[p] {
			continue
		}
		seen[p] = true
		items = append(items, newItem(&TreeNode{Path: p, Kind: KindFile, Caption: filepath.Base(p), Parent: project}))
	}
	return items, nil
}

// syncWatches keeps structure watches in line with the folder list.
func (m *TreeMonitor) syncWatches(folders []workspace.Folder) {
	if m.watcher == nil {
		return
	}
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	want := make(map[string]bool, len(folders))
	for _, f := range folders {
		want[f.Path] = true
	}
	for root := range m.roots {
		if want[root] {
			continue
		}
		if err := m.watcher.UnwatchTree(root); err != nil && !errors.Is(err, watcher.ErrNotWatching) {
			m.logger.Debug("unwatch folder failed", "path", root, "error", err)
		}
		delete(m.roots, root)
	}
	for root := range want {
		if m.roots[root] {
			continue
		}
		err := m.watcher.WatchTree(root)
		if err != nil && !errors.Is(err, watcher.ErrAlreadyWatching) {
			m.logger.Debug("watch folder failed", "path", root, "error", err)
			continue
		}
		m.roots[root] = true
	}
}

// Close stops the monitor and closes its structure watcher.
func (m *TreeMonitor) Close() error {
	var err error
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		m.sub.Unsubscribe()
		close(m.done)
		m.wg.Wait()
		if m.watcher != nil {
			err = m.watcher.Close()
		}
	})
	return err
}
