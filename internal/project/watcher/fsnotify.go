package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FSNotifyWatcher implements Watcher using fsnotify.
type FSNotifyWatcher struct {
	mu sync.RWMutex

	watcher *fsnotify.Watcher
	config  Config

	// files are registered file paths.
	files map[string]bool
	// trees are registered tree roots.
	trees map[string]bool
	// dirs are the directories subscribed with fsnotify.
	dirs map[string]*dirWatch

	events chan Event
	errors chan error

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

type dirWatch struct {
	files int    // registered files in this directory
	tree  string // root of the tree this directory belongs to, if any
}

func (d *dirWatch) unused() bool {
	return d.files == 0 && d.tree == ""
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.Ignore == nil {
		config.Ignore = NewIgnore()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &FSNotifyWatcher{
		watcher: fsw,
		config:  config,
		files:   make(map[string]bool),
		trees:   make(map[string]bool),
		dirs:    make(map[string]*dirWatch),
		events:  make(chan Event, config.BufferSize),
		errors:  make(chan error, config.BufferSize),
		closeCh: make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	return w, nil
}

// WatchFile registers a file.
func (w *FSNotifyWatcher) WatchFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.files[absPath] {
		return ErrAlreadyWatching
	}

	dir := filepath.Dir(absPath)
	d, err := w.addDirLocked(dir)
	if err != nil {
		return err
	}
	d.files++
	w.files[absPath] = true
	return nil
}

// UnwatchFile removes a file registration.
func (w *FSNotifyWatcher) UnwatchFile(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.files[absPath] {
		return ErrNotWatching
	}
	delete(w.files, absPath)

	dir := filepath.Dir(absPath)
	if d, ok := w.dirs[dir]; ok {
		d.files--
		w.releaseDirLocked(dir, d)
	}
	return nil
}

// WatchTree watches root and its non-ignored subdirectories.
func (w *FSNotifyWatcher) WatchTree(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if !info.IsDir() {
		return ErrPathNotExist
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.trees[absRoot] {
		w.mu.Unlock()
		return ErrAlreadyWatching
	}
	w.trees[absRoot] = true
	w.mu.Unlock()

	return w.addTree(absRoot, absRoot)
}

// addTree subscribes every non-ignored directory under dir to the tree at root.
func (w *FSNotifyWatcher) addTree(root, dir string) error {
	var errs []error
	walkErr := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignoredBelow(root, p, true) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return ErrWatcherClosed
		}
		if !w.trees[root] {
			return filepath.SkipAll
		}
		dw, err := w.addDirLocked(p)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if dw.tree == "" {
			dw.tree = root
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errors.Join(errs...)
}

// UnwatchTree removes a tree registration.
func (w *FSNotifyWatcher) UnwatchTree(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if !w.trees[absRoot] {
		return ErrNotWatching
	}
	delete(w.trees, absRoot)

	for dir, d := range w.dirs {
		if d.tree == absRoot {
			d.tree = ""
			w.releaseDirLocked(dir, d)
		}
	}
	return nil
}

func (w *FSNotifyWatcher) addDirLocked(dir string) (*dirWatch, error) {
	if d, ok := w.dirs[dir]; ok {
		return d, nil
	}
	if err := w.watcher.Add(dir); err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrPathNotExist
		}
		return nil, err
	}
	d := &dirWatch{}
	w.dirs[dir] = d
	return d, nil
}

func (w *FSNotifyWatcher) releaseDirLocked(dir string, d *dirWatch) {
	if !d.unused() {
		return
	}
	delete(w.dirs, dir)
	// The directory may already be gone, in which case fsnotify dropped it.
	_ = w.watcher.Remove(dir)
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// IsWatching reports whether path is a registered file or tree root.
func (w *FSNotifyWatcher) IsWatching(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.files[absPath] || w.trees[absPath]
}

// WatchedPaths returns registered files and tree roots, sorted.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	paths := make([]string, 0, len(w.files)+len(w.trees))
	for p := range w.files {
		paths = append(paths, p)
	}
	for p := range w.trees {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close stops the watcher.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()

	close(w.events)
	close(w.errors)

	return w.watcher.Close()
}

func (w *FSNotifyWatcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case fsEvent, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(fsEvent)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) handleFSEvent(fsEvent fsnotify.Event) {
	op := convertOp(fsEvent.Op)
	if op == 0 {
		return
	}
	path := filepath.Clean(fsEvent.Name)

	w.mu.RLock()
	registered := w.files[path]
	tree := ""
	if d, ok := w.dirs[filepath.Dir(path)]; ok {
		tree = d.tree
	}
	if d, ok := w.dirs[path]; ok && tree == "" {
		tree = d.tree
	}
	w.mu.RUnlock()

	if !registered && tree == "" {
		return
	}

	var isDir bool
	if op.Has(OpCreate) {
		if info, err := os.Stat(path); err == nil {
			isDir = info.IsDir()
		}
	}
	if !registered && w.ignoredBelow(tree, path, isDir) {
		return
	}

	event := Event{
		Path:      path,
		Op:        op,
		Timestamp: time.Now(),
	}
	if w.config.EventFilter != nil && !w.config.EventFilter(event) {
		return
	}
	w.sendEvent(event)

	if isDir && tree != "" {
		if err := w.addTree(tree, path); err != nil {
			w.sendError(err)
		}
	}
}

func (w *FSNotifyWatcher) ignoredBelow(root, path string, isDir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return w.config.Ignore.Match(rel, isDir)
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (w *FSNotifyWatcher) sendEvent(event Event) {
	select {
	case w.events <- event:
	case <-w.closeCh:
	}
}

func (w *FSNotifyWatcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
		// Channel full, drop error
	}
}

var _ Watcher = (*FSNotifyWatcher)(nil)
