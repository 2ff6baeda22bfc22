package watcher

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// ManualWatcher is a Watcher whose events are injected with Emit. It pairs
// with vfs.MemFS, where no operating system notifications exist, and applies
// the same registration filtering as FSNotifyWatcher.
type ManualWatcher struct {
	mu     sync.Mutex
	files  map[string]bool
	trees  map[string]bool
	ignore *Ignore
	events chan Event
	errors chan error
	closed bool
}

// NewManualWatcher creates a ManualWatcher.
func NewManualWatcher(opts ...Option) *ManualWatcher {
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
	return &ManualWatcher{
		files:  make(map[string]bool),
		trees:  make(map[string]bool),
		ignore: config.Ignore,
		events: make(chan Event, config.BufferSize),
		errors: make(chan error, config.BufferSize),
	}
}

// WatchFile registers a file.
func (m *ManualWatcher) WatchFile(path string) error {
	return m.register(m.files, path)
}

// UnwatchFile removes a file registration.
func (m *ManualWatcher) UnwatchFile(path string) error {
	return m.unregister(m.files, path)
}

// WatchTree registers a tree root.
func (m *ManualWatcher) WatchTree(root string) error {
	return m.register(m.trees, root)
}

// UnwatchTree removes a tree registration.
func (m *ManualWatcher) UnwatchTree(root string) error {
	return m.unregister(m.trees, root)
}

func (m *ManualWatcher) register(set map[string]bool, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrWatcherClosed
	}
	path = filepath.Clean(path)
	if set[path] {
		return ErrAlreadyWatching
	}
	set[path] = true
	return nil
}

func (m *ManualWatcher) unregister(set map[string]bool, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrWatcherClosed
	}
	path = filepath.Clean(path)
	if !set[path] {
		return ErrNotWatching
	}
	delete(set, path)
	return nil
}

// Emit delivers an event for path if a file or tree registration covers it.
// It reports whether the event was delivered.
func (m *ManualWatcher) Emit(path string, op Op) bool {
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.coversLocked(path) {
		return false
	}
	m.events <- Event{Path: path, Op: op, Timestamp: time.Now()}
	return true
}

// EmitError delivers an error.
func (m *ManualWatcher) EmitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.errors <- err
	}
}

func (m *ManualWatcher) coversLocked(path string) bool {
	if m.files[path] {
		return true
	}
	for root := range m.trees {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if !m.ignore.Match(rel, false) {
			return true
		}
	}
	return false
}

// Events returns the event channel.
func (m *ManualWatcher) Events() <-chan Event {
	return m.events
}

// Errors returns the error channel.
func (m *ManualWatcher) Errors() <-chan error {
	return m.errors
}

// IsWatching reports whether path is a registered file or tree root.
func (m *ManualWatcher) IsWatching(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	return m.files[path] || m.trees[path]
}

// WatchedPaths returns registered files and tree roots, sorted.
func (m *ManualWatcher) WatchedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.files)+len(m.trees))
	for p := range m.files {
		paths = append(paths, p)
	}
	for p := range m.trees {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close closes the event and error channels.
func (m *ManualWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	close(m.errors)
	return nil
}

var _ Watcher = (*ManualWatcher)(nil)
