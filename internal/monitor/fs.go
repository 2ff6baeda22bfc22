package monitor

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/dshills/tasktrack/internal/project/watcher"
)

// FSMonitor coalesces on-disk change notifications for registered files into
// a map of path to existence.
type FSMonitor struct {
	mu      sync.Mutex
	changed map[string]bool

	watcher watcher.Watcher
	logger  *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewFSMonitor creates an FSMonitor over w and starts consuming its events.
// The monitor owns w and closes it.
func NewFSMonitor(w watcher.Watcher, opts ...Option) *FSMonitor {
	o := buildOptions(opts)
	m := &FSMonitor{
		changed: make(map[string]bool),
		watcher: w,
		logger:  o.logger,
		done:    make(chan struct{}),
	}
	m.wg.Add(1)
	go m.loop()
	return m
}

func (m *FSMonitor) loop() {
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
			m.mu.Lock()
			m.changed[ev.Path] = !ev.Op.Gone()
			m.mu.Unlock()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			m.logger.Warn("file watcher error", "error", err)
		}
	}
}

// Add registers path for change notification. Registering twice is not an error.
func (m *FSMonitor) Add(path string) error {
	err := m.watcher.WatchFile(path)
	if errors.Is(err, watcher.ErrAlreadyWatching) {
		return nil
	}
	return err
}

// Remove unregisters path and forgets its pending change.
func (m *FSMonitor) Remove(path string) error {
	m.mu.Lock()
	delete(m.changed, path)
	m.mu.Unlock()

	err := m.watcher.UnwatchFile(path)
	if errors.Is(err, watcher.ErrNotWatching) {
		return nil
	}
	return err
}

// GetChangedSince returns and clears the paths changed since the previous
// call, mapped to whether they still exist. It returns nil if none changed.
func (m *FSMonitor) GetChangedSince() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.changed) == 0 {
		return nil
	}
	out := m.changed
	m.changed = make(map[string]bool)
	return out
}

// Close stops the monitor and closes the watcher.
func (m *FSMonitor) Close() error {
	var err error
	m.once.Do(func() {
		close(m.done)
		m.wg.Wait()
		err = m.watcher.Close()
	})
	return err
}
