package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/tasktrack/internal/config/notify"
	"github.com/dshills/tasktrack/internal/project/filestore"
	"github.com/dshills/tasktrack/internal/uiloop"
)

// Buffer is the live content of an open document.
type Buffer interface {
	// Lines returns the buffer text, or false while the document is a
	// placeholder whose content has not been loaded.
	Lines() ([]string, bool)
	// ModifiedAt is the time of the last content change.
	ModifiedAt() time.Time
}

// BufferKind says whether a buffer was attached to or detached from a path.
type BufferKind int

const (
	// BufferAttached means the path has an open buffer.
	BufferAttached BufferKind = iota
	// BufferDetached means the path's buffer was closed or moved away.
	BufferDetached
)

// String returns the kind name.
func (k BufferKind) String() string {
	if k == BufferDetached {
		return "detached"
	}
	return "attached"
}

// BufferChange is the latest buffer state of one path.
type BufferChange struct {
	Path   string
	Kind   BufferKind
	Buffer Buffer
}

// BufferSource is the host editor buffer model.
type BufferSource interface {
	OpenDocuments() []*filestore.Document
	Subscribe(fn func(filestore.Event)) *notify.Subscription
}

// BufferMonitor collects buffer attach and detach changes keyed by path.
// Later changes for a path replace earlier ones.
type BufferMonitor struct {
	mu      sync.Mutex
	changes map[string]BufferChange
	primed  bool
	closed  bool

	source BufferSource
	sub    *notify.Subscription
}

// NewBufferMonitor creates a BufferMonitor. Documents already open are
// reported by the first Drain.
func NewBufferMonitor(source BufferSource) *BufferMonitor {
	m := &BufferMonitor{
		changes: make(map[string]BufferChange),
		source:  source,
	}
	m.sub = source.Subscribe(m.handle)
	return m
}

func (m *BufferMonitor) handle(ev filestore.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	switch ev.Type {
	case filestore.EventOpened, filestore.EventLoaded, filestore.EventChanged, filestore.EventSaved:
		m.changes[ev.Path] = BufferChange{Path: ev.Path, Kind: BufferAttached, Buffer: ev.Doc}
	case filestore.EventRenamed:
		m.changes[ev.OldPath] = BufferChange{Path: ev.OldPath, Kind: BufferDetached}
		m.changes[ev.Path] = BufferChange{Path: ev.Path, Kind: BufferAttached, Buffer: ev.Doc}
	case filestore.EventClosed:
		m.changes[ev.Path] = BufferChange{Path: ev.Path, Kind: BufferDetached}
	}
}

// Drain returns and clears the accumulated changes, or nil if there are none.
// The first call enumerates the documents already open and must run on the
// interactive context, which is also where documents are opened and closed.
func (m *BufferMonitor) Drain(ctx context.Context) (map[string]BufferChange, error) {
	m.mu.Lock()
	primed := m.primed
	m.mu.Unlock()

	var open []*filestore.Document
	if !primed {
		if err := uiloop.Require(ctx); err != nil {
			return nil, err
		}
		open = m.source.OpenDocuments()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil
	}
	if !primed {
		m.primed = true
		for _, doc := range open {
			m.changes[doc.Path()] = BufferChange{Path: doc.Path(), Kind: BufferAttached, Buffer: doc}
		}
	}
	if len(m.changes) == 0 {
		return nil, nil
	}
	out := m.changes
	m.changes = make(map[string]BufferChange)
	return out, nil
}

// Close stops listening for document events.
func (m *BufferMonitor) Close() {
	m.mu.Lock()
	m.closed = true
	m.changes = nil
	m.mu.Unlock()
	m.sub.Unsubscribe()
}
