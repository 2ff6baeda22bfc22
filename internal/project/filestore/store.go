package filestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/tasktrack/internal/config/notify"
	perrors "github.com/dshills/tasktrack/internal/project/errors"
	"github.com/dshills/tasktrack/internal/project/vfs"
)

// EventType identifies a FileStore event.
type EventType int

const (
	// EventOpened is raised when a document is opened, loaded or pending.
	EventOpened EventType = iota
	// EventLoaded is raised when a pending document receives content.
	EventLoaded
	// EventChanged is raised when buffer content changes.
	EventChanged
	// EventSaved is raised after a document is written to disk.
	EventSaved
	// EventRenamed is raised when a document moves to a new path.
	EventRenamed
	// EventClosed is raised when a document is closed.
	EventClosed
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventOpened:
		return "opened"
	case EventLoaded:
		return "loaded"
	case EventChanged:
		return "changed"
	case EventSaved:
		return "saved"
	case EventRenamed:
		return "renamed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event describes a document change.
type Event struct {
	Type EventType
	Doc  *Document
	// Path is the document path after the event.
	Path string
	// OldPath is set for EventRenamed.
	OldPath string
}

// FileStore manages open documents.
type FileStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	vfs       vfs.VFS
	now       func() time.Time

	maxFileSize int64

	notifier *notify.Notifier[Event]
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithMaxFileSize sets the maximum file size to open. Zero means unlimited.
func WithMaxFileSize(size int64) Option {
	return func(s *FileStore) {
		s.maxFileSize = size
	}
}

// WithClock sets the clock used to stamp buffer edits.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		s.now = now
	}
}

// NewFileStore creates a FileStore reading from fsys.
func NewFileStore(fsys vfs.VFS, opts ...Option) *FileStore {
	s := &FileStore{
		documents:   make(map[string]*Document),
		vfs:         fsys,
		now:         time.Now,
		maxFileSize: 10 * 1024 * 1024,
		notifier:    notify.New[Event](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for document events. fn runs on the goroutine that
// changed the store.
func (s *FileStore) Subscribe(fn func(Event)) *notify.Subscription {
	return s.notifier.Subscribe(fn)
}

func (s *FileStore) abs(op, path string) (string, error) {
	if path == "" {
		return "", perrors.NewPathError(op, path, perrors.ErrInvalidPath)
	}
	absPath, err := s.vfs.Abs(path)
	if err != nil {
		return "", perrors.NewPathError(op, path, err)
	}
	return absPath, nil
}

// Open opens a file with its content loaded. An already open document is
// returned as is; a pending one is loaded.
func (s *FileStore) Open(ctx context.Context, path string) (*Document, error) {
	absPath, err := s.abs("open", path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	doc, ok := s.documents[absPath]
	s.mu.RUnlock()
	if ok {
		if !doc.IsLoaded() {
			return doc, s.Load(ctx, absPath)
		}
		return doc, nil
	}

	content, modTime, err := s.read("open", absPath)
	if err != nil {
		return nil, err
	}

	doc = newPendingDocument(absPath, s.now)
	doc.load(content, modTime)

	s.mu.Lock()
	if existing, ok := s.documents[absPath]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.documents[absPath] = doc
	s.mu.Unlock()

	s.notifier.Notify(Event{Type: EventOpened, Doc: doc, Path: absPath})
	return doc, nil
}

// OpenPending registers a placeholder document without reading the file.
func (s *FileStore) OpenPending(path string) (*Document, error) {
	absPath, err := s.abs("open", path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.documents[absPath]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	doc := newPendingDocument(absPath, s.now)
	s.documents[absPath] = doc
	s.mu.Unlock()

	s.notifier.Notify(Event{Type: EventOpened, Doc: doc, Path: absPath})
	return doc, nil
}

// Load reads the content of a pending document.
func (s *FileStore) Load(ctx context.Context, path string) error {
	absPath, err := s.abs("load", path)
	if err != nil {
		return err
	}
	doc, ok := s.Get(absPath)
	if !ok {
		return perrors.NewPathError("load", path, perrors.ErrDocumentNotOpen)
	}
	if doc.IsLoaded() {
		return nil
	}

	content, modTime, err := s.read("load", absPath)
	if err != nil {
		return err
	}
	doc.load(content, modTime)

	s.notifier.Notify(Event{Type: EventLoaded, Doc: doc, Path: absPath})
	return nil
}

func (s *FileStore) read(op, absPath string) ([]byte, time.Time, error) {
	info, err := s.vfs.Stat(absPath)
	if err != nil {
		return nil, time.Time{}, perrors.NewPathError(op, absPath, err)
	}
	if info.IsDir() {
		return nil, time.Time{}, perrors.NewPathError(op, absPath, perrors.ErrIsDirectory)
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return nil, time.Time{}, perrors.NewPathError(op, absPath, perrors.ErrFileTooLarge)
	}

	content, err := s.vfs.ReadFile(absPath)
	if err != nil {
		return nil, time.Time{}, perrors.NewPathError(op, absPath, err)
	}
	if vfs.IsBinary(content) {
		return nil, time.Time{}, perrors.NewPathError(op, absPath, perrors.ErrBinaryFile)
	}
	return content, info.ModTime(), nil
}

// Close closes a document. A dirty document is only closed when force is set.
func (s *FileStore) Close(ctx context.Context, path string, force bool) error {
	absPath, err := s.abs("close", path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	doc, ok := s.documents[absPath]
	if !ok {
		s.mu.Unlock()
		return perrors.NewPathError("close", path, perrors.ErrDocumentNotOpen)
	}
	if !force && doc.IsDirty() {
		s.mu.Unlock()
		return perrors.NewPathError("close", path, perrors.ErrDocumentDirty)
	}
	doc.markClosed()
	delete(s.documents, absPath)
	s.mu.Unlock()

	s.notifier.Notify(Event{Type: EventClosed, Doc: doc, Path: absPath})
	return nil
}

// CloseAll force-closes every document.
func (s *FileStore) CloseAll(ctx context.Context) {
	for _, doc := range s.OpenDocuments() {
		_ = s.Close(ctx, doc.Path(), true)
	}
}

// Get returns an open document.
func (s *FileStore) Get(path string) (*Document, bool) {
	absPath, err := s.vfs.Abs(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[absPath]
	return doc, ok
}

// IsOpen reports whether a document is open for path.
func (s *FileStore) IsOpen(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// OpenDocuments returns all open documents sorted by path.
func (s *FileStore) OpenDocuments() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path() < docs[j].Path() })
	return docs
}

// Count returns the number of open documents.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// UpdateContent replaces the buffer text of an open document. A pending
// document becomes loaded.
func (s *FileStore) UpdateContent(path string, content []byte) error {
	doc, ok := s.Get(path)
	if !ok {
		return perrors.NewPathError("update", path, perrors.ErrDocumentNotOpen)
	}

	wasLoaded := doc.IsLoaded()
	if !doc.setContent(content) {
		return nil
	}

	typ := EventChanged
	if !wasLoaded {
		typ = EventLoaded
	}
	s.notifier.Notify(Event{Type: typ, Doc: doc, Path: doc.Path()})
	return nil
}

// Save writes a document to disk.
func (s *FileStore) Save(ctx context.Context, path string) error {
	doc, ok := s.Get(path)
	if !ok {
		return perrors.NewPathError("save", path, perrors.ErrDocumentNotOpen)
	}
	if !doc.IsLoaded() {
		return perrors.NewPathError("save", path, perrors.ErrDocumentPending)
	}
	w, ok := s.vfs.(vfs.Writer)
	if !ok {
		return perrors.NewPathError("save", path, perrors.ErrReadOnly)
	}

	absPath := doc.Path()
	if err := w.WriteFile(absPath, doc.Content()); err != nil {
		return perrors.NewPathError("save", path, err)
	}

	modTime := s.now().UTC()
	if info, err := s.vfs.Stat(absPath); err == nil {
		modTime = info.ModTime()
	}
	doc.markSaved(modTime)

	s.notifier.Notify(Event{Type: EventSaved, Doc: doc, Path: absPath})
	return nil
}

// Rename moves an open document to newPath, renaming the file on disk when
// it exists there.
func (s *FileStore) Rename(ctx context.Context, oldPath, newPath string) error {
	oldAbs, err := s.abs("rename", oldPath)
	if err != nil {
		return err
	}
	newAbs, err := s.abs("rename", newPath)
	if err != nil {
		return err
	}
	if oldAbs == newAbs {
		return nil
	}

	s.mu.RLock()
	doc, ok := s.documents[oldAbs]
	_, exists := s.documents[newAbs]
	s.mu.RUnlock()
	if !ok {
		return perrors.NewPathError("rename", oldPath, perrors.ErrDocumentNotOpen)
	}
	if exists {
		return perrors.NewPathError("rename", newPath, perrors.ErrAlreadyOpen)
	}

	if _, err := s.vfs.Stat(oldAbs); err == nil {
		w, ok := s.vfs.(vfs.Writer)
		if !ok {
			return perrors.NewPathError("rename", oldPath, perrors.ErrReadOnly)
		}
		if err := w.Rename(oldAbs, newAbs); err != nil {
			return perrors.NewPathError("rename", oldPath, err)
		}
	}

	s.mu.Lock()
	if s.documents[oldAbs] != doc {
		s.mu.Unlock()
		return perrors.NewPathError("rename", oldPath, perrors.ErrDocumentNotOpen)
	}
	delete(s.documents, oldAbs)
	s.documents[newAbs] = doc
	doc.setPath(newAbs)
	s.mu.Unlock()

	s.notifier.Notify(Event{Type: EventRenamed, Doc: doc, Path: newAbs, OldPath: oldAbs})
	return nil
}
