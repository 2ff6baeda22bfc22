package tasklist

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/dshills/tasktrack/internal/config"
	"github.com/dshills/tasktrack/internal/monitor"
	"github.com/dshills/tasktrack/internal/project/vfs"
	"github.com/dshills/tasktrack/internal/scan"
)

// Action selects how Refresh treats a file.
type Action int

const (
	// ActionIfNeeded rescans only when the file changed and has settled.
	ActionIfNeeded Action = iota
	// ActionAlways rescans a scannable file unconditionally.
	ActionAlways
	// ActionRemove drops every task of the file.
	ActionRemove
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionIfNeeded:
		return "if-needed"
	case ActionAlways:
		return "always"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Env carries what a refresh reads besides the file itself.
type Env struct {
	FS     vfs.VFS
	Config *config.Config
	Now    time.Time
	Logger *slog.Logger
}

// Result reports the outcome of Refresh.
type Result struct {
	// Changed is true when the task set of the file changed.
	Changed bool
	// Deferred is true when a due scan was postponed, either because the
	// file has not settled yet or because it could not be read this time.
	Deferred bool
	Diff     Diff
}

// TrackedFile holds the scan state of one path.
type TrackedFile struct {
	path  string
	rules []scan.Rule

	// scanMu serialises Refresh.
	scanMu sync.Mutex

	mu        sync.Mutex
	scannable bool
	// lastScanned is the newest modification time scanned; zero means never.
	lastScanned time.Time
	// seenMod is the modification time of the last scan, which can be older
	// than lastScanned when the clock moved backwards.
	seenMod    time.Time
	tasks      []*Task
	labels     string
	hash       uint64
	generation uint64
	hashed     bool
	evicted    bool

	buffer   monitor.Buffer
	treeRefs map[*monitor.TreeNode]struct{}
}

// NewTrackedFile creates the record for path. Files with a binary extension
// or without comment rules are unscannable.
func NewTrackedFile(path string) *TrackedFile {
	f := &TrackedFile{
		path:     path,
		treeRefs: make(map[*monitor.TreeNode]struct{}),
	}
	if !scan.IsBinaryPath(path) {
		f.rules, f.scannable = scan.RulesForPath(path)
	}
	return f
}

// Path returns the tracked path.
func (f *TrackedFile) Path() string {
	return f.path
}

// Scannable reports whether the file can hold tasks.
func (f *TrackedFile) Scannable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scannable
}

// LastScanned returns the modification time of the newest scanned content.
func (f *TrackedFile) LastScanned() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastScanned
}

// Tasks returns the current tasks of the file.
func (f *TrackedFile) Tasks() []*Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Task(nil), f.tasks...)
}

// Buffer returns the attached buffer, if any.
func (f *TrackedFile) Buffer() monitor.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffer
}

// Referenced reports whether a tree node or a buffer refers to the file.
func (f *TrackedFile) Referenced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffer != nil || len(f.treeRefs) > 0
}

// ProjectLabels returns the captions of the projects that currently contain
// the file, sorted and comma separated.
func (f *TrackedFile) ProjectLabels() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.labelsLocked()
}

func (f *TrackedFile) labelsLocked() string {
	if len(f.treeRefs) == 0 {
		return ""
	}
	set := make(map[string]bool, len(f.treeRefs))
	for n := range f.treeRefs {
		if p := n.Project(); p != nil && p.Caption != "" {
			set[p.Caption] = true
		}
	}
	captions := make([]string, 0, len(set))
	for c := range set {
		captions = append(captions, c)
	}
	sort.Strings(captions)
	return strings.Join(captions, ", ")
}

// labelsStale reports whether the project labels differ from the ones the
// current tasks carry.
func (f *TrackedFile) labelsStale() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hashed && f.labels != f.labelsLocked()
}

func (f *TrackedFile) attachBuffer(b monitor.Buffer) {
	f.mu.Lock()
	f.buffer = b
	f.mu.Unlock()
}

func (f *TrackedFile) detachBuffer() {
	f.mu.Lock()
	f.buffer = nil
	f.mu.Unlock()
}

func (f *TrackedFile) clearTreeRefs() {
	f.mu.Lock()
	clear(f.treeRefs)
	f.mu.Unlock()
}

func (f *TrackedFile) addTreeRef(n *monitor.TreeNode) {
	f.mu.Lock()
	f.treeRefs[n] = struct{}{}
	f.mu.Unlock()
}

// Refresh brings the tasks of the file up to date according to action.
func (f *TrackedFile) Refresh(ctx context.Context, action Action, env Env) Result {
	f.scanMu.Lock()
	defer f.scanMu.Unlock()

	if action == ActionRemove {
		// Scannability is kept, so the file scans again once re-included.
		return f.reset()
	}

	f.mu.Lock()
	if f.evicted {
		f.mu.Unlock()
		return Result{}
	}
	scannable := f.scannable
	buf := f.buffer
	referenced := buf != nil || len(f.treeRefs) > 0
	labels := f.labelsLocked()
	prevLabels := f.labels
	seenMod := f.seenMod
	lastScanned := f.lastScanned
	f.mu.Unlock()

	if !scannable || !referenced {
		return Result{}
	}
	if ctx.Err() != nil {
		return Result{Deferred: true}
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		lines   []string
		loaded  bool
		modTime time.Time
	)
	if buf != nil {
		// Read the time first: an edit racing with Lines then carries a
		// newer time than the one recorded, so the next refresh rescans.
		modTime = buf.ModifiedAt().UTC()
		lines, loaded = buf.Lines()
	}
	if !loaded {
		info, err := env.FS.Stat(f.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return f.reset()
		case err != nil:
			logger.Debug("stat failed, retrying later", "path", f.path, "error", err)
			return Result{Deferred: true}
		case info.IsDir():
			return f.markUnscannable()
		}
		modTime = info.ModTime().UTC()
	}

	modChanged := !modTime.Equal(seenMod)
	if action == ActionIfNeeded {
		if !modChanged && labels == prevLabels {
			return Result{}
		}
		if modChanged && env.Now.Sub(modTime) < env.Config.ScanDelay() {
			return Result{Deferred: true}
		}
	}
	if !lastScanned.IsZero() && modTime.Before(lastScanned) {
		logger.Warn("modification time moved backwards", "path", f.path,
			"modTime", modTime, "lastScanned", lastScanned)
	}

	if !loaded {
		data, err := env.FS.ReadFile(f.path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return f.reset()
		case err != nil:
			logger.Debug("read failed, retrying later", "path", f.path, "error", err)
			return Result{Deferred: true}
		}
		data = vfs.StripBOM(data)
		if vfs.IsBinary(data) {
			logger.Debug("binary content, no longer scanned", "path", f.path)
			return f.markUnscannable()
		}
		lines = vfs.SplitLines(data)
	}

	return f.apply(lines, labels, modTime, env)
}

// apply scans lines and swaps in the new task set, reusing unchanged tasks.
func (f *TrackedFile) apply(lines []string, labels string, modTime time.Time, env Env) Result {
	hash := xxh3.HashString(strings.Join(lines, "\n"))
	generation := env.Config.Generation()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.seenMod = modTime
	if modTime.After(f.lastScanned) {
		f.lastScanned = modTime
	}
	if f.hashed && hash == f.hash && generation == f.generation && labels == f.labels {
		return Result{}
	}
	f.hash, f.generation, f.labels, f.hashed = hash, generation, labels, true

	old := f.tasks
	var next []*Task
	var diff Diff
	used := make(map[*Task]bool, len(old))
	for _, m := range scan.ScanLines(f.rules, env.Config.Tokens(), lines) {
		cand := &Task{
			Token:    m.Token.Text,
			Priority: m.Token.Priority,
			Path:     f.path,
			Line:     m.Line,
			Body:     m.Body,
			Projects: labels,
		}
		if env.Config.IsCommentExcluded(cand.ExclusionText()) {
			continue
		}
		if prev := findSame(old, cand, used); prev != nil {
			used[prev] = true
			next = append(next, prev)
			continue
		}
		next = append(next, cand)
		diff.Added = append(diff.Added, cand)
	}
	for _, t := range old {
		if !used[t] {
			diff.Removed = append(diff.Removed, t)
		}
	}
	f.tasks = next
	return Result{Changed: !diff.Empty(), Diff: diff}
}

func findSame(old []*Task, cand *Task, used map[*Task]bool) *Task {
	for _, t := range old {
		if !used[t] && t.same(cand) {
			return t
		}
	}
	return nil
}

// reset drops all tasks and forgets the scan state so the next refresh
// rescans from scratch.
func (f *TrackedFile) reset() Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := f.tasks
	f.tasks = nil
	f.lastScanned = time.Time{}
	f.seenMod = time.Time{}
	f.hash, f.generation, f.labels, f.hashed = 0, 0, "", false
	if len(removed) == 0 {
		return Result{}
	}
	return Result{Changed: true, Diff: Diff{Removed: removed}}
}

// evict marks the file as no longer tracked and drops its tasks. Later
// refreshes are no-ops.
func (f *TrackedFile) evict() Result {
	f.mu.Lock()
	f.evicted = true
	f.mu.Unlock()
	return f.Refresh(context.Background(), ActionRemove, Env{})
}

func (f *TrackedFile) markUnscannable() Result {
	res := f.reset()
	f.mu.Lock()
	f.scannable = false
	f.mu.Unlock()
	return res
}
