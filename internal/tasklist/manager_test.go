package tasklist

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tasktrack/internal/config"
	"github.com/dshills/tasktrack/internal/monitor"
	"github.com/dshills/tasktrack/internal/project/filestore"
	"github.com/dshills/tasktrack/internal/project/vfs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeRegistrar struct {
	mu      sync.Mutex
	watched map[string]bool
}

func (r *fakeRegistrar) Add(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watched[path] = true
	return nil
}

func (r *fakeRegistrar) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watched, path)
	return nil
}

func (r *fakeRegistrar) has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.watched[path]
}

type managerFixture struct {
	fsys      *vfs.MemFS
	store     *config.Store
	clock     *fakeClock
	registrar *fakeRegistrar
	m         *Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	opts := config.Defaults()
	opts.Tokens = []config.TokenOption{{Text: "TODO", Priority: "high"}, {Text: "HACK", Priority: "normal"}}
	store, err := config.NewStore(opts)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	fx := &managerFixture{
		fsys:      vfs.NewMemFS(),
		store:     store,
		clock:     &fakeClock{now: t0.Add(time.Minute)},
		registrar: &fakeRegistrar{watched: make(map[string]bool)},
	}
	fx.m = NewManager(fx.fsys, store, WithClock(fx.clock.Now), WithRegistrar(fx.registrar))
	return fx
}

func treeItems(project string, paths ...string) []monitor.HierarchyItem {
	solution := &monitor.TreeNode{Kind: monitor.KindSolution, Caption: "sln"}
	proj := &monitor.TreeNode{Path: "/p", Kind: monitor.KindProject, Caption: project, Parent: solution}
	items := []monitor.HierarchyItem{
		{Node: solution},
		{Node: proj, Ancestors: []*monitor.TreeNode{solution}},
	}
	for _, p := range paths {
		items = append(items, monitor.HierarchyItem{
			Node:      &monitor.TreeNode{Path: p, Kind: monitor.KindFile, Parent: proj},
			Ancestors: []*monitor.TreeNode{proj, solution},
		})
	}
	return items
}

func bodies(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Body)
	}
	sort.Strings(out)
	return out
}

func (fx *managerFixture) scan(t *testing.T, updateAll bool) Diff {
	t.Helper()
	require.NoError(t, fx.m.RunScans(context.Background(), updateAll))
	return fx.m.PopDiff()
}

func TestManager_TreeScan(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a1\n// HACK: a2\n", t0))
	require.NoError(t, fx.fsys.WriteFileAt("/p/b.go", "// TODO: b1\n", t0))
	require.NoError(t, fx.fsys.WriteFileAt("/p/logo.png", "\x89PNG", t0))

	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go", "/p/b.go", "/p/logo.png", "relative.go"))
	assert.Equal(t, []string{"/p/a.go", "/p/b.go", "/p/logo.png"}, fx.m.Files())

	diff := fx.scan(t, false)
	assert.Equal(t, []string{"a1", "a2", "b1"}, bodies(diff.Added))
	assert.Empty(t, diff.Removed)
	for _, task := range diff.Added {
		assert.Equal(t, "App", task.Projects)
	}

	assert.True(t, fx.registrar.has("/p/a.go"))
	assert.False(t, fx.registrar.has("/p/logo.png"), "unscannable files are not watched")

	assert.True(t, fx.scan(t, false).Empty(), "nothing scheduled")
	assert.True(t, fx.scan(t, true).Empty(), "a full rescan of unchanged files is quiet")
	assert.Len(t, fx.m.Tasks(), 3)
}

func TestManager_Debounce(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: v1\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	require.Len(t, fx.scan(t, false).Added, 1)

	t1 := t0.Add(time.Hour)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: v2\n", t1))
	fx.clock.Set(t1.Add(500 * time.Millisecond))
	fx.m.ApplyFSChanges(map[string]bool{"/p/a.go": true})
	assert.True(t, fx.scan(t, false).Empty(), "too soon after the edit")
	assert.Equal(t, 1, fx.m.Pending())

	t2 := t1.Add(time.Second)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: v3\n", t2))
	fx.clock.Set(t2.Add(500 * time.Millisecond))
	fx.m.ApplyFSChanges(map[string]bool{"/p/a.go": true})
	assert.True(t, fx.scan(t, false).Empty())

	fx.clock.Set(t2.Add(3 * time.Second))
	diff := fx.scan(t, false)
	assert.Equal(t, []string{"v3"}, bodies(diff.Added), "one rescan for both edits")
	assert.Equal(t, []string{"v1"}, bodies(diff.Removed))

	assert.True(t, fx.scan(t, false).Empty())
	assert.Equal(t, 0, fx.m.Pending())
}

func TestManager_ExcludeIsIdempotent(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/parse.go", "// TODO: fix parsing\n// TODO: other\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/parse.go"))
	diff := fx.scan(t, false)
	require.Len(t, diff.Added, 2)

	var target *Task
	for _, task := range diff.Added {
		if task.Body == "fix parsing" {
			target = task
		}
	}
	require.NotNil(t, target)
	require.NoError(t, fx.store.AddCommentExclusion(target.ExclusionText()))

	diff = fx.scan(t, true)
	assert.Equal(t, []*Task{target}, diff.Removed)
	assert.Empty(t, diff.Added)

	require.NoError(t, fx.store.AddCommentExclusion(target.ExclusionText()))
	assert.True(t, fx.scan(t, true).Empty())
	assert.Equal(t, []string{"other"}, bodies(fx.m.Tasks()))
}

func TestManager_PathExclusion(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/gen/a.go", "// TODO: generated\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/gen/a.go"))
	require.Len(t, fx.scan(t, false).Added, 1)

	require.NoError(t, fx.store.Update(func(o *config.Options) {
		o.ExcludeFilePathPatterns = []string{`/gen/`}
	}))
	diff := fx.scan(t, true)
	assert.Equal(t, []string{"generated"}, bodies(diff.Removed))
	assert.True(t, fx.scan(t, true).Empty())
}

func TestManager_Eviction(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	require.NoError(t, fx.fsys.WriteFileAt("/p/b.go", "// TODO: b\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go", "/p/b.go"))
	require.Len(t, fx.scan(t, false).Added, 2)

	fx.m.ApplyTreeChanges(treeItems("App", "/p/b.go"))
	diff := fx.m.PopDiff()
	assert.Equal(t, []string{"a"}, bodies(diff.Removed))
	assert.Equal(t, []string{"/p/b.go"}, fx.m.Files())
	assert.False(t, fx.registrar.has("/p/a.go"))
	assert.True(t, fx.registrar.has("/p/b.go"))
}

func TestManager_ProjectRename(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	first := fx.scan(t, false)
	require.Len(t, first.Added, 1)

	fx.m.ApplyTreeChanges(treeItems("Renamed", "/p/a.go"))
	assert.Equal(t, 1, fx.m.Pending())
	diff := fx.scan(t, false)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "Renamed", diff.Added[0].Projects)
	assert.Equal(t, first.Added, diff.Removed)
}

func TestManager_DeletedFile(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	require.Len(t, fx.scan(t, false).Added, 1)

	require.NoError(t, fx.fsys.Remove("/p/a.go"))
	fx.m.ApplyFSChanges(map[string]bool{"/p/a.go": false, "/p/untracked.go": true})
	diff := fx.scan(t, false)
	assert.Equal(t, []string{"a"}, bodies(diff.Removed))
	assert.Equal(t, []string{"/p/a.go"}, fx.m.Files(), "still referenced by the tree")
}

func TestManager_RenameOpenBuffer(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.cs", "// TODO: x\n", t0))
	docs := filestore.NewFileStore(fx.fsys)
	doc, err := docs.Open(context.Background(), "/p/a.cs")
	require.NoError(t, err)

	fx.m.ApplyBufferChanges(map[string]monitor.BufferChange{
		"/p/a.cs": {Path: "/p/a.cs", Kind: monitor.BufferAttached, Buffer: doc},
	})
	added := fx.scan(t, false).Added
	require.Len(t, added, 1)
	assert.Equal(t, "/p/a.cs", added[0].Path)

	require.NoError(t, docs.Rename(context.Background(), "/p/a.cs", "/p/b.cs"))
	fx.m.ApplyBufferChanges(map[string]monitor.BufferChange{
		"/p/a.cs": {Path: "/p/a.cs", Kind: monitor.BufferDetached},
		"/p/b.cs": {Path: "/p/b.cs", Kind: monitor.BufferAttached, Buffer: doc},
	})
	diff := fx.scan(t, false)

	require.Len(t, diff.Removed, 1)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "/p/a.cs", diff.Removed[0].Path)
	assert.Equal(t, "/p/b.cs", diff.Added[0].Path)
	assert.Equal(t, []string{"/p/b.cs"}, fx.m.Files())
	assert.Len(t, fx.m.Tasks(), 1)
}

func TestManager_RemoveAllAndReenable(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	require.Len(t, fx.scan(t, false).Added, 1)

	fx.m.RemoveAll()
	assert.Equal(t, []string{"a"}, bodies(fx.m.PopDiff().Removed))
	assert.Empty(t, fx.m.Tasks())

	assert.Equal(t, []string{"a"}, bodies(fx.scan(t, true).Added))
}

func TestManager_DisabledConfig(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	require.Len(t, fx.scan(t, false).Added, 1)

	require.NoError(t, fx.store.Update(func(o *config.Options) { o.Enabled = false }))
	assert.Len(t, fx.scan(t, true).Removed, 1)
	assert.True(t, fx.scan(t, true).Empty())
}

func TestManager_CancelledScanStaysScheduled(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fx.m.RunScans(ctx, false), context.Canceled)
	assert.True(t, fx.m.PopDiff().Empty())
	assert.Equal(t, 1, fx.m.Pending())
}

func TestManager_Dispose(t *testing.T) {
	fx := newManagerFixture(t)
	require.NoError(t, fx.fsys.WriteFileAt("/p/a.go", "// TODO: a\n", t0))
	fx.m.ApplyTreeChanges(treeItems("App", "/p/a.go"))
	require.True(t, fx.registrar.has("/p/a.go"))

	fx.m.Dispose()
	fx.m.Dispose()
	assert.ErrorIs(t, fx.m.RunScans(context.Background(), false), ErrDisposed)
	assert.Empty(t, fx.m.Files())
	assert.False(t, fx.registrar.has("/p/a.go"))
	assert.True(t, fx.m.PopDiff().Empty())
}
