package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/tasktrack/internal/project/filestore"
	"github.com/dshills/tasktrack/internal/project/vfs"
	"github.com/dshills/tasktrack/internal/uiloop"
)

func drainBuffers(t *testing.T, l *uiloop.Loop, m *BufferMonitor) map[string]BufferChange {
	t.Helper()
	var out map[string]BufferChange
	require.NoError(t, l.Invoke(context.Background(), func(ctx context.Context) error {
		var err error
		out, err = m.Drain(ctx)
		return err
	}))
	return out
}

func TestBufferMonitor_FirstDrainEnumerates(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/p/a.go", "// TODO: a\n"))
	store := filestore.NewFileStore(fsys)
	_, err := store.Open(context.Background(), "/p/a.go")
	require.NoError(t, err)

	l := uiloop.New()
	defer l.Close()
	m := NewBufferMonitor(store)
	defer m.Close()

	_, err = m.Drain(context.Background())
	assert.ErrorIs(t, err, uiloop.ErrNotInteractive)

	changes := drainBuffers(t, l, m)
	require.Contains(t, changes, "/p/a.go")
	assert.Equal(t, BufferAttached, changes["/p/a.go"].Kind)
	lines, ok := changes["/p/a.go"].Buffer.Lines()
	require.True(t, ok)
	assert.Equal(t, []string{"// TODO: a"}, lines)

	assert.Nil(t, drainBuffers(t, l, m))

	// Later drains do not need the interactive context.
	require.NoError(t, store.UpdateContent("/p/a.go", []byte("// TODO: b\n")))
	changes, err = m.Drain(context.Background())
	require.NoError(t, err)
	assert.Len(t, changes, 1)
}

func TestBufferMonitor_RenameIsDetachPlusAttach(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/p/a.cs", "// TODO: x\n"))
	store := filestore.NewFileStore(fsys)

	l := uiloop.New()
	defer l.Close()
	m := NewBufferMonitor(store)
	defer m.Close()
	assert.Nil(t, drainBuffers(t, l, m))

	_, err := store.Open(context.Background(), "/p/a.cs")
	require.NoError(t, err)
	require.NoError(t, store.Rename(context.Background(), "/p/a.cs", "/p/b.cs"))

	changes := drainBuffers(t, l, m)
	require.Len(t, changes, 2)
	assert.Equal(t, BufferDetached, changes["/p/a.cs"].Kind)
	assert.Nil(t, changes["/p/a.cs"].Buffer)
	assert.Equal(t, BufferAttached, changes["/p/b.cs"].Kind)
	assert.NotNil(t, changes["/p/b.cs"].Buffer)
}

func TestBufferMonitor_PendingAndClose(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/p/a.go", "// TODO: x\n"))
	store := filestore.NewFileStore(fsys)

	l := uiloop.New()
	defer l.Close()
	m := NewBufferMonitor(store)
	defer m.Close()
	drainBuffers(t, l, m)

	_, err := store.OpenPending("/p/a.go")
	require.NoError(t, err)
	changes := drainBuffers(t, l, m)
	require.Contains(t, changes, "/p/a.go")
	_, ok := changes["/p/a.go"].Buffer.Lines()
	assert.False(t, ok, "a pending document exposes no content")

	require.NoError(t, store.Close(context.Background(), "/p/a.go", true))
	changes = drainBuffers(t, l, m)
	assert.Equal(t, BufferDetached, changes["/p/a.go"].Kind)
}

func TestBufferMonitor_LatestChangeWins(t *testing.T) {
	fsys := vfs.NewMemFS()
	require.NoError(t, fsys.AddFile("/p/a.go", "x\n"))
	store := filestore.NewFileStore(fsys)

	l := uiloop.New()
	defer l.Close()
	m := NewBufferMonitor(store)
	defer m.Close()
	drainBuffers(t, l, m)

	_, err := store.Open(context.Background(), "/p/a.go")
	require.NoError(t, err)
	require.NoError(t, store.Close(context.Background(), "/p/a.go", true))

	changes := drainBuffers(t, l, m)
	require.Len(t, changes, 1)
	assert.Equal(t, BufferDetached, changes["/p/a.go"].Kind)
}
