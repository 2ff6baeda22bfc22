package workspace

import (
	"context"
	"testing"

	"github.com/dshills/tasktrack/internal/project/vfs"
)

func TestOpen(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/work/product.code-workspace", `{
  "folders": [
    {"path": "app", "name": "Application", "exclude": ["gen/"]},
    {"path": "/abs/lib", "files": ["app/shared.go"]}
  ],
  "settings": {"editor.tabSize": 4}
}`)

	ws, err := Open(context.Background(), fsys, "/work/product.code-workspace")
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	if ws.Name() != "product" {
		t.Errorf("Name() = %q, want product", ws.Name())
	}
	folders := ws.Folders()
	if len(folders) != 2 {
		t.Fatalf("folders = %d, want 2", len(folders))
	}
	if folders[0].Path != "/work/app" || folders[0].Name != "Application" {
		t.Errorf("folder[0] = %+v", folders[0])
	}
	if len(folders[0].Exclude) != 1 {
		t.Errorf("Exclude = %v", folders[0].Exclude)
	}
	if folders[1].Path != "/abs/lib" || folders[1].Name != "lib" {
		t.Errorf("folder[1] = %+v", folders[1])
	}
	if len(folders[1].Files) != 1 || folders[1].Files[0] != "/work/app/shared.go" {
		t.Errorf("Files = %v", folders[1].Files)
	}
}

func TestOpen_Errors(t *testing.T) {
	fsys := vfs.NewMemFS()
	_ = fsys.AddFile("/w/empty.code-workspace", `{"folders": []}`)
	_ = fsys.AddFile("/w/bad.code-workspace", `{"folders": [`)
	_ = fsys.AddFile("/w/dup.code-workspace", `{"folders": [{"path": "a"}, {"path": "a"}]}`)

	ctx := context.Background()
	if _, err := Open(ctx, fsys, "/w/empty.code-workspace"); err != ErrNoFolders {
		t.Errorf("empty error = %v, want ErrNoFolders", err)
	}
	if _, err := Open(ctx, fsys, "/w/bad.code-workspace"); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Open(ctx, fsys, "/w/dup.code-workspace"); err == nil {
		t.Error("expected duplicate folder error")
	}
	if _, err := Open(ctx, fsys, "/w/missing.code-workspace"); err == nil {
		t.Error("expected read error")
	}
}
