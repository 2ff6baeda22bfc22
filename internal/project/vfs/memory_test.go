package vfs

import (
	"errors"
	"io/fs"
	"reflect"
	"syscall"
	"testing"
	"time"
)

func TestMemFS_AddFileAndRead(t *testing.T) {
	m := NewMemFS()
	if err := m.AddFile("/proj/src/main.go", "package main\n"); err != nil {
		t.Fatalf("AddFile failed: %v", err)
	}

	content, err := m.ReadFile("/proj/src/main.go")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "package main\n" {
		t.Errorf("content = %q", content)
	}

	info, err := m.Stat("/proj/src")
	if err != nil {
		t.Fatalf("Stat dir failed: %v", err)
	}
	if !info.IsDir() {
		t.Error("parent directory should be created")
	}
}

func TestMemFS_ReadFile_NotExist(t *testing.T) {
	m := NewMemFS()
	_, err := m.ReadFile("/missing.go")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestMemFS_ModTime(t *testing.T) {
	m := NewMemFS()
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.SetClock(func() time.Time { return base })

	_ = m.AddFile("/a.go", "x")
	info, _ := m.Stat("/a.go")
	if !info.ModTime().Equal(base) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), base)
	}

	later := base.Add(time.Minute)
	if err := m.SetModTime("/a.go", later); err != nil {
		t.Fatalf("SetModTime failed: %v", err)
	}
	info, _ = m.Stat("/a.go")
	if !info.ModTime().Equal(later) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), later)
	}
}

func TestMemFS_SetReadError(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/locked.go", "x")
	_ = m.SetReadError("/locked.go", syscall.EACCES)

	if _, err := m.ReadFile("/locked.go"); !errors.Is(err, syscall.EACCES) {
		t.Errorf("err = %v, want EACCES", err)
	}
	if _, err := m.Stat("/locked.go"); err != nil {
		t.Errorf("Stat should still work, got %v", err)
	}

	_ = m.SetReadError("/locked.go", nil)
	if _, err := m.ReadFile("/locked.go"); err != nil {
		t.Errorf("ReadFile after unlock = %v", err)
	}
}

func TestMemFS_RenameAndRemove(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/p/a.cs", "x")

	if err := m.Rename("/p/a.cs", "/p/b.cs"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if got := m.Files(); !reflect.DeepEqual(got, []string{"/p/b.cs"}) {
		t.Errorf("Files = %v", got)
	}

	if err := m.Remove("/p"); err == nil {
		t.Error("removing non-empty dir should fail")
	}
	if err := m.Remove("/p/b.cs"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(m.Files()) != 0 {
		t.Errorf("Files = %v, want none", m.Files())
	}
}

func TestMemFS_Walk(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/r/b.go", "")
	_ = m.AddFile("/r/a/x.go", "")
	_ = m.AddFile("/r/skip/y.go", "")

	var visited []string
	err := m.Walk("/r", func(p string, info FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == "skip" {
			return SkipDir
		}
		visited = append(visited, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	want := []string{"/r", "/r/a", "/r/a/x.go", "/r/b.go"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}
