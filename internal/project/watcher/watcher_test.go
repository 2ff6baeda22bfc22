package watcher

import (
	"testing"
)

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
		{Op(0), "UNKNOWN"},
		{OpCreate | OpWrite, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOp_HasAndGone(t *testing.T) {
	tests := []struct {
		op   Op
		has  Op
		want bool
		gone bool
	}{
		{OpCreate, OpCreate, true, false},
		{OpCreate | OpWrite, OpWrite, true, false},
		{OpWrite, OpRemove, false, false},
		{OpRemove, OpRemove, true, true},
		{OpRename | OpChmod, OpChmod, true, true},
	}

	for _, tt := range tests {
		if got := tt.op.Has(tt.has); got != tt.want {
			t.Errorf("Op(%d).Has(%d) = %v, want %v", tt.op, tt.has, got, tt.want)
		}
		if got := tt.op.Gone(); got != tt.gone {
			t.Errorf("Op(%d).Gone() = %v, want %v", tt.op, got, tt.gone)
		}
	}
}

func TestOptions(t *testing.T) {
	config := DefaultConfig()
	if config.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", config.BufferSize)
	}
	if config.Ignore == nil || config.Ignore.Len() != len(DefaultIgnorePatterns) {
		t.Error("default Ignore should hold DefaultIgnorePatterns")
	}

	WithBufferSize(10)(&config)
	WithIgnore(NewIgnore("*.tmp"))(&config)
	WithEventFilter(func(Event) bool { return false })(&config)

	if config.BufferSize != 10 {
		t.Errorf("BufferSize = %d, want 10", config.BufferSize)
	}
	if config.Ignore.Len() != 1 {
		t.Errorf("Ignore.Len() = %d, want 1", config.Ignore.Len())
	}
	if config.EventFilter == nil {
		t.Error("EventFilter should be set")
	}
}
