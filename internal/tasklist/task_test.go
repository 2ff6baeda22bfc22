package tasklist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path string
		ok   bool
	}{
		{"/src/main.go", true},
		{"", false},
		{"main.go", false},
		{"untitled:Untitled-1", false},
		{"file:///src/main.go", false},
		{"/src/<generated>", false},
	}
	for _, tt := range tests {
		err := ValidatePath(tt.path)
		if tt.ok {
			assert.NoError(t, err, tt.path)
			continue
		}
		require.Error(t, err, tt.path)
		assert.ErrorIs(t, err, ErrInvalidPath, tt.path)
		var pe *PathError
		assert.ErrorAs(t, err, &pe)
	}
}

func TestTaskIdentity(t *testing.T) {
	task := &Task{Token: "TODO", Path: "/src/pkg/parse.go", Line: 4, Body: "fix parsing"}

	assert.Equal(t, "parse.go", task.FileName())
	assert.Equal(t, Key{FileName: "parse.go", Body: "fix parsing"}, task.Key())
	assert.Equal(t, "parse.go: fix parsing", task.ExclusionText())

	moved := *task
	moved.Line = 9
	assert.Equal(t, task.Key(), moved.Key(), "keys survive line moves")
	assert.False(t, task.same(&moved))
}

func TestDiffMerge(t *testing.T) {
	a := &Task{Body: "a"}
	b := &Task{Body: "b"}
	c := &Task{Body: "c"}

	var d Diff
	assert.True(t, d.Empty())

	d.Merge(Diff{Added: []*Task{a, b}})
	d.Merge(Diff{Removed: []*Task{a, c}})

	assert.Equal(t, []*Task{b}, d.Added, "a was added and removed before the flush")
	assert.Equal(t, []*Task{c}, d.Removed)

	d.Merge(Diff{Added: []*Task{c}})
	assert.Nil(t, d.Removed, "c was removed and added back")
	assert.Equal(t, []*Task{b}, d.Added)

	d.Merge(Diff{})
	assert.Equal(t, []*Task{b}, d.Added)
}
