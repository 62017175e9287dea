package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudtop/internal/dispatch"
)

func rows(names ...string) []dispatch.Row {
	out := make([]dispatch.Row, 0, len(names))
	for _, n := range names {
		out = append(out, dispatch.Row{ID: n + "-id", Name: n})
	}
	return out
}

func TestStackTransitions(t *testing.T) {
	s := NewStack()
	root := s.Push(&Frame{Kind: KindList, ResourceKey: "vm-instances", Title: "VM Instances"})
	assert.Equal(t, 1, s.Depth())
	assert.Same(t, root, s.Top())
	assert.Same(t, root, s.TopList())

	desc := s.Push(&Frame{Kind: KindDescribe, Title: "web-1"})
	assert.Same(t, desc, s.Top())
	assert.Nil(t, s.TopList(), "describe on top must pause list refresh")

	require.True(t, s.Pop())
	assert.Same(t, root, s.Top())

	// the bottom frame never pops
	assert.False(t, s.Pop())
	assert.Equal(t, 1, s.Depth())
}

func TestGenerationsMonotonic(t *testing.T) {
	s := NewStack()
	a := s.Push(&Frame{Kind: KindList})
	b := s.Push(&Frame{Kind: KindList})
	assert.Greater(t, b.Gen, a.Gen)

	g1 := s.Bump(a)
	g2 := s.Bump(a)
	assert.Greater(t, g2, g1)
}

// A response from a superseded fetch must not overwrite newer rows.
func TestApplyRowsStaleDiscard(t *testing.T) {
	s := NewStack()
	f := s.Push(&Frame{Kind: KindList})

	oldGen := s.Bump(f)
	newGen := s.Bump(f)

	assert.False(t, f.ApplyRows(oldGen, rows("stale")))
	assert.Empty(t, f.Rows)

	assert.True(t, f.ApplyRows(newGen, rows("fresh")))
	require.Len(t, f.Rows, 1)
	assert.Equal(t, "fresh", f.Rows[0].Name)
}

// Selection follows the item identity across refreshes, not the index.
func TestApplyRowsKeepsSelectionByID(t *testing.T) {
	s := NewStack()
	f := s.Push(&Frame{Kind: KindList})

	gen := s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("a", "b", "c")))
	f.Selected = 2 // "c"

	gen = s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("c", "a", "b")))
	assert.Equal(t, 0, f.Selected)
	assert.Equal(t, "c", f.Rows[f.Selected].Name)
}

// With a filter active, Selected indexes the visible rows; a refresh
// that reorders items must still land on the same visible row.
func TestApplyRowsKeepsSelectionUnderFilter(t *testing.T) {
	s := NewStack()
	f := s.Push(&Frame{Kind: KindList})

	gen := s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("web-1", "db-1", "web-2")))
	f.Filter = "web"
	f.Selected = 1 // "web-2" within the visible view

	gen = s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("web-2", "db-1", "web-1")))

	row, ok := f.SelectedRow()
	require.True(t, ok)
	assert.Equal(t, "web-2", row.Name)
	assert.Equal(t, 0, f.Selected)
}

func TestApplyRowsSelectionGone(t *testing.T) {
	s := NewStack()
	f := s.Push(&Frame{Kind: KindList})

	gen := s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("a", "b")))
	f.Selected = 1

	gen = s.Bump(f)
	require.True(t, f.ApplyRows(gen, rows("x")))
	assert.Equal(t, 0, f.Selected)
}

func TestVisibleFilter(t *testing.T) {
	f := &Frame{Kind: KindList, Rows: rows("web-1", "web-2", "db-1")}

	f.Filter = "web"
	assert.Len(t, f.Visible(), 2)

	f.Filter = "DB"
	require.Len(t, f.Visible(), 1)
	assert.Equal(t, "db-1", f.Visible()[0].Name)

	f.Filter = ""
	assert.Len(t, f.Visible(), 3)
}

func TestMoveSelectionClamps(t *testing.T) {
	f := &Frame{Kind: KindList, Rows: rows("a", "b", "c")}

	f.MoveSelection(-5)
	assert.Equal(t, 0, f.Selected)
	f.MoveSelection(10)
	assert.Equal(t, 2, f.Selected)

	empty := &Frame{Kind: KindList}
	empty.MoveSelection(1)
	assert.Equal(t, 0, empty.Selected)
}

func TestSelectedRowRespectsFilter(t *testing.T) {
	f := &Frame{Kind: KindList, Rows: rows("web-1", "db-1", "web-2")}
	f.Filter = "web"
	f.Selected = 1

	row, ok := f.SelectedRow()
	require.True(t, ok)
	assert.Equal(t, "web-2", row.Name)

	f.Selected = 5
	_, ok = f.SelectedRow()
	assert.False(t, ok)
}
