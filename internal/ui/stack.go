package ui

import (
	"context"
	"strings"

	"cloudtop/internal/dispatch"
)

// Kind discriminates the frame types on the navigation stack.
type Kind int

const (
	KindList Kind = iota
	KindDescribe
	KindDialog
	KindPicker
	KindFilter
)

// Frame is one entry on the navigation stack. List frames own rows
// and a selection; Describe frames carry the raw payload of a single
// item; overlay frames (dialog, picker, filter) render above the
// frame beneath them.
type Frame struct {
	Kind        Kind
	ResourceKey string
	Ctx         dispatch.Context
	Rows        []dispatch.Row
	Selected    int
	Filter      string
	Title       string

	// gen tags in-flight fetches; responses carrying a stale gen
	// are discarded.
	Gen uint64

	// Fetch reloads the frame's rows. Set by the app when the frame
	// is pushed; list refresh reuses it so sub-resource frames keep
	// their parent binding.
	Fetch func(context.Context) ([]dispatch.Row, error)

	// describe payload
	Raw []byte

	// dialog state
	Message     string
	Destructive bool
	OnConfirm   func()

	// picker state
	Items    []PickerItem
	OnPick   func(PickerItem)
	PickerQ  string
	PickerIx int
}

// PickerItem is one selectable entry in a picker overlay.
type PickerItem struct {
	ID    string
	Label string
	Score int
}

// Stack is the navigation state machine. It is a pure model: no
// goroutines, no IO, every mutation happens on the caller's thread.
type Stack struct {
	frames  []*Frame
	nextGen uint64
}

func NewStack() *Stack {
	return &Stack{nextGen: 1}
}

func (s *Stack) Push(f *Frame) *Frame {
	f.Gen = s.nextGen
	s.nextGen++
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the top frame. The bottom frame never pops; quitting
// is a separate gesture.
func (s *Stack) Pop() bool {
	if len(s.frames) <= 1 {
		return false
	}
	s.frames = s.frames[:len(s.frames)-1]
	return true
}

func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) Depth() int {
	return len(s.frames)
}

// TopList returns the topmost frame if it is a list, else nil. Only
// this frame auto-refreshes.
func (s *Stack) TopList() *Frame {
	f := s.Top()
	if f == nil || f.Kind != KindList {
		return nil
	}
	return f
}

// Bump assigns the frame a fresh generation and returns it. Call
// before starting a fetch so stale responses can be told apart.
func (s *Stack) Bump(f *Frame) uint64 {
	f.Gen = s.nextGen
	s.nextGen++
	return f.Gen
}

// ApplyRows installs fetched rows onto the frame if the generation
// still matches. The previous selection is preserved by row ID when
// the item survives, otherwise clamped.
func (f *Frame) ApplyRows(gen uint64, rows []dispatch.Row) bool {
	if gen != f.Gen {
		return false
	}
	// Selected indexes the visible view, so the previous row and the
	// restored index both go through Visible().
	var prevID string
	if prev, ok := f.SelectedRow(); ok {
		prevID = prev.ID
	}
	f.Rows = rows
	f.Selected = 0
	if prevID != "" {
		for i, r := range f.Visible() {
			if r.ID == prevID {
				f.Selected = i
				break
			}
		}
	}
	return true
}

// Visible returns the rows after the frame's substring filter.
// Filtering is a view concern; f.Rows always holds the full set.
func (f *Frame) Visible() []dispatch.Row {
	if f.Filter == "" {
		return f.Rows
	}
	q := strings.ToLower(f.Filter)
	out := make([]dispatch.Row, 0, len(f.Rows))
	for _, r := range f.Rows {
		if strings.Contains(strings.ToLower(r.Name), q) || strings.Contains(strings.ToLower(r.ID), q) {
			out = append(out, r)
		}
	}
	return out
}

// MoveSelection shifts the selection by delta within the visible
// rows, clamping at both ends.
func (f *Frame) MoveSelection(delta int) {
	n := len(f.Visible())
	if n == 0 {
		f.Selected = 0
		return
	}
	f.Selected += delta
	if f.Selected < 0 {
		f.Selected = 0
	}
	if f.Selected >= n {
		f.Selected = n - 1
	}
}

// SelectedRow returns the currently selected visible row.
func (f *Frame) SelectedRow() (dispatch.Row, bool) {
	vis := f.Visible()
	if f.Selected < 0 || f.Selected >= len(vis) {
		return dispatch.Row{}, false
	}
	return vis[f.Selected], true
}
