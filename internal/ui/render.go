package ui

import (
	"fmt"
	"strings"

	"github.com/jroimartin/gocui"
	"github.com/mattn/go-runewidth"

	"cloudtop/internal/schema"
)

// ansi colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[90m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func rgbColor(c [3]uint8) string {
	return fmt.Sprintf("\033[38;2;%d;%d;%dm", c[0], c[1], c[2])
}

func (a *App) renderHeader() {
	v, err := a.g.View("header")
	if err != nil {
		return
	}
	v.Clear()

	scope := colorDim + "project:" + colorReset + a.project
	if a.zone != "" {
		scope += "  " + colorDim + "zone:" + colorReset + a.zone
	}
	if a.engine.ReadOnly() {
		scope += "  " + colorYellow + "[read-only]" + colorReset
	}
	fmt.Fprintf(v, "%scloudtop%s  %s\n", colorGreen+colorBold, colorReset, scope)
	fmt.Fprintln(v, a.breadcrumbs())
}

// breadcrumbs joins the titles of the stacked frames, skipping the
// transient overlays.
func (a *App) breadcrumbs() string {
	var parts []string
	for _, f := range a.stack.frames {
		switch f.Kind {
		case KindList, KindDescribe:
			parts = append(parts, f.Title)
		}
	}
	return colorCyan + strings.Join(parts, " > ") + colorReset
}

func (a *App) renderFooter() {
	v, err := a.g.View("footer")
	if err != nil {
		return
	}
	v.Clear()

	if a.status != "" {
		if a.statusErr {
			fmt.Fprint(v, colorRed+a.status+colorReset)
		} else {
			fmt.Fprint(v, a.status)
		}
		return
	}

	top := a.stack.Top()
	msg := "j/k: move   d: describe   r: refresh   /: filter   :: resources   ?: help   q: quit"
	if top != nil {
		switch top.Kind {
		case KindDescribe:
			msg = "j/k: scroll   g/G: top/bottom   backspace: back   q: quit"
		case KindDialog:
			msg = "enter/y: confirm   esc/n: cancel"
		case KindPicker:
			msg = "type: filter   j/k: move   enter: select   esc: cancel"
		case KindFilter:
			msg = "type: filter   enter: apply   backspace: clear"
		}
	}
	fmt.Fprint(v, colorDim+msg+colorReset)
}

// renderMain draws whichever frame owns the main area: the deepest
// list or describe frame under the overlays.
func (a *App) renderMain() {
	v, err := a.g.View("main")
	if err != nil {
		return
	}

	f := a.contentFrame()
	if f == nil {
		v.Clear()
		return
	}

	switch f.Kind {
	case KindList:
		a.renderTable(v, f)
	case KindDescribe:
		a.renderDescribe(v, f)
	}
}

// contentFrame walks down past overlay frames to the frame that
// fills the main area.
func (a *App) contentFrame() *Frame {
	for i := len(a.stack.frames) - 1; i >= 0; i-- {
		f := a.stack.frames[i]
		if f.Kind == KindList || f.Kind == KindDescribe {
			return f
		}
	}
	return nil
}

func (a *App) renderTable(v *gocui.View, f *Frame) {
	v.Clear()
	v.Highlight = true
	v.SelBgColor = gocui.ColorGreen
	v.SelFgColor = gocui.ColorBlack
	v.Title = " " + f.Title + " "
	if f.Filter != "" {
		v.Title = fmt.Sprintf(" %s [/%s] ", f.Title, f.Filter)
	}

	res, err := a.registry.Resolve(f.ResourceKey)
	if err != nil {
		fmt.Fprintln(v, err.Error())
		return
	}

	widths := columnWidths(res.Columns, viewWidth(v))

	var sb strings.Builder
	sb.WriteString(colorBold)
	for i, col := range res.Columns {
		sb.WriteString(pad(col.Header, widths[i]))
		sb.WriteString("  ")
	}
	sb.WriteString(colorReset)
	fmt.Fprintln(v, sb.String())

	rows := f.Visible()
	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row.Cells {
			text := pad(cell.Text, widths[i])
			if cell.Color != "" {
				if rgb, ok := a.registry.ColorFor(cell.Color, cell.Text); ok {
					text = rgbColor(rgb) + text + colorReset
				}
			}
			line.WriteString(text)
			line.WriteString("  ")
		}
		fmt.Fprintln(v, line.String())
	}
	if len(rows) == 0 {
		fmt.Fprintln(v, colorDim+"(no items)"+colorReset)
	}

	// keep the selection on screen; row 0 is the header
	_, vh := v.Size()
	sel := f.Selected + 1
	_, oy := v.Origin()
	if sel-oy >= vh {
		oy = sel - vh + 1
	}
	if sel-oy < 1 {
		oy = sel - 1
		if oy < 0 {
			oy = 0
		}
	}
	v.SetOrigin(0, oy)
	v.SetCursor(0, sel-oy)
}

func (a *App) renderDescribe(v *gocui.View, f *Frame) {
	v.Clear()
	v.Highlight = false
	v.Title = " " + f.Title + " "
	fmt.Fprintln(v, prettyJSON(f.Raw))
}

func (a *App) scrollMain(delta int) {
	v, err := a.g.View("main")
	if err != nil {
		return
	}
	ox, oy := v.Origin()
	oy += delta
	if oy < 0 {
		oy = 0
	}
	v.SetOrigin(ox, oy)
}

func (a *App) scrollMainTo(line int) {
	v, err := a.g.View("main")
	if err != nil {
		return
	}
	if line > 0 {
		lines := strings.Count(v.Buffer(), "\n")
		_, vh := v.Size()
		line = lines - vh
		if line < 0 {
			line = 0
		}
	}
	v.SetOrigin(0, line)
}

func viewWidth(v *gocui.View) int {
	w, _ := v.Size()
	if w < 20 {
		w = 20
	}
	return w
}

// columnWidths honors the declared widths and stretches the last
// column into the remaining space.
func columnWidths(cols []schema.Column, total int) []int {
	widths := make([]int, len(cols))
	used := 0
	for i, c := range cols {
		w := c.Width
		if w <= 0 {
			w = 16
		}
		widths[i] = w
		used += w + 2
	}
	if len(widths) > 0 && used < total {
		widths[len(widths)-1] += total - used
	}
	return widths
}

// pad truncates or fills to the display width, rune-aware.
func pad(s string, w int) string {
	if runewidth.StringWidth(s) > w {
		return runewidth.Truncate(s, w, "…")
	}
	return runewidth.FillRight(s, w)
}
