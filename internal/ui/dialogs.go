package ui

import (
	"fmt"
	"strings"
)

func (a *App) renderDialog(f *Frame) {
	v, err := a.g.View("dialog")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " " + f.Title + " "
	v.Wrap = true

	msg := f.Message
	if f.Destructive {
		msg = colorRed + colorBold + msg + colorReset
	}
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, " "+msg)
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, colorDim+" enter/y: confirm   esc/n: cancel"+colorReset)
}

func (a *App) pickerVisible(f *Frame) []PickerItem {
	if f.PickerQ == "" {
		return f.Items
	}
	q := strings.ToLower(f.PickerQ)
	out := make([]PickerItem, 0, len(f.Items))
	for _, it := range f.Items {
		if strings.Contains(strings.ToLower(it.Label), q) {
			out = append(out, it)
		}
	}
	return out
}

func (a *App) renderPicker(f *Frame) {
	v, err := a.g.View("picker")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " " + f.Title + " "
	v.Highlight = false

	fmt.Fprintf(v, " %s> %s%s\n", colorGreen, colorReset, f.PickerQ)
	vis := a.pickerVisible(f)
	_, vh := v.Size()
	start := 0
	if f.PickerIx >= vh-2 {
		start = f.PickerIx - (vh - 3)
	}
	for i := start; i < len(vis) && i-start < vh-1; i++ {
		marker := "  "
		label := vis[i].Label
		if i == f.PickerIx {
			marker = colorGreen + "> " + colorReset
			label = colorBold + label + colorReset
		}
		fmt.Fprintf(v, " %s%s\n", marker, label)
	}
	if len(vis) == 0 {
		fmt.Fprintln(v, colorDim+"  (no matches)"+colorReset)
	}
}

func (a *App) renderCommand() {
	v, err := a.g.View("cmd")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " Resources "

	fmt.Fprintf(v, " %s:%s%s\n", colorGreen, colorReset, a.cmdInput)
	_, vh := v.Size()
	for i, m := range a.cmdMatches {
		if i >= vh-1 {
			break
		}
		marker := "  "
		key := m.key
		if i == a.cmdSel {
			marker = colorGreen + "> " + colorReset
			key = colorBold + key + colorReset
		}
		fmt.Fprintf(v, " %s%-24s %s%s%s\n", marker, key, colorDim, m.label, colorReset)
	}
	if len(a.cmdMatches) == 0 {
		fmt.Fprintln(v, colorDim+"  (no matches)"+colorReset)
	}
}

func (a *App) renderFilterBox(f *Frame) {
	v, err := a.g.View("filter")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " Filter "
	filter := ""
	if lf := a.filterTarget(); lf != nil {
		filter = lf.Filter
	}
	fmt.Fprintf(v, " %s/%s%s", colorGreen, colorReset, filter)
}

func (a *App) renderHelp() {
	v, err := a.g.View("help")
	if err != nil {
		return
	}
	v.Clear()
	v.Title = " Help "

	fmt.Fprintln(v, colorBold+" Navigation"+colorReset)
	fmt.Fprintln(v, "   j/k, arrows   move selection")
	fmt.Fprintln(v, "   g / G         jump to top / bottom")
	fmt.Fprintln(v, "   d, enter      describe selected item")
	fmt.Fprintln(v, "   backspace     go back")
	fmt.Fprintln(v, "   r             refresh now")
	fmt.Fprintln(v, "   /             filter current list")
	fmt.Fprintln(v, "   :             switch resource / project / zone")
	fmt.Fprintln(v, "   ?             this help")
	fmt.Fprintln(v, "   q             quit")

	f := a.contentFrame()
	if f == nil || f.Kind != KindList {
		return
	}
	res, err2 := a.registry.Resolve(f.ResourceKey)
	if err2 != nil {
		return
	}
	if len(res.Actions) > 0 {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, colorBold+" Actions"+colorReset)
		for _, act := range res.Actions {
			fmt.Fprintf(v, "   %-13s %s\n", act.Shortcut, act.DisplayName)
		}
	}
	if len(res.SubResources) > 0 {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, colorBold+" Drill down"+colorReset)
		for _, sub := range res.SubResources {
			fmt.Fprintf(v, "   %-13s %s\n", sub.Shortcut, sub.DisplayName)
		}
	}
}
