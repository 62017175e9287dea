package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jroimartin/gocui"

	"cloudtop/internal/config"
	"cloudtop/internal/dispatch"
	"cloudtop/internal/schema"
)

const (
	refreshInterval = 5 * time.Second
	fetchTimeout    = 20 * time.Second
)

type App struct {
	g *gocui.Gui

	registry *schema.Registry
	engine   *dispatch.Engine
	cfg      *config.Config
	log      *slog.Logger

	stack *Stack

	project string
	zone    string

	status    string
	statusErr bool

	// command mode overlay (":")
	cmdOpen    bool
	cmdInput   string
	cmdMatches []cmdMatch
	cmdSel     int

	helpOpen bool

	done chan struct{}
}

// cmdMatch is one entry in the command palette: a resource key or a
// built-in command like the project picker.
type cmdMatch struct {
	key     string
	label   string
	builtin bool
}

func NewApp(registry *schema.Registry, engine *dispatch.Engine, cfg *config.Config, log *slog.Logger) *App {
	return &App{
		registry: registry,
		engine:   engine,
		cfg:      cfg,
		log:      log,
		stack:    NewStack(),
		project:  cfg.Project,
		zone:     cfg.Zone,
		done:     make(chan struct{}),
	}
}

func (a *App) SetProject(p string) {
	if p != "" {
		a.project = p
	}
}

func (a *App) SetZone(z string) {
	if z != "" {
		a.zone = z
	}
}

// Init pushes the initial list frame: the last viewed resource when
// remembered, otherwise the first key in the registry. The first fetch
// starts in Run, once the event loop exists to receive it.
func (a *App) Init() error {
	key := a.cfg.LastResource
	if _, err := a.registry.Resolve(key); err != nil {
		key = ""
	}
	if key == "" {
		keys := a.registry.Keys()
		if len(keys) == 0 {
			return errors.New("no resources registered")
		}
		key = keys[0]
	}
	if f := a.pushResourceFrame(key); f == nil {
		return fmt.Errorf("resource %q not registered", key)
	}
	return nil
}

func (a *App) baseContext() dispatch.Context {
	return dispatch.Context{Project: a.project, Zone: a.zone}
}

func (a *App) Run() error {
	g, err := gocui.NewGui(gocui.Output256)
	if err != nil {
		return err
	}
	defer g.Close()
	a.g = g

	g.BgColor = gocui.ColorBlack
	g.FgColor = gocui.ColorWhite
	g.InputEsc = true
	g.SetManagerFunc(a.layout)

	if err := a.bindKeys(); err != nil {
		return err
	}

	// the frame pushed by Init fetches now that g.Update has a loop
	// to deliver to
	if f := a.stack.TopList(); f != nil {
		a.loadFrame(f, false)
	}

	go a.refreshLoop()
	defer close(a.done)

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

// refreshLoop re-fetches the topmost list frame every interval. Only
// a plain list on top refreshes; overlays and describe views freeze
// the data underneath them.
func (a *App) refreshLoop() {
	t := time.NewTicker(refreshInterval)
	defer t.Stop()
	for {
		select {
		case <-a.done:
			return
		case <-t.C:
			a.g.Update(func(g *gocui.Gui) error {
				if a.cmdOpen || a.helpOpen {
					return nil
				}
				if f := a.stack.TopList(); f != nil {
					a.loadFrame(f, true)
				}
				return nil
			})
		}
	}
}

func (a *App) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView("header", 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}
	a.renderHeader()

	if v, err := g.SetView("footer", 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = false
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}
	a.renderFooter()

	if v, err := g.SetView("main", 0, 2, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = true
		v.Wrap = false
		v.Autoscroll = false
	}
	a.renderMain()

	if _, err := g.SetCurrentView("main"); err != nil {
		return err
	}

	if err := a.layoutOverlays(maxX, maxY); err != nil {
		return err
	}
	return nil
}

func (a *App) layoutOverlays(maxX, maxY int) error {
	top := a.stack.Top()

	wantDialog := top != nil && top.Kind == KindDialog
	wantPicker := top != nil && top.Kind == KindPicker
	wantFilter := top != nil && top.Kind == KindFilter

	if err := a.layoutBox("dialog", wantDialog, maxX, maxY, 60, 7); err != nil {
		return err
	}
	if err := a.layoutBox("picker", wantPicker, maxX, maxY, 50, 16); err != nil {
		return err
	}
	if err := a.layoutBox("cmd", a.cmdOpen, maxX, maxY, 50, 14); err != nil {
		return err
	}
	if err := a.layoutBox("help", a.helpOpen, maxX, maxY, 64, 22); err != nil {
		return err
	}
	if err := a.layoutBox("filter", wantFilter, maxX, maxY, 50, 3); err != nil {
		return err
	}

	if wantDialog {
		a.renderDialog(top)
	}
	if wantPicker {
		a.renderPicker(top)
	}
	if a.cmdOpen {
		a.renderCommand()
	}
	if a.helpOpen {
		a.renderHelp()
	}
	if wantFilter {
		a.renderFilterBox(top)
	}
	return nil
}

// layoutBox creates or deletes a centered overlay view depending on
// whether its state wants it visible.
func (a *App) layoutBox(name string, want bool, maxX, maxY, width, height int) error {
	if !want {
		if _, err := a.g.View(name); err == nil {
			a.g.DeleteView(name)
		}
		return nil
	}
	if width > maxX-4 {
		width = maxX - 4
	}
	if height > maxY-4 {
		height = maxY - 4
	}
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	if v, err := a.g.SetView(name, x0, y0, x0+width, y0+height); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.BgColor = gocui.ColorBlack
		v.FgColor = gocui.ColorWhite
	}
	_, _ = a.g.SetViewOnTop(name)
	return nil
}

func (a *App) bindKeys() error {
	g := a.g

	if err := g.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, a.quit); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyEsc, gocui.ModNone, a.escape); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyEnter, gocui.ModNone, a.enter); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyBackspace, gocui.ModNone, a.backspace); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyBackspace2, gocui.ModNone, a.backspace); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyArrowDown, gocui.ModNone, a.move(1)); err != nil {
		return err
	}
	if err := g.SetKeybinding("", gocui.KeyArrowUp, gocui.ModNone, a.move(-1)); err != nil {
		return err
	}

	// all printable ASCII routes through one handler so resource
	// shortcuts, reserved keys, and overlay typing never collide
	for r := rune(32); r <= rune(126); r++ {
		if err := g.SetKeybinding("", r, gocui.ModNone, a.typeRune(r)); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) quit(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }

func (a *App) escape(*gocui.Gui, *gocui.View) error {
	switch {
	case a.cmdOpen:
		a.closeCommand()
	case a.helpOpen:
		a.helpOpen = false
	default:
		top := a.stack.Top()
		if top == nil || top.Kind == KindList {
			return nil
		}
		if top.Kind == KindFilter {
			// cancel: put the pre-edit filter back on the list
			if lf := a.filterTarget(); lf != nil {
				lf.Filter = top.Filter
				lf.MoveSelection(0)
			}
		}
		a.stack.Pop()
	}
	return nil
}

func (a *App) enter(*gocui.Gui, *gocui.View) error {
	if a.cmdOpen {
		a.commandEnter()
		return nil
	}
	if a.helpOpen {
		a.helpOpen = false
		return nil
	}
	top := a.stack.Top()
	if top == nil {
		return nil
	}
	switch top.Kind {
	case KindDialog:
		fn := top.OnConfirm
		a.stack.Pop()
		if fn != nil {
			fn()
		}
	case KindPicker:
		a.pickerEnter(top)
	case KindFilter:
		// commit: keep the filter on the list underneath
		a.stack.Pop()
	case KindList:
		a.openDescribe(top)
	}
	return nil
}

func (a *App) backspace(*gocui.Gui, *gocui.View) error {
	if a.cmdOpen {
		if a.cmdInput != "" {
			a.cmdInput = a.cmdInput[:len(a.cmdInput)-1]
			a.recomputeCommand()
		}
		return nil
	}
	top := a.stack.Top()
	if top == nil {
		return nil
	}
	switch top.Kind {
	case KindFilter:
		lf := a.filterTarget()
		if lf != nil && lf.Filter != "" {
			lf.Filter = lf.Filter[:len(lf.Filter)-1]
			lf.MoveSelection(0)
			return nil
		}
		a.stack.Pop()
	case KindPicker:
		if top.PickerQ != "" {
			top.PickerQ = top.PickerQ[:len(top.PickerQ)-1]
			top.PickerIx = 0
			return nil
		}
		a.stack.Pop()
	default:
		a.stack.Pop()
	}
	return nil
}

func (a *App) move(delta int) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		a.moveSelection(delta)
		return nil
	}
}

func (a *App) moveSelection(delta int) {
	if a.cmdOpen {
		a.cmdSel += delta
		if a.cmdSel < 0 {
			a.cmdSel = 0
		}
		if a.cmdSel >= len(a.cmdMatches) {
			a.cmdSel = len(a.cmdMatches) - 1
		}
		return
	}
	top := a.stack.Top()
	if top == nil {
		return
	}
	switch top.Kind {
	case KindList:
		top.MoveSelection(delta)
	case KindPicker:
		n := len(a.pickerVisible(top))
		top.PickerIx += delta
		if top.PickerIx < 0 {
			top.PickerIx = 0
		}
		if top.PickerIx >= n && n > 0 {
			top.PickerIx = n - 1
		}
	case KindDescribe:
		a.scrollMain(delta)
	}
}

func (a *App) typeRune(r rune) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		a.handleRune(r)
		return nil
	}
}

func (a *App) handleRune(r rune) {
	if a.cmdOpen {
		a.cmdInput += string(r)
		a.recomputeCommand()
		return
	}
	if a.helpOpen {
		if r == 'q' || r == '?' {
			a.helpOpen = false
		}
		return
	}

	top := a.stack.Top()
	if top == nil {
		return
	}
	switch top.Kind {
	case KindFilter:
		if lf := a.filterTarget(); lf != nil {
			lf.Filter += string(r)
			lf.MoveSelection(0)
		}
	case KindPicker:
		top.PickerQ += string(r)
		top.PickerIx = 0
	case KindDialog:
		switch r {
		case 'y':
			fn := top.OnConfirm
			a.stack.Pop()
			if fn != nil {
				fn()
			}
		case 'n', 'q':
			a.stack.Pop()
		}
	case KindDescribe:
		a.describeRune(r)
	case KindList:
		a.listRune(r, top)
	}
}

func (a *App) describeRune(r rune) {
	switch r {
	case 'q':
		a.g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	case 'j':
		a.scrollMain(1)
	case 'k':
		a.scrollMain(-1)
	case 'g':
		a.scrollMainTo(0)
	case 'G':
		a.scrollMainTo(1 << 30)
	case '?':
		a.helpOpen = true
	case 'd':
		a.stack.Pop()
	}
}

func (a *App) listRune(r rune, f *Frame) {
	switch r {
	case 'q':
		a.g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		return
	case 'j':
		f.MoveSelection(1)
		return
	case 'k':
		f.MoveSelection(-1)
		return
	case 'g':
		f.Selected = 0
		return
	case 'G':
		if n := len(f.Visible()); n > 0 {
			f.Selected = n - 1
		}
		return
	case 'd':
		a.openDescribe(f)
		return
	case 'r':
		a.loadFrame(f, false)
		return
	case '?':
		a.helpOpen = true
		return
	case ':':
		a.openCommand()
		return
	case '/':
		a.openFilter(f)
		return
	}

	// schema-declared shortcuts
	res, err := a.registry.Resolve(f.ResourceKey)
	if err != nil {
		return
	}
	for _, act := range res.Actions {
		if act.Shortcut == string(r) {
			a.invokeAction(f, res, act)
			return
		}
	}
	for _, sub := range res.SubResources {
		if sub.Shortcut == string(r) {
			a.openSub(f, res, sub)
			return
		}
	}
}

// filterTarget returns the list frame directly beneath the filter
// overlay.
func (a *App) filterTarget() *Frame {
	n := a.stack.Depth()
	if n < 2 {
		return nil
	}
	f := a.stack.frames[n-2]
	if f.Kind != KindList {
		return nil
	}
	return f
}

// openFilter pushes the filter overlay. The overlay frame's own
// Filter field stashes the pre-edit text so Esc can cancel the edit.
func (a *App) openFilter(f *Frame) {
	a.stack.Push(&Frame{Kind: KindFilter, Title: f.Title, Filter: f.Filter})
}

func (a *App) openDescribe(f *Frame) {
	row, ok := f.SelectedRow()
	if !ok {
		return
	}
	a.stack.Push(&Frame{
		Kind:  KindDescribe,
		Title: row.Name,
		Raw:   row.Raw,
	})
	a.scrollMainTo(0)
}

// pushResource replaces the stack with a fresh root list for key and
// starts the initial fetch.
func (a *App) pushResource(key string) {
	if f := a.pushResourceFrame(key); f != nil {
		a.loadFrame(f, false)
	}
}

// pushResourceFrame builds the root list frame without fetching.
func (a *App) pushResourceFrame(key string) *Frame {
	res, err := a.registry.Resolve(key)
	if err != nil {
		a.setError(err)
		return nil
	}
	a.stack = NewStack()
	f := a.stack.Push(&Frame{
		Kind:        KindList,
		ResourceKey: key,
		Title:       res.DisplayName,
	})
	// scope is captured here, on the event thread; the closure runs in
	// fetch goroutines and must not touch App fields
	base := a.baseContext()
	f.Fetch = func(ctx context.Context) ([]dispatch.Row, error) {
		return a.engine.List(ctx, res, base)
	}
	a.cfg.SetLastResource(key)
	if err := a.cfg.Save(); err != nil {
		a.log.Warn("config save failed", "err", err)
	}
	return f
}

func (a *App) openSub(f *Frame, parent *schema.Resource, sub schema.SubResource) {
	row, ok := f.SelectedRow()
	if !ok {
		return
	}
	child, err := a.registry.Resolve(sub.ResourceKey)
	if err != nil {
		a.setError(err)
		return
	}
	nf := a.stack.Push(&Frame{
		Kind:        KindList,
		ResourceKey: sub.ResourceKey,
		Title:       fmt.Sprintf("%s: %s", child.DisplayName, row.Name),
	})
	base := a.baseContext()
	raw := row.Raw
	nf.Fetch = func(ctx context.Context) ([]dispatch.Row, error) {
		return a.engine.ListSub(ctx, parent, sub, raw, base)
	}
	a.loadFrame(nf, false)
}

// loadFrame starts an async fetch for a list frame. Stale responses
// are dropped by generation; auto-refresh errors only flash the
// status line while the previous rows stay on screen.
func (a *App) loadFrame(f *Frame, auto bool) {
	if f.Fetch == nil {
		return
	}
	gen := a.stack.Bump(f)
	if !auto {
		a.setStatus("loading " + f.Title + "...")
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		rows, err := f.Fetch(ctx)
		a.g.Update(func(*gocui.Gui) error {
			if err != nil {
				a.log.Warn("fetch failed", "frame", f.Title, "err", err)
				a.setError(err)
				return nil
			}
			if f.ApplyRows(gen, rows) {
				a.setStatus(fmt.Sprintf("%s: %d items", f.Title, len(rows)))
			}
			return nil
		})
	}()
}

func (a *App) invokeAction(f *Frame, res *schema.Resource, act schema.Action) {
	row, ok := f.SelectedRow()
	if !ok {
		return
	}
	a.runAction(f, res, act, row, false)
}

func (a *App) runAction(f *Frame, res *schema.Resource, act schema.Action, row dispatch.Row, confirmed bool) {
	base := a.baseContext()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		err := a.engine.Invoke(ctx, res, act, row, base, confirmed)
		a.g.Update(func(*gocui.Gui) error {
			var confirm *dispatch.ConfirmationRequiredError
			switch {
			case err == nil:
				a.setStatus(fmt.Sprintf("%s: %s ok", act.DisplayName, row.Name))
				a.loadFrame(f, false)
			case errors.As(err, &confirm):
				a.stack.Push(&Frame{
					Kind:        KindDialog,
					Title:       act.DisplayName,
					Message:     confirm.Message,
					Destructive: confirm.Destructive,
					OnConfirm: func() {
						a.runAction(f, res, act, row, true)
					},
				})
			default:
				a.setError(err)
			}
			return nil
		})
	}()
}

// command palette

func (a *App) openCommand() {
	a.cmdOpen = true
	a.cmdInput = ""
	a.cmdSel = 0
	a.recomputeCommand()
}

func (a *App) closeCommand() {
	a.cmdOpen = false
	a.cmdInput = ""
	a.cmdMatches = nil
}

var builtinCommands = []cmdMatch{
	{key: "projects", label: "switch project", builtin: true},
	{key: "zones", label: "switch zone", builtin: true},
	{key: "back", label: "go back", builtin: true},
	{key: "quit", label: "quit", builtin: true},
}

func (a *App) recomputeCommand() {
	a.cmdMatches = a.cmdMatches[:0]

	if a.cmdInput == "" {
		for _, key := range a.registry.Keys() {
			res, _ := a.registry.Get(key)
			a.cmdMatches = append(a.cmdMatches, cmdMatch{key: key, label: res.DisplayName})
		}
		a.cmdMatches = append(a.cmdMatches, builtinCommands...)
	} else {
		for _, m := range a.registry.Search(a.cmdInput) {
			res, _ := a.registry.Get(m.Key)
			a.cmdMatches = append(a.cmdMatches, cmdMatch{key: m.Key, label: res.DisplayName})
		}
		for _, b := range builtinCommands {
			if subsequence(a.cmdInput, b.key) {
				a.cmdMatches = append(a.cmdMatches, b)
			}
		}
	}
	if a.cmdSel >= len(a.cmdMatches) {
		a.cmdSel = 0
	}
}

func (a *App) commandEnter() {
	input := strings.TrimSpace(a.cmdInput)

	// direct argument forms bypass the match list
	if arg, ok := strings.CutPrefix(input, "project "); ok {
		a.closeCommand()
		a.setScope(strings.TrimSpace(arg), a.zone)
		return
	}
	if arg, ok := strings.CutPrefix(input, "zone "); ok {
		a.closeCommand()
		a.setScope(a.project, strings.TrimSpace(arg))
		return
	}

	if a.cmdSel < 0 || a.cmdSel >= len(a.cmdMatches) {
		a.closeCommand()
		return
	}
	m := a.cmdMatches[a.cmdSel]
	a.closeCommand()
	if !m.builtin {
		a.pushResource(m.key)
		return
	}
	switch m.key {
	case "projects":
		a.openProjectPicker()
	case "zones":
		a.openZonePicker()
	case "back":
		a.stack.Pop()
	case "quit", "q":
		a.g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
	}
}

// setScope applies a new project/zone pair, persists it, and reloads
// the root list.
func (a *App) setScope(project, zone string) {
	if project != "" {
		a.project = project
		a.cfg.SetProject(project)
	}
	if zone != "" {
		a.zone = zone
		a.cfg.SetZone(zone)
	}
	if err := a.cfg.Save(); err != nil {
		a.log.Warn("config save failed", "err", err)
	}
	a.reloadRoot()
}

// pickers

func (a *App) openProjectPicker() {
	a.setStatus("loading projects...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		ids, err := a.engine.ListProjects(ctx)
		a.g.Update(func(*gocui.Gui) error {
			if err != nil {
				a.setError(err)
				return nil
			}
			sort.Strings(ids)
			a.pushPicker("Project", ids, func(it PickerItem) {
				a.setScope(it.ID, a.zone)
			})
			return nil
		})
	}()
}

func (a *App) openZonePicker() {
	a.setStatus("loading zones...")
	base := a.baseContext()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		zones, err := a.engine.ListZones(ctx, base)
		a.g.Update(func(*gocui.Gui) error {
			if err != nil {
				a.setError(err)
				return nil
			}
			a.pushPicker("Zone", zones, func(it PickerItem) {
				a.setScope(a.project, it.ID)
			})
			return nil
		})
	}()
}

func (a *App) pushPicker(title string, ids []string, pick func(PickerItem)) {
	items := make([]PickerItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, PickerItem{ID: id, Label: id})
	}
	a.stack.Push(&Frame{
		Kind:   KindPicker,
		Title:  title,
		Items:  items,
		OnPick: pick,
	})
}

func (a *App) pickerEnter(f *Frame) {
	vis := a.pickerVisible(f)
	if f.PickerIx < 0 || f.PickerIx >= len(vis) {
		return
	}
	it := vis[f.PickerIx]
	fn := f.OnPick
	a.stack.Pop()
	if fn != nil {
		fn(it)
	}
}

// reloadRoot restarts the stack on the current root resource after a
// project or zone switch; nested frames bind the old scope.
func (a *App) reloadRoot() {
	if len(a.stack.frames) == 0 {
		return
	}
	root := a.stack.frames[0]
	if root.Kind == KindList && root.ResourceKey != "" {
		a.pushResource(root.ResourceKey)
	}
}

func (a *App) setStatus(msg string) {
	a.status = msg
	a.statusErr = false
}

func (a *App) setError(err error) {
	a.status = err.Error()
	a.statusErr = true
}

// subsequence reports whether every rune of needle appears in order
// inside haystack.
func subsequence(needle, haystack string) bool {
	j := 0
	for i := 0; i < len(haystack) && j < len(needle); i++ {
		if haystack[i] == needle[j] {
			j++
		}
	}
	return j == len(needle)
}
