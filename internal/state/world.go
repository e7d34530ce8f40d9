// Package state holds the world model: displays, workspaces, and the
// per-window records the reconciler and reactor operate on. The model
// is owned by the reactor goroutine and never shared; everything that
// leaves it does so as a copy.
package state

import (
	"fmt"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/tree"
)

// WindowRecord tracks what we believe to be true about one window.
type WindowRecord struct {
	ID    platform.WindowID
	App   platform.AppID
	Title string

	// Frame is the last-known true frame, updated from applied
	// animation frames and accepted external notifications.
	Frame geometry.Rect

	Floating   bool
	FloatFrame geometry.Rect

	// Workspace is the index of the owning workspace.
	Workspace int

	// Degraded windows failed a recent geometry command; they are
	// skipped until a fresh notification proves them responsive.
	Degraded bool

	// Hidden tracks whether we last asked the backend to take the
	// window off screen (inactive workspace, unselected stack member).
	Hidden bool

	// LastIssuedGen and LastIssuedFrame record the most recent geometry
	// command the reactor sent for this window. The reconciler compares
	// incoming notifications against them to detect echoes.
	LastIssuedGen   platform.Generation
	LastIssuedFrame geometry.Rect
}

// Workspace is one tiling arena plus its floating windows.
type Workspace struct {
	Index     int
	Name      string
	Display   int    // index into World.Displays, -1 when unassigned
	Preferred string // preferred display name from config
	Tree      *tree.Tree
	Floating  []platform.WindowID
}

// World is the authoritative model. It is mutated exclusively from the
// reactor's processing loop, so it carries no locks.
type World struct {
	Displays   []platform.Display
	Workspaces []*Workspace

	windows map[platform.WindowID]*WindowRecord
	active  map[int]int // display index -> visible workspace index
	focused platform.WindowID
	current int // workspace receiving new windows / commands
}

// New creates a world with the given workspace names, each backed by an
// empty tree. minFraction and defaultRatio are handed through to every
// tree.
func New(workspaces []string, minFraction, defaultRatio float64) *World {
	if len(workspaces) == 0 {
		workspaces = []string{"1"}
	}
	w := &World{
		windows: make(map[platform.WindowID]*WindowRecord),
		active:  make(map[int]int),
	}
	for i, name := range workspaces {
		w.Workspaces = append(w.Workspaces, &Workspace{
			Index:   i,
			Name:    name,
			Display: -1,
			Tree:    tree.New(minFraction, defaultRatio),
		})
	}
	return w
}

// Window returns the record for a window.
func (w *World) Window(id platform.WindowID) (*WindowRecord, bool) {
	rec, ok := w.windows[id]
	return rec, ok
}

// Windows returns every tracked window id. Order is unspecified.
func (w *World) Windows() []*WindowRecord {
	out := make([]*WindowRecord, 0, len(w.windows))
	for _, rec := range w.windows {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of tracked windows.
func (w *World) Len() int { return len(w.windows) }

// Focused returns the focused window, or 0.
func (w *World) Focused() platform.WindowID { return w.focused }

// SetFocused records the focused window and makes its workspace
// current.
func (w *World) SetFocused(id platform.WindowID) {
	w.focused = id
	if rec, ok := w.windows[id]; ok {
		w.current = rec.Workspace
		ws := w.Workspaces[rec.Workspace]
		if ws.Display >= 0 {
			w.active[ws.Display] = rec.Workspace
		}
	}
}

// Current returns the workspace that receives new windows and user
// commands.
func (w *World) Current() *Workspace { return w.Workspaces[w.current] }

// SetCurrent switches the current workspace, activating it on its
// display. Focus moves to the first window of that workspace, or clears.
func (w *World) SetCurrent(index int) error {
	if index < 0 || index >= len(w.Workspaces) {
		return fmt.Errorf("state: no workspace %d", index)
	}
	w.current = index
	ws := w.Workspaces[index]
	if ws.Display >= 0 {
		w.active[ws.Display] = index
	}
	if wins := ws.Tree.Windows(); len(wins) > 0 {
		w.focused = wins[0]
	} else if len(ws.Floating) > 0 {
		w.focused = ws.Floating[0]
	} else {
		w.focused = 0
	}
	return nil
}

// Visible reports whether the workspace is the active one on its
// display.
func (w *World) Visible(index int) bool {
	ws := w.Workspaces[index]
	if ws.Display < 0 {
		return false
	}
	return w.active[ws.Display] == index
}

// Region returns the usable screen region for a workspace, or false
// when its display is gone.
func (w *World) Region(index int) (geometry.Rect, bool) {
	ws := w.Workspaces[index]
	if ws.Display < 0 || ws.Display >= len(w.Displays) {
		return geometry.Rect{}, false
	}
	return w.Displays[ws.Display].Bounds, true
}

// AddWindow tracks a new window and tiles it next to the focused leaf
// of its workspace (root when there is no focus to anchor on).
func (w *World) AddWindow(info platform.Window, workspace int) (*WindowRecord, error) {
	if _, ok := w.windows[info.ID]; ok {
		return nil, tree.ErrDuplicate
	}
	if workspace < 0 || workspace >= len(w.Workspaces) {
		workspace = w.current
	}
	ws := w.Workspaces[workspace]
	target := tree.InvalidNode
	if leaf, ok := ws.Tree.LeafFor(w.focused); ok {
		target = leaf
	}
	if _, err := ws.Tree.InsertWindow(info.ID, target); err != nil {
		return nil, err
	}
	rec := &WindowRecord{
		ID:        info.ID,
		App:       info.App,
		Title:     info.Title,
		Frame:     info.Frame,
		Workspace: workspace,
	}
	w.windows[info.ID] = rec
	return rec, nil
}

// RemoveWindow forgets a window entirely, pruning its leaf.
func (w *World) RemoveWindow(id platform.WindowID) error {
	rec, ok := w.windows[id]
	if !ok {
		return tree.ErrNotFound
	}
	ws := w.Workspaces[rec.Workspace]
	if rec.Floating {
		ws.Floating = removeID(ws.Floating, id)
	} else if err := ws.Tree.RemoveWindow(id); err != nil {
		return err
	}
	delete(w.windows, id)
	if w.focused == id {
		w.focused = 0
		if wins := ws.Tree.Windows(); len(wins) > 0 {
			w.focused = wins[len(wins)-1]
		}
	}
	return nil
}

// RemoveApp drops every window owned by the application and returns the
// affected workspace indexes.
func (w *World) RemoveApp(app platform.AppID) []int {
	touched := make(map[int]struct{})
	for id, rec := range w.windows {
		if rec.App != app {
			continue
		}
		touched[rec.Workspace] = struct{}{}
		_ = w.RemoveWindow(id)
	}
	out := make([]int, 0, len(touched))
	for ws := range touched {
		out = append(out, ws)
	}
	return out
}

// MoveToWorkspace re-homes a window onto another workspace's tree (or
// floating set, when it floats).
func (w *World) MoveToWorkspace(id platform.WindowID, index int) error {
	rec, ok := w.windows[id]
	if !ok {
		return tree.ErrNotFound
	}
	if index < 0 || index >= len(w.Workspaces) {
		return fmt.Errorf("state: no workspace %d", index)
	}
	if index == rec.Workspace {
		return nil
	}
	from := w.Workspaces[rec.Workspace]
	to := w.Workspaces[index]
	if rec.Floating {
		from.Floating = removeID(from.Floating, id)
		to.Floating = append(to.Floating, id)
	} else {
		if err := from.Tree.RemoveWindow(id); err != nil {
			return err
		}
		if _, err := to.Tree.InsertWindow(id, tree.InvalidNode); err != nil {
			return err
		}
	}
	rec.Workspace = index
	return nil
}

// ToggleFloat detaches a window from the tiling tree to float at its
// current frame, or re-tiles a floating window next to the focus.
func (w *World) ToggleFloat(id platform.WindowID) error {
	rec, ok := w.windows[id]
	if !ok {
		return tree.ErrNotFound
	}
	ws := w.Workspaces[rec.Workspace]
	if rec.Floating {
		ws.Floating = removeID(ws.Floating, id)
		target := tree.InvalidNode
		if leaf, ok := ws.Tree.LeafFor(w.focused); ok {
			target = leaf
		}
		if _, err := ws.Tree.InsertWindow(id, target); err != nil {
			return err
		}
		rec.Floating = false
		return nil
	}
	if err := ws.Tree.RemoveWindow(id); err != nil {
		return err
	}
	rec.Floating = true
	rec.FloatFrame = rec.Frame
	ws.Floating = append(ws.Floating, id)
	return nil
}

// AssignDisplays re-derives the workspace-to-display mapping after a
// topology change. Workspaces keep their preferred display when it is
// present and fall back to the primary otherwise.
func (w *World) AssignDisplays(displays []platform.Display) {
	w.Displays = displays
	primary := 0
	for i, d := range displays {
		if d.Primary {
			primary = i
			break
		}
	}
	w.active = make(map[int]int)
	for _, ws := range w.Workspaces {
		ws.Display = -1
		if len(displays) == 0 {
			continue
		}
		ws.Display = primary
		for i, d := range displays {
			if ws.Preferred != "" && d.Name == ws.Preferred {
				ws.Display = i
				break
			}
		}
		if _, ok := w.active[ws.Display]; !ok {
			w.active[ws.Display] = ws.Index
		}
	}
	// Keep the current workspace visible when possible.
	cur := w.Workspaces[w.current]
	if cur.Display >= 0 {
		w.active[cur.Display] = w.current
	}
}

func removeID(ids []platform.WindowID, id platform.WindowID) []platform.WindowID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
