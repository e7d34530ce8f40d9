// Package dispatch translates named user commands into world mutations.
// The dispatcher itself is stateless: every command resolves against the
// focus and workspace state at the moment the reactor applies it.
package dispatch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/state"
	"github.com/glidewm/glidewm/internal/tree"
)

// ErrUnknownCommand means the command name is not part of the vocabulary.
var ErrUnknownCommand = errors.New("dispatch: unknown command")

// ErrNoFocus means the command needs a focused window and there is none.
var ErrNoFocus = errors.New("dispatch: no focused window")

// Direction is a cardinal navigation direction on the screen.
type Direction int

// Navigation directions.
const (
	Left Direction = iota
	Right
	Up
	Down
)

// Outcome describes what the reactor must do after a mutation applied.
type Outcome struct {
	// Workspaces lists workspace indexes whose layout must be
	// recomputed.
	Workspaces []int

	// Raise names a window the backend should raise and focus, 0 for
	// none.
	Raise platform.WindowID

	// Save requests a layout snapshot write.
	Save bool

	// Reload requests a configuration reload.
	Reload bool
}

// Mutation is a resolved command, ready for the reactor to apply against
// the world it owns.
type Mutation struct {
	Name  string
	Apply func(w *state.World) (Outcome, error)
}

// Dispatcher resolves command names. resizeStep is the ratio delta
// applied by the resize commands.
type Dispatcher struct {
	resizeStep float64
}

// New returns a dispatcher using the given resize step. Steps outside
// (0, 0.5] fall back to 0.05.
func New(resizeStep float64) *Dispatcher {
	if resizeStep <= 0 || resizeStep > 0.5 {
		resizeStep = 0.05
	}
	return &Dispatcher{resizeStep: resizeStep}
}

// Commands returns every accepted command name, for help output and
// config validation.
func Commands() []string {
	names := []string{
		"focus-left", "focus-right", "focus-up", "focus-down",
		"focus-next", "focus-prev",
		"move-left", "move-right", "move-up", "move-down",
		"resize-grow", "resize-shrink",
		"split-horizontal", "split-vertical",
		"stack", "tab", "cycle-stack",
		"toggle-float", "retile", "save-layout", "reload",
		"workspace-N", "move-to-workspace-N",
	}
	return names
}

// Resolve turns a command name into a mutation. Unknown names return
// ErrUnknownCommand.
func (d *Dispatcher) Resolve(name string) (Mutation, error) {
	m := Mutation{Name: name}
	switch name {
	case "focus-left":
		m.Apply = focusDirection(Left)
	case "focus-right":
		m.Apply = focusDirection(Right)
	case "focus-up":
		m.Apply = focusDirection(Up)
	case "focus-down":
		m.Apply = focusDirection(Down)
	case "focus-next":
		m.Apply = focusCycle(1)
	case "focus-prev":
		m.Apply = focusCycle(-1)
	case "move-left":
		m.Apply = moveDirection(Left)
	case "move-right":
		m.Apply = moveDirection(Right)
	case "move-up":
		m.Apply = moveDirection(Up)
	case "move-down":
		m.Apply = moveDirection(Down)
	case "resize-grow":
		m.Apply = resize(d.resizeStep)
	case "resize-shrink":
		m.Apply = resize(-d.resizeStep)
	case "split-horizontal":
		m.Apply = split(tree.SplitH)
	case "split-vertical":
		m.Apply = split(tree.SplitV)
	case "stack":
		m.Apply = regroup(tree.Stack)
	case "tab":
		m.Apply = regroup(tree.Tab)
	case "cycle-stack":
		m.Apply = cycleStack
	case "toggle-float":
		m.Apply = toggleFloat
	case "retile":
		m.Apply = retile
	case "save-layout":
		m.Apply = func(w *state.World) (Outcome, error) {
			return Outcome{Save: true}, nil
		}
	case "reload":
		m.Apply = func(w *state.World) (Outcome, error) {
			return Outcome{Reload: true}, nil
		}
	default:
		if n, ok := indexedCommand(name, "workspace-"); ok {
			m.Apply = switchWorkspace(n - 1)
			break
		}
		if n, ok := indexedCommand(name, "move-to-workspace-"); ok {
			m.Apply = moveToWorkspace(n - 1)
			break
		}
		return Mutation{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return m, nil
}

func indexedCommand(name, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// visibleCandidates lists windows on the current workspace that have a
// known on-screen frame: visible tiled windows plus floats.
func visibleCandidates(w *state.World) []*state.WindowRecord {
	ws := w.Current()
	ids := ws.Tree.VisibleWindows()
	ids = append(ids, ws.Floating...)
	out := make([]*state.WindowRecord, 0, len(ids))
	for _, id := range ids {
		rec, ok := w.Window(id)
		if !ok || rec.Frame.Zero() {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// neighbor picks the nearest visible window strictly in the given
// direction from the focused one, comparing frame centers.
func neighbor(w *state.World, dir Direction) (*state.WindowRecord, error) {
	from, ok := w.Window(w.Focused())
	if !ok {
		return nil, ErrNoFocus
	}
	fx, fy := from.Frame.CenterX(), from.Frame.CenterY()
	var best *state.WindowRecord
	bestDist := 0
	for _, cand := range visibleCandidates(w) {
		if cand.ID == from.ID {
			continue
		}
		cx, cy := cand.Frame.CenterX(), cand.Frame.CenterY()
		var ahead, dist int
		switch dir {
		case Left:
			ahead, dist = fx-cx, (fx-cx)+abs(fy-cy)
		case Right:
			ahead, dist = cx-fx, (cx-fx)+abs(fy-cy)
		case Up:
			ahead, dist = fy-cy, (fy-cy)+abs(fx-cx)
		case Down:
			ahead, dist = cy-fy, (cy-fy)+abs(fx-cx)
		}
		if ahead <= 0 {
			continue
		}
		if best == nil || dist < bestDist {
			best, bestDist = cand, dist
		}
	}
	if best == nil {
		return nil, nil
	}
	return best, nil
}

func focusDirection(dir Direction) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		target, err := neighbor(w, dir)
		if err != nil || target == nil {
			return Outcome{}, err
		}
		return focusWindow(w, target.ID), nil
	}
}

func focusCycle(step int) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		ws := w.Current()
		wins := ws.Tree.Windows()
		wins = append(wins, ws.Floating...)
		if len(wins) == 0 {
			return Outcome{}, nil
		}
		at := 0
		for i, id := range wins {
			if id == w.Focused() {
				at = i
				break
			}
		}
		next := wins[((at+step)%len(wins)+len(wins))%len(wins)]
		return focusWindow(w, next), nil
	}
}

// focusWindow records the new focus and reveals it through any stack or
// tab ancestors. Revealing changes which windows are visible, so it
// forces a recompute.
func focusWindow(w *state.World, id platform.WindowID) Outcome {
	w.SetFocused(id)
	out := Outcome{Raise: id}
	rec, ok := w.Window(id)
	if !ok {
		return out
	}
	ws := w.Workspaces[rec.Workspace]
	if !rec.Floating && ws.Tree.Reveal(id) {
		out.Workspaces = []int{rec.Workspace}
	}
	return out
}

func moveDirection(dir Direction) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		target, err := neighbor(w, dir)
		if err != nil || target == nil {
			return Outcome{}, err
		}
		focused, _ := w.Window(w.Focused())
		if focused.Floating || target.Floating {
			return Outcome{}, nil
		}
		ws := w.Current()
		if err := ws.Tree.SwapWindows(focused.ID, target.ID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Workspaces: []int{ws.Index}}, nil
	}
}

// resizePath finds the node whose ratio the resize applies to: the
// focused leaf, or its nearest ancestor that sits in a split.
func resizePath(t *tree.Tree, leaf tree.NodeID) (tree.NodeID, bool) {
	for id := leaf; t.Valid(id); {
		parent := t.Parent(id)
		if parent == tree.InvalidNode {
			return tree.InvalidNode, false
		}
		if t.KindOf(parent).IsSplit() && len(t.Children(parent)) > 1 {
			return id, true
		}
		id = parent
	}
	return tree.InvalidNode, false
}

func resize(delta float64) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		rec, ok := w.Window(w.Focused())
		if !ok {
			return Outcome{}, ErrNoFocus
		}
		if rec.Floating {
			return Outcome{}, nil
		}
		ws := w.Workspaces[rec.Workspace]
		leaf, ok := ws.Tree.LeafFor(rec.ID)
		if !ok {
			return Outcome{}, tree.ErrNotFound
		}
		child, ok := resizePath(ws.Tree, leaf)
		if !ok {
			return Outcome{}, nil
		}
		if err := ws.Tree.AdjustRatio(child, delta); err != nil {
			return Outcome{}, err
		}
		return Outcome{Workspaces: []int{rec.Workspace}}, nil
	}
}

func split(kind tree.Kind) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		rec, ok := w.Window(w.Focused())
		if !ok {
			return Outcome{}, ErrNoFocus
		}
		if rec.Floating {
			return Outcome{}, nil
		}
		ws := w.Workspaces[rec.Workspace]
		leaf, ok := ws.Tree.LeafFor(rec.ID)
		if !ok {
			return Outcome{}, tree.ErrNotFound
		}
		if _, err := ws.Tree.SplitLeaf(leaf, kind); err != nil {
			return Outcome{}, err
		}
		return Outcome{Workspaces: []int{rec.Workspace}}, nil
	}
}

func regroup(kind tree.Kind) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		rec, ok := w.Window(w.Focused())
		if !ok {
			return Outcome{}, ErrNoFocus
		}
		if rec.Floating {
			return Outcome{}, nil
		}
		ws := w.Workspaces[rec.Workspace]
		leaf, ok := ws.Tree.LeafFor(rec.ID)
		if !ok {
			return Outcome{}, tree.ErrNotFound
		}
		parent := ws.Tree.Parent(leaf)
		if parent == tree.InvalidNode {
			return Outcome{}, nil
		}
		if err := ws.Tree.SetKind(parent, kind); err != nil {
			return Outcome{}, err
		}
		ws.Tree.Reveal(rec.ID)
		return Outcome{Workspaces: []int{rec.Workspace}}, nil
	}
}

func cycleStack(w *state.World) (Outcome, error) {
	rec, ok := w.Window(w.Focused())
	if !ok {
		return Outcome{}, ErrNoFocus
	}
	if rec.Floating {
		return Outcome{}, nil
	}
	ws := w.Workspaces[rec.Workspace]
	leaf, ok := ws.Tree.LeafFor(rec.ID)
	if !ok {
		return Outcome{}, tree.ErrNotFound
	}
	// Nearest stack or tab ancestor.
	group := tree.InvalidNode
	for id := leaf; ; {
		parent := ws.Tree.Parent(id)
		if parent == tree.InvalidNode {
			break
		}
		if !ws.Tree.KindOf(parent).IsSplit() {
			group = parent
			break
		}
		id = parent
	}
	if !ws.Tree.Valid(group) {
		return Outcome{}, nil
	}
	children := ws.Tree.Children(group)
	if len(children) < 2 {
		return Outcome{}, nil
	}
	next := (ws.Tree.Selected(group) + 1) % len(children)
	if err := ws.Tree.SetSelected(group, next); err != nil {
		return Outcome{}, err
	}
	out := Outcome{Workspaces: []int{rec.Workspace}}
	if id, ok := firstWindow(ws.Tree, children[next]); ok {
		w.SetFocused(id)
		ws.Tree.Reveal(id)
		out.Raise = id
	}
	return out, nil
}

// firstWindow returns the first window in the subtree, honoring stack
// and tab selection.
func firstWindow(t *tree.Tree, id tree.NodeID) (platform.WindowID, bool) {
	if t.IsLeaf(id) {
		return t.WindowAt(id)
	}
	children := t.Children(id)
	if len(children) == 0 {
		return 0, false
	}
	if !t.KindOf(id).IsSplit() {
		sel := t.Selected(id)
		return firstWindow(t, children[sel])
	}
	return firstWindow(t, children[0])
}

func toggleFloat(w *state.World) (Outcome, error) {
	rec, ok := w.Window(w.Focused())
	if !ok {
		return Outcome{}, ErrNoFocus
	}
	if err := w.ToggleFloat(rec.ID); err != nil {
		return Outcome{}, err
	}
	return Outcome{Workspaces: []int{rec.Workspace}, Raise: rec.ID}, nil
}

func retile(w *state.World) (Outcome, error) {
	out := Outcome{}
	for i := range w.Workspaces {
		out.Workspaces = append(out.Workspaces, i)
	}
	return out, nil
}

func switchWorkspace(index int) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		prev := w.Current().Index
		if err := w.SetCurrent(index); err != nil {
			return Outcome{}, err
		}
		out := Outcome{Workspaces: []int{index}}
		if prev != index {
			out.Workspaces = append(out.Workspaces, prev)
		}
		out.Raise = w.Focused()
		return out, nil
	}
}

func moveToWorkspace(index int) func(*state.World) (Outcome, error) {
	return func(w *state.World) (Outcome, error) {
		rec, ok := w.Window(w.Focused())
		if !ok {
			return Outcome{}, ErrNoFocus
		}
		from := rec.Workspace
		if err := w.MoveToWorkspace(rec.ID, index); err != nil {
			return Outcome{}, err
		}
		return Outcome{Workspaces: []int{from, index}}, nil
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
