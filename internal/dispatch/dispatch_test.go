package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/state"
	"github.com/glidewm/glidewm/internal/tree"
)

func testWorld(t *testing.T) *state.World {
	t.Helper()
	w := state.New([]string{"main", "web", "chat"}, 0.05, 0)
	w.AssignDisplays([]platform.Display{
		{ID: 0, Name: "eDP-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Primary: true},
	})
	return w
}

func addAt(t *testing.T, w *state.World, id platform.WindowID, frame geometry.Rect) *state.WindowRecord {
	t.Helper()
	rec, err := w.AddWindow(platform.Window{ID: id, App: "app", Frame: frame}, -1)
	require.NoError(t, err)
	rec.Frame = frame
	return rec
}

func apply(t *testing.T, w *state.World, name string) Outcome {
	t.Helper()
	m, err := New(0.05).Resolve(name)
	require.NoError(t, err)
	out, err := m.Apply(w)
	require.NoError(t, err)
	return out
}

func TestResolve_UnknownCommand(t *testing.T) {
	d := New(0.05)
	_, err := d.Resolve("levitate")
	require.ErrorIs(t, err, ErrUnknownCommand)

	// Malformed workspace indexes are not commands either.
	_, err = d.Resolve("workspace-zero")
	require.ErrorIs(t, err, ErrUnknownCommand)
	_, err = d.Resolve("workspace-0")
	require.ErrorIs(t, err, ErrUnknownCommand)
}

func TestResolve_AcceptsEveryListedCommand(t *testing.T) {
	d := New(0.05)
	for _, name := range Commands() {
		if name == "workspace-N" || name == "move-to-workspace-N" {
			name = name[:len(name)-1] + "2"
		}
		_, err := d.Resolve(name)
		assert.NoError(t, err, "command %q", name)
	}
}

func TestFocusDirection_PicksNearestNeighbor(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{X: 0, Y: 0, Width: 600, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 600, Y: 0, Width: 600, Height: 540})
	addAt(t, w, 3, geometry.Rect{X: 600, Y: 540, Width: 600, Height: 540})
	w.SetFocused(1)

	out := apply(t, w, "focus-right")
	assert.Equal(t, platform.WindowID(2), out.Raise)
	assert.Equal(t, platform.WindowID(2), w.Focused())

	out = apply(t, w, "focus-down")
	assert.Equal(t, platform.WindowID(3), out.Raise)

	// Nothing further down; the command is a quiet no-op.
	out = apply(t, w, "focus-down")
	assert.Equal(t, platform.WindowID(0), out.Raise)
	assert.Equal(t, platform.WindowID(3), w.Focused())
}

func TestFocusDirection_NoFocusErrors(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 100, Height: 100})
	m, err := New(0.05).Resolve("focus-left")
	require.NoError(t, err)
	_, err = m.Apply(w)
	require.ErrorIs(t, err, ErrNoFocus)
}

func TestFocusCycle_WrapsBothWays(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 100, Height: 100})
	addAt(t, w, 2, geometry.Rect{X: 100, Width: 100, Height: 100})
	addAt(t, w, 3, geometry.Rect{X: 200, Width: 100, Height: 100})
	w.SetFocused(3)

	out := apply(t, w, "focus-next")
	assert.Equal(t, platform.WindowID(1), out.Raise)

	out = apply(t, w, "focus-prev")
	assert.Equal(t, platform.WindowID(3), out.Raise)
}

func TestMoveDirection_SwapsWithNeighbor(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{X: 0, Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(1)

	out := apply(t, w, "move-right")
	assert.Equal(t, []int{0}, out.Workspaces)
	assert.Equal(t, []platform.WindowID{2, 1}, w.Current().Tree.Windows())
}

func TestMoveDirection_FloatingWindowsDoNotSwap(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{X: 0, Width: 960, Height: 1080})
	rec := addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	require.NoError(t, w.ToggleFloat(2))
	rec.Frame = geometry.Rect{X: 960, Width: 960, Height: 1080}
	w.SetFocused(1)

	out := apply(t, w, "move-right")
	assert.Empty(t, out.Workspaces)
}

func TestResize_AdjustsFocusedRatio(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(1)

	out := apply(t, w, "resize-grow")
	assert.Equal(t, []int{0}, out.Workspaces)
	ratios := w.Current().Tree.Ratios(w.Current().Tree.Root())
	assert.InDelta(t, 0.55, ratios[0], 1e-9)

	apply(t, w, "resize-shrink")
	ratios = w.Current().Tree.Ratios(w.Current().Tree.Root())
	assert.InDelta(t, 0.5, ratios[0], 1e-9)
}

func TestResize_SingleWindowIsNoOp(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 1920, Height: 1080})
	w.SetFocused(1)
	out := apply(t, w, "resize-grow")
	assert.Empty(t, out.Workspaces)
}

func TestSplit_WrapsFocusedLeaf(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(1)

	apply(t, w, "split-vertical")
	tr := w.Current().Tree
	leaf, _ := tr.LeafFor(1)
	parent := tr.Parent(leaf)
	assert.Equal(t, tree.SplitV, tr.KindOf(parent))

	// The next window opened lands inside the new container.
	addAt(t, w, 3, geometry.Rect{})
	assert.Equal(t, []platform.WindowID{1, 3, 2}, tr.Windows())
	leaf3, _ := tr.LeafFor(3)
	assert.Equal(t, parent, tr.Parent(leaf3))
}

func TestRegroup_StacksSiblings(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(2)

	out := apply(t, w, "stack")
	assert.Equal(t, []int{0}, out.Workspaces)
	tr := w.Current().Tree
	assert.Equal(t, tree.Stack, tr.KindOf(tr.Root()))
	// The focused window stays the visible one.
	assert.Equal(t, []platform.WindowID{2}, tr.VisibleWindows())
}

func TestCycleStack_AdvancesSelectionAndFocus(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 1920, Height: 1080})
	addAt(t, w, 2, geometry.Rect{Width: 1920, Height: 1080})
	addAt(t, w, 3, geometry.Rect{Width: 1920, Height: 1080})
	w.SetFocused(1)
	apply(t, w, "stack")

	out := apply(t, w, "cycle-stack")
	assert.Equal(t, platform.WindowID(2), out.Raise)
	assert.Equal(t, platform.WindowID(2), w.Focused())

	apply(t, w, "cycle-stack")
	out = apply(t, w, "cycle-stack")
	// Wraps back to the first member.
	assert.Equal(t, platform.WindowID(1), out.Raise)
}

func TestCycleStack_NoGroupIsNoOp(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(1)
	out := apply(t, w, "cycle-stack")
	assert.Empty(t, out.Workspaces)
	assert.Equal(t, platform.WindowID(1), w.Focused())
}

func TestToggleFloat_RaisesAndRecomputes(t *testing.T) {
	w := testWorld(t)
	rec := addAt(t, w, 1, geometry.Rect{X: 10, Y: 10, Width: 500, Height: 400})
	w.SetFocused(1)

	out := apply(t, w, "toggle-float")
	assert.Equal(t, []int{0}, out.Workspaces)
	assert.Equal(t, platform.WindowID(1), out.Raise)
	assert.True(t, rec.Floating)
}

func TestRetile_TouchesAllWorkspaces(t *testing.T) {
	w := testWorld(t)
	out := apply(t, w, "retile")
	assert.Equal(t, []int{0, 1, 2}, out.Workspaces)
}

func TestSaveAndReload_SetFlagsOnly(t *testing.T) {
	w := testWorld(t)
	out := apply(t, w, "save-layout")
	assert.True(t, out.Save)
	assert.Empty(t, out.Workspaces)

	out = apply(t, w, "reload")
	assert.True(t, out.Reload)
}

func TestSwitchWorkspace_RecomputesBothSides(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	w.SetFocused(1)

	out := apply(t, w, "workspace-2")
	assert.ElementsMatch(t, []int{0, 1}, out.Workspaces)
	assert.Equal(t, 1, w.Current().Index)

	// Switching to the already-current workspace touches only it.
	out = apply(t, w, "workspace-2")
	assert.Equal(t, []int{1}, out.Workspaces)

	m, err := New(0.05).Resolve("workspace-9")
	require.NoError(t, err)
	_, err = m.Apply(w)
	require.Error(t, err)
}

func TestMoveToWorkspace_CarriesFocusedWindow(t *testing.T) {
	w := testWorld(t)
	addAt(t, w, 1, geometry.Rect{Width: 960, Height: 1080})
	addAt(t, w, 2, geometry.Rect{X: 960, Width: 960, Height: 1080})
	w.SetFocused(1)

	out := apply(t, w, "move-to-workspace-3")
	assert.Equal(t, []int{0, 2}, out.Workspaces)
	rec, _ := w.Window(1)
	assert.Equal(t, 2, rec.Workspace)
	assert.Equal(t, []platform.WindowID{1}, w.Workspaces[2].Tree.Windows())
}
