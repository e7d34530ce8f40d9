package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/tree"
)

func newWorld(t *testing.T) *World {
	t.Helper()
	w := New([]string{"main", "web", "chat"}, 0.05, 0)
	w.AssignDisplays([]platform.Display{
		{ID: 0, Name: "eDP-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Primary: true},
	})
	return w
}

func addWindow(t *testing.T, w *World, id platform.WindowID, app string, workspace int) *WindowRecord {
	t.Helper()
	rec, err := w.AddWindow(platform.Window{
		ID:    id,
		App:   platform.AppID(app),
		Frame: geometry.Rect{Width: 640, Height: 480},
	}, workspace)
	require.NoError(t, err)
	return rec
}

func TestAddWindow_TilesBesideFocus(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "term", 0)
	w.SetFocused(1)
	addWindow(t, w, 3, "editor", 0)

	wins := w.Current().Tree.Windows()
	assert.Equal(t, []platform.WindowID{1, 3, 2}, wins)
}

func TestAddWindow_DuplicateAndBadWorkspace(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)

	_, err := w.AddWindow(platform.Window{ID: 1}, 0)
	require.ErrorIs(t, err, tree.ErrDuplicate)

	// Out-of-range workspace falls back to the current one.
	rec := addWindow(t, w, 2, "term", 99)
	assert.Equal(t, 0, rec.Workspace)
}

func TestRemoveWindow_RefocusesWithinWorkspace(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "term", 0)
	w.SetFocused(2)

	require.NoError(t, w.RemoveWindow(2))
	assert.Equal(t, platform.WindowID(1), w.Focused())
	assert.Equal(t, 1, w.Len())

	require.NoError(t, w.RemoveWindow(1))
	assert.Equal(t, platform.WindowID(0), w.Focused())
	require.ErrorIs(t, w.RemoveWindow(1), tree.ErrNotFound)
}

func TestRemoveApp_DropsAllWindowsOfApp(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "browser", 1)
	addWindow(t, w, 3, "browser", 1)

	touched := w.RemoveApp("browser")
	assert.Equal(t, []int{1}, touched)
	assert.Equal(t, 1, w.Len())
	_, ok := w.Window(2)
	assert.False(t, ok)
}

func TestMoveToWorkspace_MovesTiledWindow(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "term", 0)

	require.NoError(t, w.MoveToWorkspace(1, 2))
	rec, _ := w.Window(1)
	assert.Equal(t, 2, rec.Workspace)
	assert.Equal(t, []platform.WindowID{2}, w.Workspaces[0].Tree.Windows())
	assert.Equal(t, []platform.WindowID{1}, w.Workspaces[2].Tree.Windows())

	// Same-workspace move is a no-op.
	require.NoError(t, w.MoveToWorkspace(1, 2))
	require.Error(t, w.MoveToWorkspace(1, 7))
}

func TestMoveToWorkspace_MovesFloatingWindow(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "gimp", 0)
	require.NoError(t, w.ToggleFloat(1))

	require.NoError(t, w.MoveToWorkspace(1, 1))
	assert.Empty(t, w.Workspaces[0].Floating)
	assert.Equal(t, []platform.WindowID{1}, w.Workspaces[1].Floating)
	assert.Empty(t, w.Workspaces[1].Tree.Windows())
}

func TestToggleFloat_RoundTrip(t *testing.T) {
	w := newWorld(t)
	rec := addWindow(t, w, 1, "gimp", 0)
	rec.Frame = geometry.Rect{X: 30, Y: 40, Width: 800, Height: 600}
	addWindow(t, w, 2, "term", 0)

	require.NoError(t, w.ToggleFloat(1))
	assert.True(t, rec.Floating)
	assert.Equal(t, rec.Frame, rec.FloatFrame)
	assert.Equal(t, []platform.WindowID{2}, w.Workspaces[0].Tree.Windows())
	assert.Equal(t, []platform.WindowID{1}, w.Workspaces[0].Floating)

	w.SetFocused(2)
	require.NoError(t, w.ToggleFloat(1))
	assert.False(t, rec.Floating)
	assert.Empty(t, w.Workspaces[0].Floating)
	assert.Len(t, w.Workspaces[0].Tree.Windows(), 2)
}

func TestSetCurrent_MovesFocusToWorkspaceContent(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "browser", 1)
	w.SetFocused(1)

	require.NoError(t, w.SetCurrent(1))
	assert.Equal(t, platform.WindowID(2), w.Focused())
	assert.Equal(t, 1, w.Current().Index)
	assert.True(t, w.Visible(1))
	assert.False(t, w.Visible(0))

	require.NoError(t, w.SetCurrent(2))
	assert.Equal(t, platform.WindowID(0), w.Focused())
	require.Error(t, w.SetCurrent(9))
}

func TestSetFocused_ActivatesOwningWorkspace(t *testing.T) {
	w := newWorld(t)
	addWindow(t, w, 1, "term", 0)
	addWindow(t, w, 2, "browser", 1)

	w.SetFocused(2)
	assert.Equal(t, 1, w.Current().Index)
	assert.True(t, w.Visible(1))
}

func TestAssignDisplays_PrefersNamedDisplay(t *testing.T) {
	w := New([]string{"main", "web"}, 0.05, 0)
	w.Workspaces[1].Preferred = "HDMI-1"

	displays := []platform.Display{
		{ID: 0, Name: "eDP-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Primary: true},
		{ID: 1, Name: "HDMI-1", Bounds: geometry.Rect{X: 1920, Width: 2560, Height: 1440}},
	}
	w.AssignDisplays(displays)

	assert.Equal(t, 0, w.Workspaces[0].Display)
	assert.Equal(t, 1, w.Workspaces[1].Display)

	region, ok := w.Region(1)
	require.True(t, ok)
	assert.Equal(t, displays[1].Bounds, region)

	// Both workspaces are the only occupant of their display.
	assert.True(t, w.Visible(0))
	assert.True(t, w.Visible(1))
}

func TestAssignDisplays_FallsBackToPrimaryWhenPreferredGone(t *testing.T) {
	w := New([]string{"main", "web"}, 0.05, 0)
	w.Workspaces[1].Preferred = "HDMI-1"

	w.AssignDisplays([]platform.Display{
		{ID: 0, Name: "eDP-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Primary: true},
	})
	assert.Equal(t, 0, w.Workspaces[1].Display)
	// Only one workspace can be visible on the shared display.
	assert.True(t, w.Visible(0))
	assert.False(t, w.Visible(1))

	w.AssignDisplays(nil)
	assert.Equal(t, -1, w.Workspaces[0].Display)
	_, ok := w.Region(0)
	assert.False(t, ok)
}
