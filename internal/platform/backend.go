package platform

import (
	"context"

	"github.com/glidewm/glidewm/internal/geometry"
)

// WindowID is the window system's opaque identifier for a top-level
// window. IDs are not reused within the lifetime of the X connection.
type WindowID uint32

// AppID identifies the application owning a window (WM_CLASS class on
// X11).
type AppID string

// Generation is a monotonically increasing token attached to every
// geometry command the reactor issues. The backend tags notifications
// caused by such a command with the same generation so the reconciler
// can tell echoes from user actions.
type Generation uint64

// Window contains metadata and geometry for a top-level window as seen
// by the window system.
type Window struct {
	ID    WindowID
	App   AppID
	Title string
	Frame geometry.Rect
}

// Display describes a physical display's usable work area.
type Display struct {
	ID      int
	Name    string
	Bounds  geometry.Rect
	Primary bool
}

// EventKind enumerates window system notifications.
type EventKind int

const (
	// WindowAppeared reports a newly mapped, manageable window.
	WindowAppeared EventKind = iota
	// WindowVanished reports a destroyed or unmapped window.
	WindowVanished
	// WindowMoved reports a geometry change, self-inflicted or not.
	WindowMoved
	// WindowFocused reports an input-focus change.
	WindowFocused
	// AppTerminated reports that every window of an application is gone.
	AppTerminated
	// DisplayChanged reports a display topology change.
	DisplayChanged
)

func (k EventKind) String() string {
	switch k {
	case WindowAppeared:
		return "window-appeared"
	case WindowVanished:
		return "window-vanished"
	case WindowMoved:
		return "window-moved"
	case WindowFocused:
		return "window-focused"
	case AppTerminated:
		return "app-terminated"
	case DisplayChanged:
		return "display-changed"
	default:
		return "unknown"
	}
}

// Event is one notification from the window system. Events may be
// delayed, duplicated, or reordered across windows; within one window
// they arrive in occurrence order.
type Event struct {
	Kind     EventKind
	Window   WindowID
	App      AppID
	Frame    geometry.Rect
	Info     Window    // populated for WindowAppeared
	Displays []Display // populated for DisplayChanged

	// Generation correlates the event with the last geometry command
	// written to the window, when the backend knows it. Tagged is false
	// for events the backend cannot correlate.
	Generation Generation
	Tagged     bool
}

// Backend abstracts the window system. Every call is fallible and every
// returned fact may already be stale.
type Backend interface {
	// ListWindows enumerates manageable top-level windows.
	ListWindows() ([]Window, error)
	// SetFrame moves and resizes a window. The generation is remembered
	// per window and attached to resulting notifications.
	SetFrame(ctx context.Context, id WindowID, frame geometry.Rect, gen Generation) error
	// Raise focuses and raises a window.
	Raise(ctx context.Context, id WindowID) error
	// Hide takes a window off screen without destroying it. The backend
	// suppresses the resulting unmap so it does not read as a vanish.
	Hide(ctx context.Context, id WindowID) error
	// Show reverses Hide.
	Show(ctx context.Context, id WindowID) error
	// ActiveWindow returns the currently focused window, or 0.
	ActiveWindow() (WindowID, error)
	// Displays enumerates connected displays.
	Displays() ([]Display, error)
	// Events returns the notification stream. The channel closes when
	// the connection to the window system is lost.
	Events() <-chan Event
}
