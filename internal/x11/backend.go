// Package x11 adapts the X11 window system to the backend interface.
// It speaks EWMH where possible and falls back to core protocol
// requests where the helpers misbehave.
package x11

import (
	"context"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
)

// issuedCommand is one remembered SetFrame, for echo tagging.
type issuedCommand struct {
	gen   platform.Generation
	frame geometry.Rect
}

// Conn manages the X11 connection and implements platform.Backend.
type Conn struct {
	xu   *xgbutil.XUtil
	root xproto.Window

	events chan platform.Event

	mu sync.Mutex
	// tagged remembers the last geometry command written per window, so
	// the event pump can stamp the resulting ConfigureNotify events. The
	// tag is dropped once the commanded frame has been observed; later
	// configure events for the window are user or app actions.
	tagged map[xproto.Window]issuedCommand
	// hidden marks windows we unmapped ourselves; their UnmapNotify
	// must not read as a vanish.
	hidden map[xproto.Window]bool
	// apps tracks ownership for app-termination detection.
	apps map[xproto.Window]platform.AppID
}

// New establishes a connection to the X11 server and initializes the
// required extensions.
func New() (*Conn, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, err
	}

	// Required for global hotkeys registered on this connection.
	keybind.Initialize(xu)

	if err := randr.Init(xu.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	c := &Conn{
		xu:     xu,
		root:   xu.RootWin(),
		events: make(chan platform.Event, 256),
		tagged: make(map[xproto.Window]issuedCommand),
		hidden: make(map[xproto.Window]bool),
		apps:   make(map[xproto.Window]platform.AppID),
	}
	if err := c.subscribe(); err != nil {
		xu.Conn().Close()
		return nil, err
	}
	return c, nil
}

// XUtil exposes the underlying connection for the hotkey handler.
func (c *Conn) XUtil() *xgbutil.XUtil { return c.xu }

// RootWindow returns the root window of the default screen.
func (c *Conn) RootWindow() xproto.Window { return c.root }

// Run pumps X events until the context is cancelled. The Events channel
// closes when the pump stops.
func (c *Conn) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		xevent.Main(c.xu)
	}()
	select {
	case <-ctx.Done():
		xevent.Quit(c.xu)
		<-done
		close(c.events)
		return ctx.Err()
	case <-done:
		close(c.events)
		return fmt.Errorf("x11: event loop exited")
	}
}

// Close disconnects from the X server.
func (c *Conn) Close() {
	c.xu.Conn().Close()
}

// Events returns the notification stream.
func (c *Conn) Events() <-chan platform.Event { return c.events }

// ListWindows enumerates manageable top-level windows from the EWMH
// client list.
func (c *Conn) ListWindows() ([]platform.Window, error) {
	clients, err := ewmh.ClientListGet(c.xu)
	if err != nil {
		return nil, fmt.Errorf("failed to get client list: %w", err)
	}
	var out []platform.Window
	for _, win := range clients {
		if !c.isNormalWindow(win) {
			continue
		}
		info, err := c.describe(win)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// describe collects identity and geometry for one window.
func (c *Conn) describe(win xproto.Window) (platform.Window, error) {
	frame, err := c.frameOf(win)
	if err != nil {
		return platform.Window{}, err
	}
	info := platform.Window{
		ID:    platform.WindowID(win),
		Frame: frame,
	}
	if class, err := icccm.WmClassGet(c.xu, win); err == nil {
		info.App = platform.AppID(class.Class)
	}
	if name, err := ewmh.WmNameGet(c.xu, win); err == nil {
		info.Title = name
	}
	return info, nil
}

// frameOf reads a window's root-relative geometry.
func (c *Conn) frameOf(win xproto.Window) (geometry.Rect, error) {
	geom, err := xproto.GetGeometry(c.xu.Conn(), xproto.Drawable(win)).Reply()
	if err != nil {
		return geometry.Rect{}, err
	}
	translate, err := xproto.TranslateCoordinates(c.xu.Conn(), win, c.root, 0, 0).Reply()
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.Rect{
		X:      int(translate.DstX),
		Y:      int(translate.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// isNormalWindow filters out desktops, docks, splashes, and the like.
func (c *Conn) isNormalWindow(win xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.xu, win)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}
	for _, t := range types {
		if t == "_NET_WM_WINDOW_TYPE_NORMAL" {
			return true
		}
		if t == "_NET_WM_WINDOW_TYPE_DESKTOP" ||
			t == "_NET_WM_WINDOW_TYPE_DOCK" ||
			t == "_NET_WM_WINDOW_TYPE_SPLASH" ||
			t == "_NET_WM_WINDOW_TYPE_TOOLBAR" ||
			t == "_NET_WM_WINDOW_TYPE_NOTIFICATION" {
			return false
		}
	}
	return len(types) == 0
}

// SetFrame moves and resizes a window, remembering the generation so
// the resulting ConfigureNotify reads as an echo.
func (c *Conn) SetFrame(ctx context.Context, id platform.WindowID, frame geometry.Rect, gen platform.Generation) error {
	win := xproto.Window(id)
	c.mu.Lock()
	c.tagged[win] = issuedCommand{gen: gen, frame: frame}
	c.mu.Unlock()
	return c.bounded(ctx, func() error {
		c.unmaximize(win)
		if err := ewmh.MoveresizeWindow(c.xu, win, frame.X, frame.Y, frame.Width, frame.Height); err != nil {
			// Fallback to direct window manipulation
			xwindow.New(c.xu, win).MoveResize(frame.X, frame.Y, frame.Width, frame.Height)
		}
		return nil
	})
}

// unmaximize removes maximized state; a maximized window ignores
// geometry requests on most window managers.
func (c *Conn) unmaximize(win xproto.Window) {
	states, err := ewmh.WmStateGet(c.xu, win)
	if err != nil {
		return
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_MAXIMIZED_HORZ" || state == "_NET_WM_STATE_MAXIMIZED_VERT" {
			ewmh.WmStateReq(c.xu, win, 0, state)
		}
	}
}

// Raise activates and raises a window using _NET_ACTIVE_WINDOW. The
// message is built manually because the ewmh helper panics on this
// library version (uint vs int type assertion).
func (c *Conn) Raise(ctx context.Context, id platform.WindowID) error {
	return c.bounded(ctx, func() error {
		atomReply, err := xproto.InternAtom(c.xu.Conn(), false,
			uint16(len("_NET_ACTIVE_WINDOW")), "_NET_ACTIVE_WINDOW").Reply()
		if err != nil {
			return fmt.Errorf("failed to intern _NET_ACTIVE_WINDOW: %w", err)
		}

		const sourceIndication = 2 // pager/direct action
		ev := xproto.ClientMessageEvent{
			Format: 32,
			Window: xproto.Window(id),
			Type:   atomReply.Atom,
			Data:   xproto.ClientMessageDataUnionData32New([]uint32{sourceIndication, 0, 0, 0, 0}),
		}

		return xproto.SendEventChecked(
			c.xu.Conn(),
			false,
			c.root,
			xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
			string(ev.Bytes()),
		).Check()
	})
}

// Hide unmaps a window. The pump swallows the resulting UnmapNotify.
func (c *Conn) Hide(ctx context.Context, id platform.WindowID) error {
	win := xproto.Window(id)
	c.mu.Lock()
	c.hidden[win] = true
	c.mu.Unlock()
	return c.bounded(ctx, func() error {
		return xproto.UnmapWindowChecked(c.xu.Conn(), win).Check()
	})
}

// Show re-maps a window hidden by Hide.
func (c *Conn) Show(ctx context.Context, id platform.WindowID) error {
	win := xproto.Window(id)
	c.mu.Lock()
	delete(c.hidden, win)
	c.mu.Unlock()
	return c.bounded(ctx, func() error {
		return xproto.MapWindowChecked(c.xu.Conn(), win).Check()
	})
}

// ActiveWindow returns the currently focused window, or 0.
func (c *Conn) ActiveWindow() (platform.WindowID, error) {
	win, err := ewmh.ActiveWindowGet(c.xu)
	if err != nil {
		return 0, err
	}
	return platform.WindowID(win), nil
}

// bounded runs an X request under the caller's deadline. The request
// itself cannot be interrupted; a timeout abandons the wait.
func (c *Conn) bounded(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
