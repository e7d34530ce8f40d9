package x11

import (
	"log"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
)

// subscribe selects the root window events the pump translates.
// Substructure notifications cover map, unmap, destroy, and configure
// of every top-level window; property change covers focus.
func (c *Conn) subscribe() error {
	if err := xwindow.New(c.xu, c.root).Listen(
		xproto.EventMaskSubstructureNotify,
		xproto.EventMaskPropertyChange,
	); err != nil {
		return err
	}

	activeAtom, err := xprop.Atm(c.xu, "_NET_ACTIVE_WINDOW")
	if err != nil {
		return err
	}

	xevent.MapNotifyFun(c.onMap).Connect(c.xu, c.root)
	xevent.UnmapNotifyFun(c.onUnmap).Connect(c.xu, c.root)
	xevent.DestroyNotifyFun(c.onDestroy).Connect(c.xu, c.root)
	xevent.ConfigureNotifyFun(c.onConfigure).Connect(c.xu, c.root)
	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		if ev.Atom != activeAtom {
			return
		}
		c.onFocusChange()
	}).Connect(c.xu, c.root)

	return nil
}

// emit queues an event for the reactor. The pump never blocks on a slow
// consumer; a dropped event is repaired by the next resync pass.
func (c *Conn) emit(ev platform.Event) {
	select {
	case c.events <- ev:
	default:
		log.Printf("x11: dropping %s event for window %d", ev.Kind, ev.Window)
	}
}

func (c *Conn) onMap(xu *xgbutil.XUtil, ev xevent.MapNotifyEvent) {
	win := ev.Window
	c.mu.Lock()
	_, known := c.apps[win]
	wasHidden := c.hidden[win]
	c.mu.Unlock()
	if known || wasHidden {
		// Re-map of a window we hid ourselves, or a duplicate.
		return
	}
	if !c.isNormalWindow(win) {
		return
	}
	info, err := c.describe(win)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.apps[win] = info.App
	c.mu.Unlock()
	c.emit(platform.Event{
		Kind:   platform.WindowAppeared,
		Window: info.ID,
		App:    info.App,
		Frame:  info.Frame,
		Info:   info,
	})
}

func (c *Conn) onUnmap(xu *xgbutil.XUtil, ev xevent.UnmapNotifyEvent) {
	win := ev.Window
	c.mu.Lock()
	if c.hidden[win] {
		// Self-initiated unmap.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.vanish(win)
}

func (c *Conn) onDestroy(xu *xgbutil.XUtil, ev xevent.DestroyNotifyEvent) {
	win := ev.Window
	c.vanish(win)
	c.mu.Lock()
	delete(c.tagged, win)
	delete(c.hidden, win)
	c.mu.Unlock()
}

// vanish reports a window as gone, and its application too when this
// was its last window.
func (c *Conn) vanish(win xproto.Window) {
	c.mu.Lock()
	app, known := c.apps[win]
	if !known {
		c.mu.Unlock()
		return
	}
	delete(c.apps, win)
	remaining := 0
	for _, a := range c.apps {
		if a == app {
			remaining++
		}
	}
	c.mu.Unlock()

	c.emit(platform.Event{
		Kind:   platform.WindowVanished,
		Window: platform.WindowID(win),
		App:    app,
	})
	if remaining == 0 && app != "" {
		c.emit(platform.Event{
			Kind: platform.AppTerminated,
			App:  app,
		})
	}
}

func (c *Conn) onConfigure(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
	win := ev.Window
	frame := geometry.Rect{
		X:      int(ev.X),
		Y:      int(ev.Y),
		Width:  int(ev.Width),
		Height: int(ev.Height),
	}
	c.mu.Lock()
	app, known := c.apps[win]
	cmd, tagged := c.tagged[win]
	if tagged && frame.Near(cmd.frame, 2) {
		// The commanded geometry arrived. Whatever the window does
		// next is its own doing and must read as external.
		delete(c.tagged, win)
	}
	c.mu.Unlock()
	if !known {
		return
	}
	c.emit(platform.Event{
		Kind:       platform.WindowMoved,
		Window:     platform.WindowID(win),
		App:        app,
		Frame:      frame,
		Generation: cmd.gen,
		Tagged:     tagged,
	})
}

func (c *Conn) onFocusChange() {
	win, err := ewmh.ActiveWindowGet(c.xu)
	if err != nil || win == 0 {
		return
	}
	c.mu.Lock()
	app := c.apps[win]
	c.mu.Unlock()
	c.emit(platform.Event{
		Kind:   platform.WindowFocused,
		Window: platform.WindowID(win),
		App:    app,
	})
}
