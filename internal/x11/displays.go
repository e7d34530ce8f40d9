package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
)

// Displays enumerates active monitors via XRandR. Each monitor's bounds
// are shrunk by any dock struts overlapping it, so layouts never cover
// panels.
func (c *Conn) Displays() ([]platform.Display, error) {
	resources, err := randr.GetScreenResources(c.xu.Conn(), c.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primaryOutput randr.Output
	if reply, err := randr.GetOutputPrimary(c.xu.Conn(), c.root).Reply(); err == nil {
		primaryOutput = reply.Output
	}

	var displays []platform.Display
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.xu.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		name := fmt.Sprintf("Monitor%d", i)
		primary := false
		if len(crtcInfo.Outputs) > 0 {
			out := crtcInfo.Outputs[0]
			primary = out == primaryOutput
			if outputInfo, err := randr.GetOutputInfo(c.xu.Conn(), out, resources.ConfigTimestamp).Reply(); err == nil {
				name = string(outputInfo.Name)
			}
		}

		bounds := geometry.Rect{
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		}
		displays = append(displays, platform.Display{
			ID:      i,
			Name:    name,
			Bounds:  c.applyStruts(bounds),
			Primary: primary,
		})
	}

	if len(displays) > 0 {
		hasPrimary := false
		for _, d := range displays {
			if d.Primary {
				hasPrimary = true
				break
			}
		}
		if !hasPrimary {
			displays[0].Primary = true
		}
	}

	return displays, nil
}

type struts struct {
	left   int
	right  int
	top    int
	bottom int
}

// applyStruts subtracts dock reservations overlapping the monitor.
func (c *Conn) applyStruts(bounds geometry.Rect) geometry.Rect {
	rootGeom, err := xproto.GetGeometry(c.xu.Conn(), xproto.Drawable(c.root)).Reply()
	if err != nil {
		return bounds
	}
	rootWidth := int(rootGeom.Width)
	rootHeight := int(rootGeom.Height)

	clients, err := ewmh.ClientListGet(c.xu)
	if err != nil {
		return bounds
	}

	var acc struts
	for _, win := range clients {
		types, err := ewmh.WmWindowTypeGet(c.xu, win)
		if err != nil {
			continue
		}

		isDock := false
		for _, t := range types {
			if t == "_NET_WM_WINDOW_TYPE_DOCK" {
				isDock = true
				break
			}
		}
		if !isDock {
			continue
		}

		if sp, err := ewmh.WmStrutPartialGet(c.xu, win); err == nil {
			accumulateStruts(bounds, rootWidth, rootHeight, sp, &acc)
			continue
		}

		// Some docks only set _NET_WM_STRUT (no partial ranges).
		if s, err := ewmh.WmStrutGet(c.xu, win); err == nil {
			sp := &ewmh.WmStrutPartial{
				Left:         s.Left,
				Right:        s.Right,
				Top:          s.Top,
				Bottom:       s.Bottom,
				LeftStartY:   0,
				LeftEndY:     uint(rootHeight - 1),
				RightStartY:  0,
				RightEndY:    uint(rootHeight - 1),
				TopStartX:    0,
				TopEndX:      uint(rootWidth - 1),
				BottomStartX: 0,
				BottomEndX:   uint(rootWidth - 1),
			}
			accumulateStruts(bounds, rootWidth, rootHeight, sp, &acc)
		}
	}

	if acc.left == 0 && acc.right == 0 && acc.top == 0 && acc.bottom == 0 {
		return bounds
	}

	bounds.X += acc.left
	bounds.Y += acc.top
	bounds.Width -= acc.left + acc.right
	bounds.Height -= acc.top + acc.bottom
	if bounds.Width < 1 {
		bounds.Width = 1
	}
	if bounds.Height < 1 {
		bounds.Height = 1
	}
	return bounds
}

func accumulateStruts(bounds geometry.Rect, rootWidth, rootHeight int, sp *ewmh.WmStrutPartial, acc *struts) {
	// Top strut: y=[0,Top), x=[TopStartX,TopEndX]
	if sp.Top > 0 {
		r := geometry.Rect{
			X: int(sp.TopStartX), Y: 0,
			Width: int(sp.TopEndX) - int(sp.TopStartX) + 1, Height: int(sp.Top),
		}
		if o := bounds.Intersect(r); !o.Zero() {
			acc.top = max(acc.top, o.Height)
		}
	}

	// Bottom strut: y=[rootHeight-Bottom,rootHeight), x=[BottomStartX,BottomEndX]
	if sp.Bottom > 0 {
		r := geometry.Rect{
			X: int(sp.BottomStartX), Y: rootHeight - int(sp.Bottom),
			Width: int(sp.BottomEndX) - int(sp.BottomStartX) + 1, Height: int(sp.Bottom),
		}
		if o := bounds.Intersect(r); !o.Zero() {
			acc.bottom = max(acc.bottom, o.Height)
		}
	}

	// Left strut: x=[0,Left), y=[LeftStartY,LeftEndY]
	if sp.Left > 0 {
		r := geometry.Rect{
			X: 0, Y: int(sp.LeftStartY),
			Width: int(sp.Left), Height: int(sp.LeftEndY) - int(sp.LeftStartY) + 1,
		}
		if o := bounds.Intersect(r); !o.Zero() {
			acc.left = max(acc.left, o.Width)
		}
	}

	// Right strut: x=[rootWidth-Right,rootWidth), y=[RightStartY,RightEndY]
	if sp.Right > 0 {
		r := geometry.Rect{
			X: rootWidth - int(sp.Right), Y: int(sp.RightStartY),
			Width: int(sp.Right), Height: int(sp.RightEndY) - int(sp.RightStartY) + 1,
		}
		if o := bounds.Intersect(r); !o.Zero() {
			acc.right = max(acc.right, o.Width)
		}
	}
}
