// Package reconcile merges window system notifications into the world
// model. Its one hard job is telling echoes of our own geometry
// commands apart from genuine external changes, so the manager never
// fights itself.
package reconcile

import (
	"log/slog"

	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/state"
)

// echoTolerancePx is the frame deviation below which an echo needs no
// remark. Beyond it the window adjusted our command (size increments,
// minimum sizes) and the deviation is worth a log line.
const echoTolerancePx = 2

// Filter decides whether a window should be managed at all. Windows of
// excluded applications are ignored entirely.
type Filter func(platform.Window) bool

// Result reports what a notification did to the model.
type Result struct {
	// Changed is true when the tiling model mutated and affected
	// workspaces need a layout recompute.
	Changed bool
	// Workspaces lists the workspace indexes needing recompute.
	Workspaces []int
	// Echo is true when the notification was discarded as the echo of a
	// command we issued ourselves.
	Echo bool
}

// Reconciler applies notifications to the world. It holds no state of
// its own beyond configuration; all mutation happens through the world
// passed in, from the reactor's processing context.
type Reconciler struct {
	manage Filter
	logger *slog.Logger
}

// New creates a reconciler. A nil filter manages every window.
func New(manage Filter, logger *slog.Logger) *Reconciler {
	if manage == nil {
		manage = func(platform.Window) bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{manage: manage, logger: logger}
}

// Apply merges one notification into the world. Malformed or
// out-of-order notifications are dropped and logged as non-fatal.
func (r *Reconciler) Apply(w *state.World, ev platform.Event) Result {
	switch ev.Kind {
	case platform.WindowAppeared:
		return r.windowAppeared(w, ev)
	case platform.WindowVanished:
		return r.windowVanished(w, ev)
	case platform.WindowMoved:
		return r.windowMoved(w, ev)
	case platform.WindowFocused:
		return r.windowFocused(w, ev)
	case platform.AppTerminated:
		ws := w.RemoveApp(ev.App)
		if len(ws) == 0 {
			return Result{}
		}
		r.logger.Info("application terminated", "app", ev.App, "workspaces", ws)
		return Result{Changed: true, Workspaces: ws}
	case platform.DisplayChanged:
		w.AssignDisplays(ev.Displays)
		all := make([]int, len(w.Workspaces))
		for i := range all {
			all[i] = i
		}
		r.logger.Info("display topology changed", "displays", len(ev.Displays))
		return Result{Changed: true, Workspaces: all}
	default:
		r.logger.Debug("dropping unknown notification", "kind", int(ev.Kind))
		return Result{}
	}
}

func (r *Reconciler) windowAppeared(w *state.World, ev platform.Event) Result {
	if !r.manage(ev.Info) {
		r.logger.Debug("ignoring unmanaged window", "window", ev.Window, "app", ev.Info.App)
		return Result{}
	}
	if _, ok := w.Window(ev.Window); ok {
		// Duplicate appearance; the adapter resent a map we already
		// know about.
		return Result{}
	}
	rec, err := w.AddWindow(ev.Info, -1)
	if err != nil {
		r.logger.Warn("insert failed for new window", "window", ev.Window, "error", err)
		return Result{}
	}
	r.logger.Info("window appeared", "window", ev.Window, "app", rec.App, "workspace", rec.Workspace)
	return Result{Changed: true, Workspaces: []int{rec.Workspace}}
}

func (r *Reconciler) windowVanished(w *state.World, ev platform.Event) Result {
	rec, ok := w.Window(ev.Window)
	if !ok {
		// Already gone, or never managed. Out-of-order destroy events
		// land here and are harmless.
		return Result{}
	}
	wsIdx := rec.Workspace
	if err := w.RemoveWindow(ev.Window); err != nil {
		r.logger.Warn("remove failed for vanished window", "window", ev.Window, "error", err)
		return Result{}
	}
	r.logger.Info("window vanished", "window", ev.Window, "workspace", wsIdx)
	return Result{Changed: true, Workspaces: []int{wsIdx}}
}

// windowMoved classifies a geometry notification. A tagged event whose
// generation matches the latest command we issued for the window is an
// echo: record the observed frame as truth and discard it, whatever the
// frame says. Windows that snap geometry to their own grid (terminal
// character cells, fixed aspect ratios) answer every command with an
// adjusted frame; re-commanding them would clamp again, without end.
// Anything untagged or stale is an external change (the user dragged a
// window, an app moved itself).
func (r *Reconciler) windowMoved(w *state.World, ev platform.Event) Result {
	rec, ok := w.Window(ev.Window)
	if !ok {
		r.logger.Debug("move for unknown window", "window", ev.Window)
		return Result{}
	}
	// Any notification proves the window is responsive again.
	rec.Degraded = false

	if ev.Tagged && ev.Generation == rec.LastIssuedGen {
		if !ev.Frame.Near(rec.LastIssuedFrame, echoTolerancePx) {
			r.logger.Debug("window adjusted commanded geometry",
				"window", ev.Window,
				"issued", rec.LastIssuedFrame.String(),
				"took", ev.Frame.String())
		}
		rec.Frame = ev.Frame
		return Result{Echo: true}
	}

	// External change: accept the observed frame as the window's true
	// frame. Tiled windows stay tiled; the next recompute re-issues
	// their assigned frame, correcting the manual drag.
	rec.Frame = ev.Frame
	if rec.Floating {
		rec.FloatFrame = ev.Frame
		return Result{}
	}
	r.logger.Debug("external geometry change on tiled window",
		"window", ev.Window, "frame", ev.Frame.String())
	return Result{Changed: true, Workspaces: []int{rec.Workspace}}
}

func (r *Reconciler) windowFocused(w *state.World, ev platform.Event) Result {
	rec, ok := w.Window(ev.Window)
	if !ok {
		// Focus moved to an unmanaged window; remember nothing.
		return Result{}
	}
	w.SetFocused(ev.Window)
	ws := w.Workspaces[rec.Workspace]
	if !rec.Floating && ws.Tree.Reveal(ev.Window) {
		return Result{Changed: true, Workspaces: []int{rec.Workspace}}
	}
	return Result{}
}
