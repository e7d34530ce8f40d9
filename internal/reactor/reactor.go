// Package reactor runs the processing loop that owns the world. Every
// mutation funnels through one goroutine: window system notifications,
// user commands, animation frames, and command failures are all drained
// from channels and applied in order. Nothing else touches the model.
package reactor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/glidewm/glidewm/internal/animate"
	"github.com/glidewm/glidewm/internal/config"
	"github.com/glidewm/glidewm/internal/dispatch"
	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/layout"
	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/reconcile"
	"github.com/glidewm/glidewm/internal/state"
	"github.com/glidewm/glidewm/internal/tree"
)

// ErrStopped means the event stream closed underneath the reactor.
var ErrStopped = errors.New("reactor: event stream closed")

// Options wires the reactor's collaborators.
type Options struct {
	Backend  platform.Backend
	World    *state.World
	Animator *animate.Animator
	Config   *config.Config
	Logger   *slog.Logger

	// SaveLayout persists the current layout. It runs on the reactor
	// goroutine, so it must not block on the reactor.
	SaveLayout func(*state.World) error

	// RequestReload asks the daemon to reload configuration. It must
	// not block.
	RequestReload func()
}

type task struct {
	run   func() error
	reply chan error
}

type failure struct {
	win platform.WindowID
	err error
}

type frameCmd struct {
	rect    geometry.Rect
	gen     platform.Generation
	timeout time.Duration
}

// Reactor is the single writer of the world model.
type Reactor struct {
	backend platform.Backend
	world   *state.World
	anim    *animate.Animator
	cfg     *config.Config
	logger  *slog.Logger

	rec  *reconcile.Reconciler
	disp *dispatch.Dispatcher

	tasks    chan task
	failures chan failure

	// gen numbers every geometry command so the reconciler can match
	// notifications back to the command that caused them.
	gen platform.Generation

	// raiseSeq lets a newer raise supersede one still waiting on a
	// worker, so focus never lands on a stale window.
	raiseSeq atomic.Uint64

	save          func(*state.World) error
	requestReload func()

	runCtx  context.Context
	workers map[platform.WindowID]chan frameCmd
}

// New assembles a reactor. Call Run to start processing.
func New(opts Options) *Reactor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Reactor{
		backend:       opts.Backend,
		world:         opts.World,
		anim:          opts.Animator,
		cfg:           cfg,
		logger:        logger,
		rec:           reconcile.New(cfg.Managed, logger),
		disp:          dispatch.New(cfg.ResizeStep),
		tasks:         make(chan task),
		failures:      make(chan failure, 64),
		save:          opts.SaveLayout,
		requestReload: opts.RequestReload,
		workers:       make(map[platform.WindowID]chan frameCmd),
	}
}

// Run processes events until the context is cancelled or the backend's
// event stream closes.
func (r *Reactor) Run(ctx context.Context) error {
	r.runCtx = ctx
	events := r.backend.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrStopped
			}
			r.handleEvent(ev)
		case t := <-r.tasks:
			t.reply <- t.run()
		case f := <-r.anim.Frames():
			r.applyFrame(f)
		case f := <-r.failures:
			r.handleFailure(f)
		}
	}
}

// do runs fn on the reactor goroutine and waits for its result.
func (r *Reactor) do(ctx context.Context, fn func() error) error {
	t := task{run: fn, reply: make(chan error, 1)}
	select {
	case r.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch resolves and applies a named command.
func (r *Reactor) Dispatch(ctx context.Context, name string) error {
	m, err := r.disp.Resolve(name)
	if err != nil {
		return err
	}
	return r.do(ctx, func() error {
		out, err := m.Apply(r.world)
		if err != nil {
			return err
		}
		r.logger.Debug("command applied", "command", m.Name)
		r.react(out)
		return nil
	})
}

// Mutate applies an arbitrary world mutation and recomputes the
// workspaces it reports as affected. Layout restore uses this.
func (r *Reactor) Mutate(ctx context.Context, fn func(*state.World) ([]int, error)) error {
	return r.do(ctx, func() error {
		affected, err := fn(r.world)
		if err != nil {
			return err
		}
		r.react(dispatch.Outcome{Workspaces: affected})
		return nil
	})
}

// Bootstrap primes the world from the window system: displays, the
// current window population, and the active focus.
func (r *Reactor) Bootstrap(ctx context.Context) error {
	return r.do(ctx, func() error {
		displays, err := r.backend.Displays()
		if err != nil {
			return err
		}
		r.world.AssignDisplays(displays)
		if err := r.resync(); err != nil {
			return err
		}
		if id, err := r.backend.ActiveWindow(); err == nil && id != 0 {
			if _, ok := r.world.Window(id); ok {
				r.world.SetFocused(id)
			}
		}
		r.retileAll()
		return nil
	})
}

// Resync reconciles the world against a fresh window listing. Run
// periodically, it repairs whatever drifted past the event stream.
func (r *Reactor) Resync(ctx context.Context) error {
	return r.do(ctx, func() error {
		if err := r.resync(); err != nil {
			return err
		}
		r.retileAll()
		return nil
	})
}

// Reconfigure swaps in a new configuration and retiles everything under
// the new geometry parameters.
func (r *Reactor) Reconfigure(ctx context.Context, cfg *config.Config) error {
	return r.do(ctx, func() error {
		r.cfg = cfg
		r.rec = reconcile.New(cfg.Managed, r.logger)
		r.disp = dispatch.New(cfg.ResizeStep)
		easing, _ := animate.ParseEasing(cfg.Animation.Easing)
		r.anim.Reconfigure(animate.Config{
			Duration: cfg.Animation.Duration(),
			FPS:      cfg.Animation.FPS,
			Easing:   easing,
		})
		r.retileAll()
		return nil
	})
}

func (r *Reactor) handleEvent(ev platform.Event) {
	res := r.rec.Apply(r.world, ev)
	if res.Echo {
		return
	}
	if ev.Kind == platform.WindowAppeared {
		if rec, ok := r.world.Window(ev.Window); ok && !rec.Floating && r.cfg.FloatsByRule(rec.App) {
			if err := r.world.ToggleFloat(ev.Window); err == nil {
				r.logger.Debug("window floats by rule", "window", ev.Window, "app", rec.App)
			}
		}
	}
	if res.Changed {
		r.react(dispatch.Outcome{Workspaces: res.Workspaces})
	}
}

func (r *Reactor) react(out dispatch.Outcome) {
	for _, index := range dedupe(out.Workspaces) {
		r.retile(index)
	}
	if out.Raise != 0 {
		r.raise(out.Raise)
	}
	if out.Save {
		r.saveLayout()
	}
	if out.Reload && r.requestReload != nil {
		r.requestReload()
	}
}

// retile recomputes one workspace and starts animations toward any
// frame that moved. Hidden workspaces get their windows taken off
// screen instead.
func (r *Reactor) retile(index int) {
	if index < 0 || index >= len(r.world.Workspaces) {
		return
	}
	ws := r.world.Workspaces[index]
	if !r.world.Visible(index) {
		for _, id := range append(ws.Tree.Windows(), ws.Floating...) {
			r.anim.Cancel(id)
			r.setHidden(id, true)
		}
		return
	}
	region, ok := r.world.Region(index)
	if !ok {
		return
	}
	opts := layout.Options{Gap: r.cfg.Gap, MinPixels: r.cfg.MinPixels}
	frames := layout.Compute(ws.Tree, region, opts)
	for win, rect := range frames {
		rec, ok := r.world.Window(win)
		if !ok {
			continue
		}
		if rect.Zero() {
			// Unselected stack or tab member.
			r.anim.Cancel(win)
			r.setHidden(win, true)
			continue
		}
		r.setHidden(win, false)
		if rec.Degraded || rect == rec.Frame {
			continue
		}
		r.anim.Start(win, rec.Frame, rect)
	}
	for _, id := range ws.Floating {
		r.setHidden(id, false)
	}
}

func (r *Reactor) retileAll() {
	for i := range r.world.Workspaces {
		r.retile(i)
	}
}

// applyFrame forwards one animation step to the backend, stamped with a
// fresh generation. The frame becomes the window's assumed true frame
// immediately; the echo notification confirms it later.
func (r *Reactor) applyFrame(f animate.Frame) {
	rec, ok := r.world.Window(f.Window)
	if !ok {
		// Vanished mid-animation.
		r.anim.Cancel(f.Window)
		return
	}
	if rec.Degraded || rec.Hidden {
		return
	}
	r.gen++
	rec.LastIssuedGen = r.gen
	rec.LastIssuedFrame = f.Rect
	rec.Frame = f.Rect
	r.sendFrame(f.Window, frameCmd{rect: f.Rect, gen: r.gen, timeout: r.cfg.CommandTimeout()})
}

// sendFrame hands a geometry command to the window's worker. A worker
// that has fallen behind loses intermediate frames, never the ordering.
func (r *Reactor) sendFrame(win platform.WindowID, cmd frameCmd) {
	w, ok := r.workers[win]
	if !ok {
		w = make(chan frameCmd, 8)
		r.workers[win] = w
		go r.frameWorker(win, w)
	}
	select {
	case w <- cmd:
	default:
		r.logger.Debug("dropping intermediate frame", "window", win)
	}
}

// frameWorker serializes geometry commands for one window so a slow
// window never stalls the reactor or its siblings.
func (r *Reactor) frameWorker(win platform.WindowID, cmds <-chan frameCmd) {
	for {
		select {
		case <-r.runCtx.Done():
			return
		case c := <-cmds:
			err := r.issue(win, c)
			if err == nil {
				continue
			}
			select {
			case r.failures <- failure{win: win, err: err}:
			case <-r.runCtx.Done():
				return
			}
		}
	}
}

// issue performs one SetFrame with a bounded wait, retrying once before
// reporting failure.
func (r *Reactor) issue(win platform.WindowID, c frameCmd) error {
	try := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return r.backend.SetFrame(ctx, win, c.rect, c.gen)
	}
	err := try()
	if err == nil {
		return nil
	}
	return try()
}

func (r *Reactor) handleFailure(f failure) {
	rec, ok := r.world.Window(f.win)
	if !ok {
		return
	}
	rec.Degraded = true
	r.anim.Cancel(f.win)
	r.logger.Warn("window degraded after failed geometry command",
		"window", f.win, "app", rec.App, "error", f.err)
}

// raise asks the backend to raise and focus a window. A raise issued
// after this one invalidates it before it reaches the backend.
func (r *Reactor) raise(win platform.WindowID) {
	seq := r.raiseSeq.Add(1)
	timeout := r.cfg.CommandTimeout()
	go func() {
		if r.raiseSeq.Load() != seq {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := r.backend.Raise(ctx, win); err != nil {
			r.logger.Warn("raise failed", "window", win, "error", err)
		}
	}()
}

func (r *Reactor) setHidden(win platform.WindowID, hidden bool) {
	rec, ok := r.world.Window(win)
	if !ok || rec.Hidden == hidden {
		return
	}
	rec.Hidden = hidden
	timeout := r.cfg.CommandTimeout()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var err error
		if hidden {
			err = r.backend.Hide(ctx, win)
		} else {
			err = r.backend.Show(ctx, win)
		}
		if err != nil {
			r.logger.Warn("visibility change failed",
				"window", win, "hidden", hidden, "error", err)
		}
	}()
}

// resync walks the backend's window listing and repairs the world:
// unknown managed windows are adopted, tracked windows that no longer
// exist are dropped.
func (r *Reactor) resync() error {
	if displays, err := r.backend.Displays(); err == nil && !displaysEqual(displays, r.world.Displays) {
		r.logger.Info("display topology changed", "displays", len(displays))
		r.world.AssignDisplays(displays)
	}
	wins, err := r.backend.ListWindows()
	if err != nil {
		return err
	}
	seen := make(map[platform.WindowID]bool, len(wins))
	for _, win := range wins {
		if !r.cfg.Managed(win) {
			continue
		}
		seen[win.ID] = true
		if _, ok := r.world.Window(win.ID); ok {
			continue
		}
		rec, err := r.world.AddWindow(win, -1)
		if err != nil {
			r.logger.Warn("adopt failed during resync", "window", win.ID, "error", err)
			continue
		}
		if r.cfg.FloatsByRule(win.App) {
			_ = r.world.ToggleFloat(win.ID)
		}
		r.logger.Info("adopted window during resync",
			"window", win.ID, "app", rec.App, "workspace", rec.Workspace)
	}
	for _, rec := range r.world.Windows() {
		if seen[rec.ID] {
			continue
		}
		r.logger.Info("dropping stale window during resync", "window", rec.ID)
		_ = r.world.RemoveWindow(rec.ID)
	}
	return nil
}

func (r *Reactor) saveLayout() {
	if r.save == nil {
		return
	}
	if err := r.save(r.world); err != nil {
		r.logger.Error("layout save failed", "error", err)
		return
	}
	r.logger.Info("layout saved")
}

func displaysEqual(a, b []platform.Display) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func dedupe(indexes []int) []int {
	if len(indexes) < 2 {
		return indexes
	}
	seen := make(map[int]bool, len(indexes))
	out := indexes[:0]
	for _, i := range indexes {
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	return out
}

// WindowInfo is a copy of one window's state for inspection surfaces.
type WindowInfo struct {
	ID        uint32        `json:"id"`
	App       string        `json:"app"`
	Title     string        `json:"title,omitempty"`
	Workspace string        `json:"workspace"`
	Frame     geometry.Rect `json:"frame"`
	Floating  bool          `json:"floating,omitempty"`
	Degraded  bool          `json:"degraded,omitempty"`
	Hidden    bool          `json:"hidden,omitempty"`
	Focused   bool          `json:"focused,omitempty"`
}

// Status summarizes the daemon for inspection surfaces.
type Status struct {
	Workspaces int      `json:"workspaces"`
	Current    string   `json:"current"`
	Windows    int      `json:"windows"`
	Focused    uint32   `json:"focused,omitempty"`
	Displays   []string `json:"displays"`
	Degraded   int      `json:"degraded,omitempty"`
}

// WindowList snapshots every tracked window.
func (r *Reactor) WindowList(ctx context.Context) ([]WindowInfo, error) {
	var out []WindowInfo
	err := r.do(ctx, func() error {
		for _, rec := range r.world.Windows() {
			out = append(out, WindowInfo{
				ID:        uint32(rec.ID),
				App:       string(rec.App),
				Title:     rec.Title,
				Workspace: r.world.Workspaces[rec.Workspace].Name,
				Frame:     rec.Frame,
				Floating:  rec.Floating,
				Degraded:  rec.Degraded,
				Hidden:    rec.Hidden,
				Focused:   rec.ID == r.world.Focused(),
			})
		}
		return nil
	})
	return out, err
}

// CurrentStatus snapshots the daemon summary.
func (r *Reactor) CurrentStatus(ctx context.Context) (Status, error) {
	var st Status
	err := r.do(ctx, func() error {
		st.Workspaces = len(r.world.Workspaces)
		st.Current = r.world.Current().Name
		st.Windows = r.world.Len()
		st.Focused = uint32(r.world.Focused())
		for _, d := range r.world.Displays {
			st.Displays = append(st.Displays, d.Name)
		}
		for _, rec := range r.world.Windows() {
			if rec.Degraded {
				st.Degraded++
			}
		}
		return nil
	})
	return st, err
}

// LayoutDump snapshots every workspace's tree, keyed by workspace name.
func (r *Reactor) LayoutDump(ctx context.Context) (map[string]*tree.NodeDump, error) {
	out := make(map[string]*tree.NodeDump)
	err := r.do(ctx, func() error {
		apps := make(map[platform.WindowID]platform.AppID, r.world.Len())
		for _, rec := range r.world.Windows() {
			apps[rec.ID] = rec.App
		}
		for _, ws := range r.world.Workspaces {
			out[ws.Name] = ws.Tree.Dump(apps)
		}
		return nil
	})
	return out, err
}
