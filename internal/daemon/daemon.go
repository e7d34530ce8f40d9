// Package daemon assembles and supervises the long-running services:
// the X11 event pump, the reactor, the animator, the IPC server, the
// hotkey bindings, the config watcher, and the periodic resync.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glidewm/glidewm/internal/animate"
	"github.com/glidewm/glidewm/internal/config"
	"github.com/glidewm/glidewm/internal/hotkeys"
	"github.com/glidewm/glidewm/internal/ipc"
	"github.com/glidewm/glidewm/internal/reactor"
	"github.com/glidewm/glidewm/internal/runtimepath"
	"github.com/glidewm/glidewm/internal/snapshot"
	"github.com/glidewm/glidewm/internal/state"
	"github.com/glidewm/glidewm/internal/x11"
)

// bootstrapTimeout bounds the initial world priming against the X
// server.
const bootstrapTimeout = 10 * time.Second

// Daemon owns the service lifecycle.
type Daemon struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
}

// New creates a daemon. cfgPath may be empty when running on built-in
// defaults; the config watcher is skipped then.
func New(cfg *config.Config, cfgPath string, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Run starts every service and blocks until the context is cancelled or
// a service fails.
func (d *Daemon) Run(ctx context.Context) error {
	backend, err := x11.New()
	if err != nil {
		return fmt.Errorf("x11 connection failed: %w", err)
	}
	defer backend.Close()

	world := state.New(d.cfg.WorkspaceNames(), d.cfg.MinFraction, d.cfg.DefaultSplitRatio)
	for i, wc := range d.cfg.Workspaces {
		if i < len(world.Workspaces) {
			world.Workspaces[i].Preferred = wc.Display
		}
	}

	easing, _ := animate.ParseEasing(d.cfg.Animation.Easing)
	anim := animate.New(animate.Config{
		Duration: d.cfg.Animation.Duration(),
		FPS:      d.cfg.Animation.FPS,
		Easing:   easing,
	})

	layoutPath, err := runtimepath.LayoutPath()
	if err != nil {
		d.logger.Warn("layout persistence disabled", "error", err)
	}

	reloadCh := make(chan struct{}, 1)
	saveCh := make(chan struct{}, 1)

	re := reactor.New(reactor.Options{
		Backend:  backend,
		World:    world,
		Animator: anim,
		Config:   d.cfg,
		Logger:   d.logger,
		SaveLayout: func(w *state.World) error {
			if layoutPath == "" {
				return fmt.Errorf("no layout path available")
			}
			return snapshot.Write(layoutPath, snapshot.Capture(w))
		},
		RequestReload: func() {
			select {
			case reloadCh <- struct{}{}:
			default:
			}
		},
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return backend.Run(ctx) })
	g.Go(func() error { return anim.Run(ctx) })
	g.Go(func() error { return re.Run(ctx) })

	bootCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	err = re.Bootstrap(bootCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if d.cfg.RestoreLayout && layoutPath != "" {
		d.restoreLayout(ctx, re, layoutPath)
	}

	hot, err := hotkeys.NewHandler(backend, re)
	if err != nil {
		return fmt.Errorf("hotkey setup failed: %w", err)
	}
	if err := hot.Bind(d.cfg.Keybindings); err != nil {
		d.logger.Warn("keybinding registration incomplete", "error", err)
	}

	srv, err := ipc.NewServer(re, reloadCh, saveCh)
	if err != nil {
		return fmt.Errorf("ipc setup failed: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("ipc start failed: %w", err)
	}
	defer srv.Stop()

	if d.cfgPath != "" {
		path := d.cfgPath
		g.Go(func() error {
			return config.Watch(ctx, path, reloadCh, d.logger)
		})
	}

	g.Go(func() error { return d.supervise(ctx, re, hot, saveCh, reloadCh) })

	d.logger.Info("daemon running")
	return g.Wait()
}

// supervise drives the periodic resync and services reload and save
// requests from the IPC server, the config watcher, and keybindings.
func (d *Daemon) supervise(ctx context.Context, re *reactor.Reactor, hot *hotkeys.Handler, saveCh, reloadCh <-chan struct{}) error {
	interval := time.Duration(d.cfg.ResyncSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := re.Resync(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("resync failed", "error", err)
			}
		case <-reloadCh:
			d.reload(ctx, re, hot)
		case <-saveCh:
			if err := re.Dispatch(ctx, "save-layout"); err != nil && ctx.Err() == nil {
				d.logger.Warn("layout save failed", "error", err)
			}
		}
	}
}

// reload swaps in a freshly loaded configuration. Workspace topology is
// fixed for the daemon's lifetime; a changed workspace list needs a
// restart and is logged as such.
func (d *Daemon) reload(ctx context.Context, re *reactor.Reactor, hot *hotkeys.Handler) {
	var (
		cfg *config.Config
		err error
	)
	if d.cfgPath != "" {
		cfg, err = config.LoadFromPath(d.cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		d.logger.Error("config reload rejected", "error", err)
		return
	}
	if len(cfg.WorkspaceNames()) != len(d.cfg.WorkspaceNames()) {
		d.logger.Warn("workspace list changed; restart to apply")
	}
	if err := re.Reconfigure(ctx, cfg); err != nil {
		d.logger.Error("config reload failed", "error", err)
		return
	}
	if err := hot.Rebind(cfg.Keybindings); err != nil {
		d.logger.Warn("keybinding rebind incomplete", "error", err)
	}
	d.cfg = cfg
	d.logger.Info("config reloaded")
}

func (d *Daemon) restoreLayout(ctx context.Context, re *reactor.Reactor, path string) {
	snap, err := snapshot.Read(path)
	if err != nil {
		d.logger.Warn("layout restore failed", "error", err)
		return
	}
	if snap == nil {
		return
	}
	minFraction := d.cfg.MinFraction
	defaultRatio := d.cfg.DefaultSplitRatio
	err = re.Mutate(ctx, func(w *state.World) ([]int, error) {
		return snapshot.Restore(w, snap, minFraction, defaultRatio), nil
	})
	if err != nil {
		d.logger.Warn("layout restore failed", "error", err)
		return
	}
	d.logger.Info("layout restored", "saved_at", snap.SavedAt)
}
