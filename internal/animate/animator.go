// Package animate turns target frames into time-sequenced intermediate
// frames. One job exists per window at a time; a newer target takes
// over from the in-flight job's current frame, so motion never jumps.
package animate

import (
	"context"
	"time"

	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
)

// Frame is one step of a window's animation, emitted toward the
// reactor at a bounded rate.
type Frame struct {
	Window platform.WindowID
	Rect   geometry.Rect
	// Done marks the final frame of a job.
	Done bool
}

// Config controls timing. Zero values fall back to defaults.
type Config struct {
	Duration time.Duration
	FPS      int
	Easing   Easing
}

const (
	defaultDuration = 180 * time.Millisecond
	defaultFPS      = 60
)

type target struct {
	win      platform.WindowID
	from, to geometry.Rect
}

type job struct {
	from, to geometry.Rect
	current  geometry.Rect
	started  time.Time
	// cancelled is checked before every emit; a cancelled job stops
	// without a final snap frame.
	cancelled bool
}

// Animator runs its own goroutine and communicates with the reactor by
// channels only.
type Animator struct {
	cfg      Config
	targets  chan target
	cancels  chan platform.WindowID
	frames   chan Frame
	reconfig chan Config
	now      func() time.Time
}

// New creates an animator. Call Run to start it.
func New(cfg Config) *Animator {
	if cfg.Duration <= 0 {
		cfg.Duration = defaultDuration
	}
	if cfg.FPS <= 0 {
		cfg.FPS = defaultFPS
	}
	return &Animator{
		cfg:      cfg,
		targets:  make(chan target, 64),
		cancels:  make(chan platform.WindowID, 64),
		frames:   make(chan Frame, 64),
		reconfig: make(chan Config, 1),
		now:      time.Now,
	}
}

// Frames is the stream of intermediate frames for the reactor to apply.
func (a *Animator) Frames() <-chan Frame { return a.frames }

// Start begins animating a window from one frame toward another. If a
// job is already in flight for the window it is superseded: the new job
// starts from the in-flight job's current interpolated frame. Start
// never blocks; the reactor is both the caller and the frame consumer,
// so waiting here could deadlock the two. When the queue is full the
// oldest queued target is shed, and the next recompute re-issues
// whatever was lost.
func (a *Animator) Start(win platform.WindowID, from, to geometry.Rect) {
	enqueue(a.targets, target{win: win, from: from, to: to})
}

// Cancel stops any in-flight job for the window without emitting a
// final frame. Like Start it never blocks; a shed cancel is repaired by
// the superseding Start that follows it.
func (a *Animator) Cancel(win platform.WindowID) {
	enqueue(a.cancels, win)
}

// enqueue delivers v without blocking, shedding the oldest queued
// element when the channel is full.
func enqueue[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Reconfigure applies new timing. It takes effect on the next tick.
func (a *Animator) Reconfigure(cfg Config) {
	if cfg.Duration <= 0 {
		cfg.Duration = defaultDuration
	}
	if cfg.FPS <= 0 {
		cfg.FPS = defaultFPS
	}
	select {
	case a.reconfig <- cfg:
	default:
	}
}

// Run ticks jobs until the context is cancelled.
func (a *Animator) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(a.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	jobs := make(map[platform.WindowID]*job)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-a.targets:
			a.accept(jobs, t)
		case win := <-a.cancels:
			if j, ok := jobs[win]; ok {
				j.cancelled = true
				delete(jobs, win)
			}
		case cfg := <-a.reconfig:
			a.cfg = cfg
			ticker.Reset(time.Second / time.Duration(cfg.FPS))
		case now := <-ticker.C:
			a.tick(ctx, jobs, now)
		}
	}
}

func (a *Animator) accept(jobs map[platform.WindowID]*job, t target) {
	from := t.from
	if prev, ok := jobs[t.win]; ok {
		// Supersede: continue from wherever the old job got to.
		from = prev.current
		prev.cancelled = true
	}
	if from == t.to {
		delete(jobs, t.win)
		return
	}
	jobs[t.win] = &job{
		from:    from,
		to:      t.to,
		current: from,
		started: a.now(),
	}
}

func (a *Animator) tick(ctx context.Context, jobs map[platform.WindowID]*job, now time.Time) {
	for win, j := range jobs {
		if j.cancelled {
			delete(jobs, win)
			continue
		}
		t := float64(now.Sub(j.started)) / float64(a.cfg.Duration)
		done := t >= 1
		j.current = geometry.Lerp(j.from, j.to, a.cfg.Easing.Apply(t))
		if done {
			j.current = j.to
			delete(jobs, win)
		}
		select {
		case a.frames <- Frame{Window: win, Rect: j.current, Done: done}:
		case <-ctx.Done():
			return
		}
	}
}
