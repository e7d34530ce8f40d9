// Package hotkeys binds global X key sequences to daemon commands.
package hotkeys

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/reactor"
)

// dispatchTimeout bounds one command round trip through the reactor.
const dispatchTimeout = 2 * time.Second

// x11Accessor is an optional interface for backends that expose X11
// internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts.
type Handler struct {
	xu      *xgbutil.XUtil
	root    xproto.Window
	reactor *reactor.Reactor
	bound   []string
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler on the backend's X connection.
func NewHandler(backend platform.Backend, re *reactor.Reactor) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok {
		return nil, fmt.Errorf("backend does not expose an X11 connection")
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:      xu,
		root:    accessor.RootWindow(),
		reactor: re,
	}, nil
}

// Bind registers every keybinding in the table. Sequences that fail to
// grab are logged and skipped; one unbindable key must not take the
// rest down with it.
func (h *Handler) Bind(keybindings map[string]string) error {
	bound := 0
	for sequence, command := range keybindings {
		if err := h.register(sequence, command); err != nil {
			log.Printf("Failed to bind %q to %s: %v", sequence, command, err)
			continue
		}
		h.bound = append(h.bound, sequence)
		bound++
	}
	if bound == 0 && len(keybindings) > 0 {
		return fmt.Errorf("no keybindings could be registered")
	}
	return nil
}

// Rebind drops every binding and registers a new table. Used on config
// reload.
func (h *Handler) Rebind(keybindings map[string]string) error {
	keybind.Detach(h.xu, h.root)
	h.bound = nil
	return h.Bind(keybindings)
}

func (h *Handler) register(sequence, command string) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			defer cancel()
			if err := h.reactor.Dispatch(ctx, command); err != nil {
				log.Printf("Command %s failed: %v", command, err)
			}
		}()
	}).Connect(h.xu, h.root, sequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
