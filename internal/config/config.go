// Package config loads and validates the glidewm configuration.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/glidewm/glidewm/internal/animate"
	"github.com/glidewm/glidewm/internal/platform"
)

// Animation configures transition timing.
type Animation struct {
	DurationMs int    `yaml:"duration_ms"`
	FPS        int    `yaml:"fps"`
	Easing     string `yaml:"easing"`
}

// Duration returns the configured duration.
func (a Animation) Duration() time.Duration {
	return time.Duration(a.DurationMs) * time.Millisecond
}

// WorkspaceConfig names one workspace and optionally pins it to a
// display output.
type WorkspaceConfig struct {
	Name    string `yaml:"name"`
	Display string `yaml:"display,omitempty"`
}

// Rules controls which applications are tiled. Patterns are matched
// against the window's application class with path.Match globs,
// case-insensitively.
type Rules struct {
	// Include, when non-empty, restricts management to matching apps.
	Include []string `yaml:"include,omitempty"`
	// Exclude always wins over Include.
	Exclude []string `yaml:"exclude,omitempty"`
	// Float lists apps whose windows are managed but never tiled.
	Float []string `yaml:"float,omitempty"`
}

// Config is the effective daemon configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// Gap is the pixel gap between tiled windows and the screen edge.
	Gap int `yaml:"gap"`
	// DefaultSplitRatio is the share a newly split window receives.
	DefaultSplitRatio float64 `yaml:"default_split_ratio"`
	// MinFraction is the smallest ratio a split child can be resized to.
	MinFraction float64 `yaml:"min_fraction"`
	// MinPixels floors each split child's on-screen extent.
	MinPixels int `yaml:"min_pixels"`
	// ResizeStep is the ratio delta applied by resize commands.
	ResizeStep float64 `yaml:"resize_step"`

	Animation  Animation         `yaml:"animation"`
	Workspaces []WorkspaceConfig `yaml:"workspaces"`
	Rules      Rules             `yaml:"rules"`

	// Keybindings maps an X key sequence (xgbutil keybind grammar,
	// e.g. "mod4-h") to a command name.
	Keybindings map[string]string `yaml:"keybindings"`

	// ResyncSeconds is the period of the full adapter resync pass.
	ResyncSeconds int `yaml:"resync_seconds"`
	// CommandTimeoutMs bounds a single adapter geometry call.
	CommandTimeoutMs int `yaml:"command_timeout_ms"`
	// RestoreLayout loads the saved layout snapshot on startup.
	RestoreLayout bool `yaml:"restore_layout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		Gap:               8,
		DefaultSplitRatio: 0.5,
		MinFraction:       0.1,
		MinPixels:         40,
		ResizeStep:        0.05,
		Animation: Animation{
			DurationMs: 180,
			FPS:        60,
			Easing:     "ease-in-out",
		},
		Workspaces: []WorkspaceConfig{
			{Name: "1"}, {Name: "2"}, {Name: "3"}, {Name: "4"}, {Name: "5"},
		},
		Keybindings: map[string]string{
			"mod4-h":       "focus-left",
			"mod4-j":       "focus-down",
			"mod4-k":       "focus-up",
			"mod4-l":       "focus-right",
			"mod4-shift-h": "move-left",
			"mod4-shift-j": "move-down",
			"mod4-shift-k": "move-up",
			"mod4-shift-l": "move-right",
			"mod4-minus":   "resize-shrink",
			"mod4-equal":   "resize-grow",
			"mod4-b":       "split-horizontal",
			"mod4-v":       "split-vertical",
			"mod4-s":       "stack",
			"mod4-t":       "tab",
			"mod4-n":       "cycle-stack",
			"mod4-f":       "toggle-float",
			"mod4-r":       "retile",
			"mod4-1":       "workspace-1",
			"mod4-2":       "workspace-2",
			"mod4-3":       "workspace-3",
			"mod4-4":       "workspace-4",
			"mod4-5":       "workspace-5",
			"mod4-shift-1": "move-to-workspace-1",
			"mod4-shift-2": "move-to-workspace-2",
			"mod4-shift-3": "move-to-workspace-3",
			"mod4-shift-4": "move-to-workspace-4",
			"mod4-shift-5": "move-to-workspace-5",
			"mod4-shift-s": "save-layout",
		},
		ResyncSeconds:    10,
		CommandTimeoutMs: 250,
		RestoreLayout:    true,
	}
}

// Validate checks ranges and fills derived defaults.
func (c *Config) Validate() error {
	if c.DefaultSplitRatio <= 0 || c.DefaultSplitRatio >= 1 {
		return fmt.Errorf("default_split_ratio must be in (0, 1), got %g", c.DefaultSplitRatio)
	}
	if c.MinFraction <= 0 || c.MinFraction >= 0.5 {
		return fmt.Errorf("min_fraction must be in (0, 0.5), got %g", c.MinFraction)
	}
	if c.Gap < 0 {
		return fmt.Errorf("gap must be >= 0, got %d", c.Gap)
	}
	if c.MinPixels < 1 {
		return fmt.Errorf("min_pixels must be >= 1, got %d", c.MinPixels)
	}
	if c.ResizeStep <= 0 || c.ResizeStep >= 0.5 {
		return fmt.Errorf("resize_step must be in (0, 0.5), got %g", c.ResizeStep)
	}
	if len(c.Workspaces) == 0 {
		return fmt.Errorf("at least one workspace is required")
	}
	seen := make(map[string]struct{}, len(c.Workspaces))
	for _, ws := range c.Workspaces {
		if ws.Name == "" {
			return fmt.Errorf("workspace names must not be empty")
		}
		if _, dup := seen[ws.Name]; dup {
			return fmt.Errorf("duplicate workspace name %q", ws.Name)
		}
		seen[ws.Name] = struct{}{}
	}
	if _, err := animate.ParseEasing(c.Animation.Easing); err != nil {
		return err
	}
	if c.Animation.FPS < 1 || c.Animation.FPS > 240 {
		return fmt.Errorf("animation fps must be in [1, 240], got %d", c.Animation.FPS)
	}
	if c.Animation.DurationMs < 0 {
		return fmt.Errorf("animation duration_ms must be >= 0, got %d", c.Animation.DurationMs)
	}
	for _, pats := range [][]string{c.Rules.Include, c.Rules.Exclude, c.Rules.Float} {
		for _, p := range pats {
			if _, err := path.Match(p, ""); err != nil {
				return fmt.Errorf("invalid rule pattern %q: %w", p, err)
			}
		}
	}
	for seq, cmd := range c.Keybindings {
		if seq == "" || cmd == "" {
			return fmt.Errorf("keybindings must map a key sequence to a command")
		}
	}
	if c.ResyncSeconds < 1 {
		return fmt.Errorf("resync_seconds must be >= 1, got %d", c.ResyncSeconds)
	}
	if c.CommandTimeoutMs < 10 {
		return fmt.Errorf("command_timeout_ms must be >= 10, got %d", c.CommandTimeoutMs)
	}
	return nil
}

// WorkspaceNames returns the ordered workspace names.
func (c *Config) WorkspaceNames() []string {
	names := make([]string, len(c.Workspaces))
	for i, ws := range c.Workspaces {
		names[i] = ws.Name
	}
	return names
}

// CommandTimeout returns the adapter call deadline.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// Managed reports whether the application should be tiled at all.
func (c *Config) Managed(win platform.Window) bool {
	app := strings.ToLower(string(win.App))
	if matchAny(c.Rules.Exclude, app) {
		return false
	}
	if len(c.Rules.Include) > 0 {
		return matchAny(c.Rules.Include, app)
	}
	return true
}

// FloatsByRule reports whether the application's windows are managed
// floating rather than tiled.
func (c *Config) FloatsByRule(app platform.AppID) bool {
	return matchAny(c.Rules.Float, strings.ToLower(string(app)))
}

func matchAny(patterns []string, app string) bool {
	for _, p := range patterns {
		if ok, err := path.Match(strings.ToLower(p), app); err == nil && ok {
			return true
		}
	}
	return false
}
