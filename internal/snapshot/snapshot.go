// Package snapshot persists workspace layouts across daemon restarts.
// A snapshot stores tree shapes with application identities at the
// leaves; on restore, live windows are matched back to leaves by app,
// so the same arrangement reassembles even though window ids changed.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/state"
	"github.com/glidewm/glidewm/internal/tree"
)

// File is the on-disk snapshot document.
type File struct {
	SavedAt    time.Time   `yaml:"saved_at"`
	Workspaces []Workspace `yaml:"workspaces"`
}

// Workspace is one workspace's saved arrangement.
type Workspace struct {
	Name string         `yaml:"name"`
	Tree *tree.NodeDump `yaml:"tree,omitempty"`
}

// Capture copies the world's current arrangement into a snapshot.
func Capture(w *state.World) *File {
	apps := make(map[platform.WindowID]platform.AppID, w.Len())
	for _, rec := range w.Windows() {
		apps[rec.ID] = rec.App
	}
	f := &File{SavedAt: time.Now().UTC()}
	for _, ws := range w.Workspaces {
		f.Workspaces = append(f.Workspaces, Workspace{
			Name: ws.Name,
			Tree: ws.Tree.Dump(apps),
		})
	}
	return f
}

// Write saves the snapshot, replacing the file atomically so a watcher
// or crash never sees a half-written document.
func Write(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// Read loads a snapshot. A missing file is not an error; it returns
// (nil, nil).
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &f, nil
}

// Restore rearranges the world to match the snapshot. Workspaces are
// matched by name and their trees rebuilt; live windows fill the saved
// leaves, exact window ids first, then by application. Windows the
// snapshot does not mention keep their workspace and get appended to
// its rebuilt tree. Floating windows are left alone. The returned
// indexes are the workspaces whose layout changed.
func Restore(w *state.World, f *File, minFraction, defaultRatio float64) []int {
	if f == nil {
		return nil
	}
	byName := make(map[string]int, len(w.Workspaces))
	for i, ws := range w.Workspaces {
		byName[ws.Name] = i
	}

	claimed := make(map[platform.WindowID]int)
	resolve := func(target int) func(*tree.NodeDump) (platform.WindowID, bool) {
		return func(d *tree.NodeDump) (platform.WindowID, bool) {
			if d.Window != 0 {
				id := platform.WindowID(d.Window)
				if rec, ok := w.Window(id); ok && !rec.Floating {
					if _, taken := claimed[id]; !taken {
						claimed[id] = target
						return id, true
					}
				}
			}
			for _, rec := range w.Windows() {
				if rec.Floating || string(rec.App) != d.App {
					continue
				}
				if _, taken := claimed[rec.ID]; taken {
					continue
				}
				claimed[rec.ID] = target
				return rec.ID, true
			}
			return 0, false
		}
	}

	rebuilt := make(map[int]*tree.Tree)
	for _, sw := range f.Workspaces {
		index, ok := byName[sw.Name]
		if !ok || sw.Tree == nil {
			continue
		}
		rebuilt[index] = tree.FromDump(sw.Tree, minFraction, defaultRatio, resolve(index))
	}
	if len(rebuilt) == 0 {
		return nil
	}

	touched := make(map[int]struct{})
	for index := range rebuilt {
		touched[index] = struct{}{}
	}

	// Detach claimed windows from trees that survive untouched.
	for id := range claimed {
		rec, ok := w.Window(id)
		if !ok {
			continue
		}
		if _, replaced := rebuilt[rec.Workspace]; !replaced {
			_ = w.Workspaces[rec.Workspace].Tree.RemoveWindow(id)
			touched[rec.Workspace] = struct{}{}
		}
	}

	// Windows living on a rebuilt workspace that the snapshot did not
	// claim stay on that workspace, appended to the new tree.
	for _, rec := range w.Windows() {
		if rec.Floating {
			continue
		}
		if _, taken := claimed[rec.ID]; taken {
			continue
		}
		if nt, replaced := rebuilt[rec.Workspace]; replaced {
			_, _ = nt.InsertWindow(rec.ID, tree.InvalidNode)
		}
	}

	for index, nt := range rebuilt {
		w.Workspaces[index].Tree = nt
	}
	for id, target := range claimed {
		if rec, ok := w.Window(id); ok {
			rec.Workspace = target
		}
	}

	out := make([]int, 0, len(touched))
	for i := range touched {
		out = append(out, i)
	}
	return out
}
