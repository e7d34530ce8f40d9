// Package layout computes concrete window frames from a tree snapshot.
// It is a pure function of its inputs: no side effects, and identical
// tree and region always produce identical frames.
package layout

import (
	"github.com/glidewm/glidewm/internal/geometry"
	"github.com/glidewm/glidewm/internal/platform"
	"github.com/glidewm/glidewm/internal/tree"
)

// Options tune pixel-level behavior; they do not affect which windows
// are visible.
type Options struct {
	// Gap is inserted between sibling frames and around the region.
	Gap int
	// MinPixels floors each split child's extent along the split axis,
	// so extreme ratios cannot produce degenerate slivers.
	MinPixels int
}

// DefaultMinPixels guards against zero-width slivers when the caller
// passes no explicit floor.
const DefaultMinPixels = 40

// Compute maps every tiled window to its target frame within region.
// Hidden windows (unselected stack/tab children) map to a zero rect.
func Compute(t *tree.Tree, region geometry.Rect, opts Options) map[platform.WindowID]geometry.Rect {
	if opts.MinPixels <= 0 {
		opts.MinPixels = DefaultMinPixels
	}
	frames := make(map[platform.WindowID]geometry.Rect, t.Len())
	usable := region
	if opts.Gap > 0 {
		usable = region.Inset(opts.Gap)
	}
	computeNode(t, t.Root(), usable, opts, frames, false)
	return frames
}

func computeNode(t *tree.Tree, id tree.NodeID, region geometry.Rect, opts Options, frames map[platform.WindowID]geometry.Rect, hidden bool) {
	if win, ok := t.WindowAt(id); ok {
		if hidden {
			frames[win] = geometry.Rect{}
		} else {
			frames[win] = region
		}
		return
	}
	children := t.Children(id)
	if len(children) == 0 {
		return
	}
	kind := t.KindOf(id)
	if !kind.IsSplit() {
		selected := t.Selected(id)
		for i, c := range children {
			computeNode(t, c, region, opts, frames, hidden || i != selected)
		}
		return
	}
	ratios := t.Ratios(id)
	sizes := partition(axisSpan(kind, region), ratios, opts)
	offset := 0
	for i, c := range children {
		computeNode(t, c, axisSlice(kind, region, offset, sizes[i]), opts, frames, hidden)
		offset += sizes[i]
		if opts.Gap > 0 {
			offset += opts.Gap
		}
	}
}

// partition divides span pixels among len(ratios) children. Each child
// gets floor(ratio*available) clamped to the minimum floor; the last
// child absorbs the rounding remainder so the slices always cover the
// span exactly.
func partition(span int, ratios []float64, opts Options) []int {
	n := len(ratios)
	sizes := make([]int, n)
	if n == 0 {
		return sizes
	}
	avail := span
	if opts.Gap > 0 {
		avail -= opts.Gap * (n - 1)
	}
	if avail < n {
		avail = n
	}
	minPx := opts.MinPixels
	if minPx*n > avail {
		// The region is too small for the floor; degrade to an even
		// division rather than overflowing it.
		minPx = avail / n
		if minPx < 1 {
			minPx = 1
		}
	}
	used := 0
	for i := 0; i < n-1; i++ {
		s := int(ratios[i] * float64(avail))
		if s < minPx {
			s = minPx
		}
		sizes[i] = s
		used += s
	}
	last := avail - used
	if last < minPx {
		last = minPx
	}
	sizes[n-1] = last
	return sizes
}

func axisSpan(kind tree.Kind, r geometry.Rect) int {
	if kind == tree.SplitH {
		return r.Width
	}
	return r.Height
}

func axisSlice(kind tree.Kind, r geometry.Rect, offset, size int) geometry.Rect {
	if kind == tree.SplitH {
		return geometry.Rect{X: r.X + offset, Y: r.Y, Width: size, Height: r.Height}
	}
	return geometry.Rect{X: r.X, Y: r.Y + offset, Width: r.Width, Height: size}
}
