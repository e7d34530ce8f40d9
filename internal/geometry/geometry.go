package geometry

import "fmt"

// Rect describes a window or screen region in root coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Zero reports whether the rect has no area. Hidden windows (the
// unselected children of a stack or tab) are assigned zero rects.
func (r Rect) Zero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// CenterX returns the horizontal center of the rect.
func (r Rect) CenterX() int { return r.X + r.Width/2 }

// CenterY returns the vertical center of the rect.
func (r Rect) CenterY() int { return r.Y + r.Height/2 }

// Contains reports whether the point (x, y) lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Intersect returns the overlap of two rects, or a zero rect when they
// are disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Inset shrinks the rect by the gap on every side, clamping to 1x1.
func (r Rect) Inset(gap int) Rect {
	out := Rect{
		X:      r.X + gap,
		Y:      r.Y + gap,
		Width:  r.Width - 2*gap,
		Height: r.Height - 2*gap,
	}
	if out.Width < 1 {
		out.Width = 1
	}
	if out.Height < 1 {
		out.Height = 1
	}
	return out
}

// Near reports whether two rects differ by at most tol pixels on any
// edge. Window managers and toolkits disagree about decoration offsets,
// so frame comparisons are tolerant.
func (r Rect) Near(o Rect, tol int) bool {
	return abs(r.X-o.X) <= tol &&
		abs(r.Y-o.Y) <= tol &&
		abs(r.Width-o.Width) <= tol &&
		abs(r.Height-o.Height) <= tol
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// Lerp linearly interpolates between two rects. t is clamped to [0, 1].
func Lerp(from, to Rect, t float64) Rect {
	if t <= 0 {
		return from
	}
	if t >= 1 {
		return to
	}
	return Rect{
		X:      from.X + int(float64(to.X-from.X)*t),
		Y:      from.Y + int(float64(to.Y-from.Y)*t),
		Width:  from.Width + int(float64(to.Width-from.Width)*t),
		Height: from.Height + int(float64(to.Height-from.Height)*t),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
