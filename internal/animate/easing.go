package animate

import "fmt"

// Easing selects the interpolation curve.
type Easing uint8

const (
	// EaseInOutCubic accelerates then decelerates; the default.
	EaseInOutCubic Easing = iota
	// EaseOutCubic starts fast and settles.
	EaseOutCubic
	// Linear interpolates uniformly.
	Linear
)

// ParseEasing converts a config string to an Easing.
func ParseEasing(s string) (Easing, error) {
	switch s {
	case "", "ease-in-out":
		return EaseInOutCubic, nil
	case "ease-out":
		return EaseOutCubic, nil
	case "linear":
		return Linear, nil
	}
	return 0, fmt.Errorf("unknown easing %q", s)
}

func (e Easing) String() string {
	switch e {
	case EaseOutCubic:
		return "ease-out"
	case Linear:
		return "linear"
	default:
		return "ease-in-out"
	}
}

// Apply maps linear progress t in [0,1] onto the curve. Inputs outside
// the range are clamped.
func (e Easing) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch e {
	case Linear:
		return t
	case EaseOutCubic:
		u := 1 - t
		return 1 - u*u*u
	default:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := -2*t + 2
		return 1 - u*u*u/2
	}
}
