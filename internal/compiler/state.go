package compiler

import (
	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/timecode"
)

// ClipState is a clip's activation phase at a given timeline instant,
// per the compiler's per-clip state machine (Before/FadingIn/Active/
// FadingOut/After). Transitions only fire from the clip's own
// boundaries; there is no re-entry.
type ClipState int

const (
	StateBefore ClipState = iota
	StateFadingIn
	StateActive
	StateFadingOut
	StateAfter
)

func (s ClipState) String() string {
	switch s {
	case StateBefore:
		return "Before"
	case StateFadingIn:
		return "FadingIn"
	case StateActive:
		return "Active"
	case StateFadingOut:
		return "FadingOut"
	case StateAfter:
		return "After"
	default:
		return "Unknown"
	}
}

// stateOf evaluates clip c's state at time t.
func stateOf(c editmodel.Clip, t timecode.Time) ClipState {
	if t.Less(c.StartTime) {
		return StateBefore
	}
	end := c.EndTime()
	if !t.Less(end) {
		return StateAfter
	}
	if c.TransitionIn != nil {
		w := c.FadeInWindow()
		if w.Contains(t) {
			return StateFadingIn
		}
	}
	if c.TransitionOut != nil {
		w := c.FadeOutWindow()
		if w.Contains(t) {
			return StateFadingOut
		}
	}
	return StateActive
}

// isSelected reports whether a clip in state s participates in the
// frame at all (compiler step 1: selection).
func isSelected(s ClipState) bool {
	return s != StateBefore && s != StateAfter
}

// progress returns the eased [0,1] position of t within a fade window
// defined by (windowStart, duration, easing). Used for both FadingIn
// and FadingOut: the caller supplies the correct window.
func progress(t, windowStart timecode.Time, duration timecode.Time, easing editmodel.Easing) float64 {
	if duration.IsZero() {
		return 1
	}
	tau := t.Sub(windowStart).Seconds()
	d := duration.Seconds()
	return easing.Apply(tau / d)
}
