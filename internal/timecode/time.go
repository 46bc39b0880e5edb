// Package timecode implements rational timeline timekeeping.
//
// The timeline's native unit is the Tick, 1/60000 of a second. Whole
// frames at 24, 25, 30, 50, 60, 29.97 (30000/1001) and 59.94
// (60000/1001) fps land on integer tick boundaries. At 23.976
// (24000/1001) a frame lasts 2502.5 ticks, so only even frame indices
// land on a tick boundary; FromFrame truncates the odd ones.
package timecode

import "fmt"

// Rate is the fixed tick rate in ticks per second.
const Rate int64 = 60000

// Time is a non-negative rational instant or duration, stored as an
// integer tick count. Time is comparable with ==, <, etc. via Ticks().
type Time struct {
	ticks int64
}

// Zero is the origin of the timeline.
var Zero = Time{}

// FromTicks constructs a Time directly from a tick count. Negative
// values are rejected by callers at the timeline boundary (§3 invariant:
// Time >= 0 for all timeline coordinates); FromTicks itself does not
// panic so that intermediate arithmetic (e.g. subtraction before a
// range check) can proceed.
func FromTicks(ticks int64) Time {
	return Time{ticks: ticks}
}

// FromSeconds builds a Time from a floating point second count, rounding
// to the nearest tick. Seconds are a derived presentation value; callers
// that need bit-exact frame arithmetic should prefer FromFrame.
func FromSeconds(seconds float64) Time {
	return Time{ticks: int64(seconds*float64(Rate) + 0.5)}
}

// FromFrame builds a Time for frame index n at the given frames-per-second
// rational (num/den, e.g. 24/1 or 30000/1001). The result is exact
// when n*den*Rate is divisible by num; otherwise (e.g. odd n at
// 24000/1001) the tick count is truncated toward zero.
func FromFrame(n int64, fpsNum, fpsDen int64) Time {
	// ticks = n * den * Rate / num
	return Time{ticks: n * fpsDen * Rate / fpsNum}
}

// Ticks returns the raw tick count.
func (t Time) Ticks() int64 { return t.ticks }

// Seconds returns the presentation value in seconds.
func (t Time) Seconds() float64 { return float64(t.ticks) / float64(Rate) }

// Add returns t + d.
func (t Time) Add(d Time) Time { return Time{ticks: t.ticks + d.ticks} }

// Sub returns t - d. May be negative; callers must range-check at
// timeline boundaries per the Time >= 0 invariant.
func (t Time) Sub(d Time) Time { return Time{ticks: t.ticks - d.ticks} }

// Neg returns -t.
func (t Time) Neg() Time { return Time{ticks: -t.ticks} }

// Cmp returns -1, 0, or 1 as t is less than, equal to, or greater than o.
func (t Time) Cmp(o Time) int {
	switch {
	case t.ticks < o.ticks:
		return -1
	case t.ticks > o.ticks:
		return 1
	default:
		return 0
	}
}

func (t Time) Less(o Time) bool  { return t.ticks < o.ticks }
func (t Time) LessEq(o Time) bool { return t.ticks <= o.ticks }
func (t Time) Greater(o Time) bool { return t.ticks > o.ticks }
func (t Time) GreaterEq(o Time) bool { return t.ticks >= o.ticks }
func (t Time) Equal(o Time) bool { return t.ticks == o.ticks }
func (t Time) IsZero() bool { return t.ticks == 0 }
func (t Time) Negative() bool { return t.ticks < 0 }

// Min returns the earlier of a, b.
func Min(a, b Time) Time {
	if a.Less(b) {
		return a
	}
	return b
}

// Max returns the later of a, b.
func Max(a, b Time) Time {
	if a.Greater(b) {
		return a
	}
	return b
}

// Clamp constrains t to [lo, hi].
func Clamp(t, lo, hi Time) Time {
	if t.Less(lo) {
		return lo
	}
	if t.Greater(hi) {
		return hi
	}
	return t
}

// Progress returns (t-start)/(end-start) clamped to [0,1], for driving
// easing curves across a transition window. Returns 0 if end == start.
func Progress(t, start, end Time) float64 {
	span := end.Sub(start).ticks
	if span <= 0 {
		return 0
	}
	elapsed := t.Sub(start).ticks
	p := float64(elapsed) / float64(span)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (t Time) String() string {
	return fmt.Sprintf("%.3fs(%dt)", t.Seconds(), t.ticks)
}

// Range is a half-open [Start, Start+Duration) interval on the timeline.
type Range struct {
	Start    Time
	Duration Time
}

// End returns Start + Duration.
func (r Range) End() Time { return r.Start.Add(r.Duration) }

// Contains reports whether t lies in [Start, End).
func (r Range) Contains(t Time) bool {
	return !t.Less(r.Start) && t.Less(r.End())
}

// Overlaps reports whether r and o share any instant.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Less(o.End()) && o.Start.Less(r.End())
}

// FPS is a rational frames-per-second value used to derive CFR cadence
// from a QualityProfile or source probe.
type FPS struct {
	Num int64
	Den int64
}

// CommonFPS are the frame rates the spec requires Tick to represent
// exactly.
var CommonFPS = []FPS{
	{24, 1}, {25, 1}, {30, 1}, {50, 1}, {60, 1},
	{24000, 1001}, {30000, 1001}, {60000, 1001},
}

// Float returns the floating-point fps value.
func (f FPS) Float() float64 { return float64(f.Num) / float64(f.Den) }

// TickDuration returns the exact tick count spanning one frame at this
// rate.
func (f FPS) TickDuration() Time {
	return Time{ticks: f.Den * Rate / f.Num}
}

// FrameAt returns the frame index containing t (floor division).
func (f FPS) FrameAt(t Time) int64 {
	d := f.TickDuration().ticks
	if d == 0 {
		return 0
	}
	if t.ticks < 0 {
		return -((-t.ticks + d - 1) / d)
	}
	return t.ticks / d
}
