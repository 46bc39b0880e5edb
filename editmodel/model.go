// Package editmodel defines the edit-tree data model the Timeline
// Compiler consumes: Timeline, Track, Clip, Transition, and
// FeatureApplication, plus AssetReference URI resolution and the
// closed feature-id catalog. An OTIO interchange adapter (otio.go)
// builds a standard OpenTimelineIO document from a compiled Timeline.
package editmodel

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/metavis/renderengine/internal/timecode"
)

// TrackKind distinguishes video, audio, and data tracks.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
	TrackData  TrackKind = "data"
)

// Easing is a named easing curve applied across a transition window.
type Easing string

const (
	EaseLinear    Easing = "linear"
	EaseIn        Easing = "easeIn"
	EaseOut       Easing = "easeOut"
	EaseInOut     Easing = "easeInOut"
)

// Apply evaluates the easing curve at progress p in [0,1].
func (e Easing) Apply(p float64) float64 {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	switch e {
	case EaseIn:
		return p * p
	case EaseOut:
		return p * (2 - p)
	case EaseInOut:
		if p < 0.5 {
			return 2 * p * p
		}
		return -1 + (4-2*p)*p
	default: // EaseLinear and unrecognized values fall back to linear
		return p
	}
}

// TransitionKind tags the transition variant.
type TransitionKind string

const (
	TransitionCut         TransitionKind = "cut"
	TransitionCrossfade   TransitionKind = "crossfade"
	TransitionDipToColor  TransitionKind = "dipToColor"
	TransitionWipe        TransitionKind = "wipe"
)

// WipeDirection encodes the axis and sign of a wipe transition.
type WipeDirection string

const (
	WipeLeftToRight WipeDirection = "leftToRight"
	WipeRightToLeft WipeDirection = "rightToLeft"
	WipeTopToBottom WipeDirection = "topToBottom"
	WipeBottomToTop WipeDirection = "bottomToTop"
)

// Transition is a tagged variant: Cut | Crossfade | DipToColor | Wipe.
type Transition struct {
	Kind     TransitionKind
	Duration timecode.Time
	Easing   Easing

	// DipToColor only.
	DipColor colormathRGB

	// Wipe only.
	Direction WipeDirection
}

// colormathRGB avoids an import cycle with internal/colormath at the
// editmodel layer; the compiler converts it on the way into the render
// graph. Kept as a tiny local struct rather than an alias so editmodel
// has no dependency on colormath's package internals.
type colormathRGB struct {
	R, G, B float64
}

func RGB(r, g, b float64) colormathRGB { return colormathRGB{r, g, b} }

// NodeValue is a parameter value attached to a FeatureApplication. It is
// a closed union over the scalar/vector kinds the node catalog accepts.
type NodeValue struct {
	Float  float64
	String string
	Bool   bool
	Vec3   [3]float64
}

// FeatureApplication binds a catalog feature id to parameters.
type FeatureApplication struct {
	ID         string
	Parameters map[string]NodeValue
}

// AssetReference is a stable identifier plus a resolvable URI. It is a
// value type: freely copied, never mutated after construction.
type AssetReference struct {
	ID  string
	URI string
}

// Scheme returns the URI scheme ("file", "ligm", or a decoder-specific
// media scheme).
func (a AssetReference) Scheme() (string, error) {
	u, err := url.Parse(a.URI)
	if err != nil {
		return "", fmt.Errorf("asset %s: invalid URI %q: %w", a.ID, a.URI, err)
	}
	return u.Scheme, nil
}

// Clip is the unit edit: a timeline placement of an asset with optional
// transitions and an effect chain.
type Clip struct {
	ID             string
	Name           string
	Asset          AssetReference
	StartTime      timecode.Time
	Duration       timecode.Time
	Offset         timecode.Time
	TransitionIn   *Transition
	TransitionOut  *Transition
	Effects        []FeatureApplication
}

// EndTime returns StartTime + Duration.
func (c Clip) EndTime() timecode.Time { return c.StartTime.Add(c.Duration) }

// Range returns the clip's timeline extent.
func (c Clip) Range() timecode.Range {
	return timecode.Range{Start: c.StartTime, Duration: c.Duration}
}

// FadeInWindow returns the [start, start+dur) window during which the
// clip is fading in via TransitionIn, or the zero Range if none.
func (c Clip) FadeInWindow() timecode.Range {
	if c.TransitionIn == nil {
		return timecode.Range{}
	}
	return timecode.Range{Start: c.StartTime, Duration: c.TransitionIn.Duration}
}

// FadeOutWindow returns the [end-dur, end) window during which the clip
// is fading out via TransitionOut, or the zero Range if none.
func (c Clip) FadeOutWindow() timecode.Range {
	if c.TransitionOut == nil {
		return timecode.Range{}
	}
	d := c.TransitionOut.Duration
	return timecode.Range{Start: c.EndTime().Sub(d), Duration: d}
}

// Track is a named, kinded, ordered sequence of clips.
type Track struct {
	Name  string
	Kind  TrackKind
	Clips []Clip
}

// Sorted returns the track's clips ordered by (StartTime, ClipID), the
// deterministic order the spec requires for stable z-order (§4.1 step 2).
func (t Track) Sorted() []Clip {
	out := make([]Clip, len(t.Clips))
	copy(out, t.Clips)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Less(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Validate surfaces unexplained clip overlaps: two clips on the same
// track may only overlap if both sides carry a transition whose window
// covers the overlap.
func (t Track) Validate() []error {
	var errs []error
	clips := t.Sorted()
	for i := 0; i+1 < len(clips); i++ {
		a, b := clips[i], clips[i+1]
		if !a.Range().Overlaps(b.Range()) {
			continue
		}
		if a.TransitionOut == nil || b.TransitionIn == nil {
			errs = append(errs, fmt.Errorf("track %s: unexplained overlap between clip %s and clip %s", t.Name, a.ID, b.ID))
			continue
		}
		if !a.TransitionOut.Duration.Equal(b.TransitionIn.Duration) {
			errs = append(errs, fmt.Errorf("track %s: transition duration mismatch between clip %s (%s) and clip %s (%s)",
				t.Name, a.ID, a.TransitionOut.Duration, b.ID, b.TransitionIn.Duration))
		} else if overlap := timecode.Min(a.EndTime(), b.EndTime()).Sub(b.StartTime); overlap.Greater(a.TransitionOut.Duration) {
			errs = append(errs, fmt.Errorf("track %s: overlap between clip %s and clip %s exceeds transition duration %s",
				t.Name, a.ID, b.ID, a.TransitionOut.Duration))
		}
	}
	return errs
}

// Timeline is the immutable root of an edit: tracks plus a total
// duration.
type Timeline struct {
	Name     string
	Tracks   []Track
	Duration timecode.Time
}

// VideoTracks returns tracks of kind video, in declaration order.
func (tl Timeline) VideoTracks() []Track { return tl.tracksOfKind(TrackVideo) }

// AudioTracks returns tracks of kind audio, in declaration order.
func (tl Timeline) AudioTracks() []Track { return tl.tracksOfKind(TrackAudio) }

func (tl Timeline) tracksOfKind(k TrackKind) []Track {
	var out []Track
	for _, t := range tl.Tracks {
		if t.Kind == k {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks the Duration >= max clip end invariant and collects
// per-track overlap errors. It never mutates the timeline.
func (tl Timeline) Validate() []error {
	var errs []error
	maxEnd := timecode.Zero
	for _, tr := range tl.Tracks {
		for _, c := range tr.Clips {
			if c.StartTime.Negative() {
				errs = append(errs, fmt.Errorf("track %s: clip %s has negative startTime", tr.Name, c.ID))
			}
			if tr.Kind == TrackVideo {
				maxEnd = timecode.Max(maxEnd, c.EndTime())
			}
		}
		errs = append(errs, tr.Validate()...)
	}
	if tl.Duration.Less(maxEnd) {
		errs = append(errs, fmt.Errorf("timeline duration %s is less than max video clip end %s", tl.Duration, maxEnd))
	}
	return errs
}
