// Package audiomix implements the Audio Mixer: for a timeline window
// it sums every active audio clip's samples, crossfading linearly
// across transition edges (audio fades are always linear regardless
// of a transition's video easing curve, per §4.4), and hands back a
// stereo buffer at the container's output sample rate. The channel-
// based crossfade idiom is grounded on InfiniteRadio's audio Pipeline,
// adapted from a real-time frame scheduler to a pure windowed mixer.
package audiomix

import (
	"context"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// SilencePolicy governs whether a deliverable without audible content
// still carries an audio track.
type SilencePolicy string

const (
	// SilenceForbidden: never emit an audio track.
	SilenceForbidden SilencePolicy = "forbidden"
	// SilenceRequired: always emit a track, silent or not; QC is
	// responsible for rejecting a silent Required deliverable.
	SilenceRequired SilencePolicy = "required"
	// SilenceAuto: emit a track only if at least one sample is nonzero.
	SilenceAuto SilencePolicy = "auto"
)

// AssetSource resolves one audio clip's samples for a source-time
// window, stereo-interleaved at sampleRate. Implementations isolate
// per-asset failures the way the Clip Reader does; a source unable to
// produce real samples for an asset should prefer returning silence
// over failing the whole mix unless the failure is a real contract
// violation (unknown kind, malformed URI).
type AssetSource interface {
	ReadSamples(ctx context.Context, asset editmodel.AssetReference, startSeconds, durationSeconds float64, sampleRate int) ([]float32, error)
}

// Result is the mixer's output for one window.
type Result struct {
	// Samples is stereo-interleaved float32 (L, R, L, R, ...), sized to
	// the window even when Emitted is false, so callers that ignore
	// Emitted still get a correctly-shaped silent buffer. Under
	// SilenceForbidden it is empty.
	Samples []float32
	// Emitted reports whether a track should actually be written for
	// this window under the active SilencePolicy.
	Emitted bool
}

// sampleEpsilon is half a sample's duration at rate: the spec's
// boundary-inclusion tolerance, applied so a clip edge landing exactly
// on a sample boundary is never dropped due to floating point
// representation of the tick-to-sample conversion.
func sampleEpsilon(rate int) float64 {
	return 0.5 / float64(rate)
}

// Mixer sums audio clips across a Timeline's audio tracks into
// fixed-rate stereo buffers.
type Mixer struct {
	source AssetSource
}

// NewMixer constructs a Mixer that resolves clip samples via source.
func NewMixer(source AssetSource) *Mixer {
	return &Mixer{source: source}
}

// Mix produces the stereo mix for window at sampleRate, honoring
// policy's silence rule. Under SilenceForbidden it returns an empty
// Result; otherwise the buffer has exactly
// round(window.Duration.Seconds() * sampleRate) stereo frames.
func (m *Mixer) Mix(ctx context.Context, tl editmodel.Timeline, window timecode.Range, sampleRate int, policy SilencePolicy) (Result, error) {
	if policy == SilenceForbidden {
		return Result{}, nil
	}
	if sampleRate <= 0 {
		return Result{}, xerrors.Compile("audio mixer requires a positive sample rate", map[string]any{"sampleRate": sampleRate})
	}

	n := int(window.Duration.Seconds()*float64(sampleRate) + 0.5)
	mix := make([]float32, n*2)
	windowStart := window.Start.Seconds()
	nonZero := false

	for _, track := range tl.AudioTracks() {
		for _, clip := range track.Sorted() {
			if err := ctx.Err(); err != nil {
				return Result{}, xerrors.Cancelled("audio mix cancelled")
			}
			added, err := m.mixClip(ctx, clip, windowStart, n, sampleRate, mix)
			if err != nil {
				return Result{}, err
			}
			nonZero = nonZero || added
		}
	}

	switch policy {
	case SilenceRequired:
		return Result{Samples: mix, Emitted: true}, nil
	case SilenceAuto:
		return Result{Samples: mix, Emitted: nonZero}, nil
	default:
		return Result{}, xerrors.Compile("unrecognized silence policy", map[string]any{"policy": string(policy)})
	}
}

// mixClip adds clip's contribution to the window-sized mix buffer,
// applying a linear fade gain at its transition edges, and reports
// whether it contributed any nonzero sample.
func (m *Mixer) mixClip(ctx context.Context, clip editmodel.Clip, windowStart float64, n, sampleRate int, mix []float32) (bool, error) {
	eps := sampleEpsilon(sampleRate)
	windowEnd := windowStart + float64(n)/float64(sampleRate)
	clipStart := clip.StartTime.Seconds()
	clipEnd := clip.EndTime().Seconds()

	overlapStart := clipStart - eps
	if overlapStart < windowStart {
		overlapStart = windowStart
	}
	overlapEnd := clipEnd + eps
	if overlapEnd > windowEnd {
		overlapEnd = windowEnd
	}
	if overlapEnd <= overlapStart {
		return false, nil
	}

	loIdx := int((overlapStart - windowStart) * float64(sampleRate))
	hiIdx := int((overlapEnd-windowStart)*float64(sampleRate) + 0.5)
	if loIdx < 0 {
		loIdx = 0
	}
	if hiIdx > n {
		hiIdx = n
	}
	if hiIdx <= loIdx {
		return false, nil
	}
	count := hiIdx - loIdx

	sourceStart := windowStart + float64(loIdx)/float64(sampleRate) - clipStart + clip.Offset.Seconds()
	samples, err := m.source.ReadSamples(ctx, clip.Asset, sourceStart, float64(count)/float64(sampleRate), sampleRate)
	if err != nil {
		return false, err
	}

	frames := len(samples) / 2
	nonZero := false
	for i := 0; i < count && i < frames; i++ {
		outIdx := loIdx + i
		t := timecode.FromSeconds(windowStart + float64(outIdx)/float64(sampleRate))
		gain := clipGain(clip, t)
		if gain == 0 {
			continue
		}
		l, r := samples[i*2]*float32(gain), samples[i*2+1]*float32(gain)
		mix[outIdx*2] += l
		mix[outIdx*2+1] += r
		if l != 0 || r != 0 {
			nonZero = true
		}
	}
	return nonZero, nil
}

// clipGain returns the linear fade gain for clip at instant t: 0
// outside the clip's active range, ramping 0→1 across its FadeIn
// window and 1→0 across its FadeOut window, 1 while fully active.
// Unlike the video compiler's stateOf/progress, this never consults
// the transition's Easing curve — §4.4 requires audio crossfades to
// be linear regardless of the video blend's easing.
func clipGain(c editmodel.Clip, t timecode.Time) float64 {
	if t.Less(c.StartTime) || !t.Less(c.EndTime()) {
		return 0
	}
	gain := 1.0
	if c.TransitionIn != nil {
		w := c.FadeInWindow()
		if w.Contains(t) {
			gain *= timecode.Progress(t, w.Start, w.End())
		}
	}
	if c.TransitionOut != nil {
		w := c.FadeOutWindow()
		if w.Contains(t) {
			gain *= 1 - timecode.Progress(t, w.Start, w.End())
		}
	}
	return gain
}
