package editmodel

import (
	"github.com/mrjoshuak/gotio/opentime"
	"github.com/mrjoshuak/gotio/opentimelineio"

	"github.com/metavis/renderengine/internal/timecode"
)

// otioRate is the rational rate used when projecting our Tick-based
// Time onto OTIO's RationalTime (value, rate). Using the tick rate
// itself keeps the projection exact: no rounding occurs translating a
// Tick Time into an OTIO RationalTime and back.
const otioRate = float64(timecode.Rate)

func toRational(t timecode.Time) *opentime.RationalTime {
	rt := opentime.NewRationalTime(float64(t.Ticks()), otioRate)
	return &rt
}

// ToOTIO builds an OpenTimelineIO-compatible document mirroring a
// compiled Timeline: track kinds, clip ranges, transitions, and speed
// effects. It is a one-way export used for the "timeline.otio"
// interchange sidecar (SPEC_FULL §3.1) — never an input to rendering.
func ToOTIO(tl Timeline) *opentimelineio.Timeline {
	globalStart := opentime.NewRationalTime(0, otioRate)
	otioTL := opentimelineio.NewTimeline(tl.Name, &globalStart, opentimelineio.AnyDictionary{
		"tick_rate": otioRate,
	})

	for _, track := range tl.Tracks {
		kind := opentimelineio.TrackKindVideo
		if track.Kind == TrackAudio {
			kind = opentimelineio.TrackKindAudio
		}
		otioTrack := opentimelineio.NewTrack(track.Name, nil, kind, nil, nil)
		otioTL.Tracks().AppendChild(otioTrack)

		cursor := timecode.Zero
		for _, clip := range track.Sorted() {
			if clip.StartTime.Greater(cursor) {
				gap := clip.StartTime.Sub(cursor)
				otioTrack.AppendChild(opentimelineio.NewGapWithDuration(*toRational(gap)))
			}

			sourceRange := opentime.NewTimeRange(*toRational(clip.Offset), *toRational(clip.Duration))
			ref := opentimelineio.NewExternalReference(clip.Name, clip.Asset.URI, nil, nil)
			otioClip := opentimelineio.NewClip(clip.Name, ref, &sourceRange, nil, nil, nil, "", nil)

			if len(clip.Effects) > 0 {
				for _, eff := range clip.Effects {
					if eff.ID == "mv.retime" {
						factor := 1.0
						if v, ok := eff.Parameters["factor"]; ok {
							factor = v.Float
						}
						warp := opentimelineio.NewLinearTimeWarp(eff.ID, "LinearTimeWarp", factor, nil)
						otioClip.SetEffects(append(otioClip.Effects(), warp))
					}
				}
			}

			_ = otioTrack.AppendChild(otioClip)

			if clip.TransitionOut != nil && clip.TransitionOut.Kind != TransitionCut {
				d := toRational(clip.TransitionOut.Duration)
				tr := opentimelineio.NewTransition(string(clip.TransitionOut.Kind),
					opentimelineio.TransitionTypeSMPTEDissolve, *d, *d, nil)
				_ = otioTrack.AppendChild(tr)
			}

			cursor = clip.EndTime()
		}
	}

	return otioTL
}

// WriteOTIOFile serializes a compiled Timeline to an .otio sidecar file.
func WriteOTIOFile(tl Timeline, path string) error {
	doc := ToOTIO(tl)
	return opentimelineio.ToJSONFile(doc, path, "  ")
}
