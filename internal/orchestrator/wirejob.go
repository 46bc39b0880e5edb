package orchestrator

import (
	"encoding/json"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/compiler"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// WireTimeline is the JSON shape POST /api/v1/jobs accepts for its
// "timeline" field: a flattened editmodel.Timeline expressed in plain
// seconds rather than timecode.Time's unexported tick count, since
// Time has no JSON encoding of its own (spec.md keeps Time opaque
// outside the render core on purpose). Transitions and per-clip
// effects are intentionally out of scope for this minimal external
// collaborator boundary (SPEC_FULL §4.8); callers that need them drive
// the orchestrator as a library instead of through HTTP.
type WireTimeline struct {
	Name            string      `json:"name"`
	DurationSeconds float64     `json:"durationSeconds"`
	Tracks          []WireTrack `json:"tracks"`
}

type WireTrack struct {
	Name  string      `json:"name"`
	Kind  string      `json:"kind"`
	Clips []WireClip  `json:"clips"`
}

type WireClip struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	AssetID          string  `json:"assetId"`
	AssetURI         string  `json:"assetUri"`
	StartSeconds     float64 `json:"startSeconds"`
	DurationSeconds  float64 `json:"durationSeconds"`
	OffsetSeconds    float64 `json:"offsetSeconds"`
}

// ParseWireTimeline decodes a map[string]interface{} (as stored in
// models.RenderJob.Timeline) into a WireTimeline via a JSON round trip.
func ParseWireTimeline(raw map[string]interface{}) (WireTimeline, error) {
	var wt WireTimeline
	data, err := json.Marshal(raw)
	if err != nil {
		return wt, xerrors.Engine("failed to marshal submitted timeline", map[string]any{"cause": err.Error()})
	}
	if err := json.Unmarshal(data, &wt); err != nil {
		return wt, xerrors.Engine("failed to parse submitted timeline", map[string]any{"cause": err.Error()})
	}
	return wt, nil
}

// ToTimeline converts the wire shape into an editmodel.Timeline.
func (wt WireTimeline) ToTimeline() (editmodel.Timeline, error) {
	if len(wt.Tracks) == 0 {
		return editmodel.Timeline{}, xerrors.Compile("timeline has no tracks", nil)
	}
	tl := editmodel.Timeline{
		Name:     wt.Name,
		Duration: timecode.FromSeconds(wt.DurationSeconds),
	}
	for _, wtr := range wt.Tracks {
		kind := editmodel.TrackVideo
		switch wtr.Kind {
		case "audio":
			kind = editmodel.TrackAudio
		case "data":
			kind = editmodel.TrackData
		}
		track := editmodel.Track{Name: wtr.Name, Kind: kind}
		for _, wc := range wtr.Clips {
			if wc.ID == "" || wc.AssetID == "" || wc.AssetURI == "" {
				return editmodel.Timeline{}, xerrors.Compile("clip missing id/assetId/assetUri", map[string]any{"clip": wc.Name})
			}
			track.Clips = append(track.Clips, editmodel.Clip{
				ID:   wc.ID,
				Name: wc.Name,
				Asset: editmodel.AssetReference{
					ID:  wc.AssetID,
					URI: wc.AssetURI,
				},
				StartTime: timecode.FromSeconds(wc.StartSeconds),
				Duration:  timecode.FromSeconds(wc.DurationSeconds),
				Offset:    timecode.FromSeconds(wc.OffsetSeconds),
			})
		}
		tl.Tracks = append(tl.Tracks, track)
	}
	return tl, nil
}

// qualityPresets maps the named quality tiers the HTTP API accepts to
// compiler.QualityProfile values. Named tiers keep the external
// surface small; library callers can still build any QualityProfile
// directly.
var qualityPresets = map[string]compiler.QualityProfile{
	"sd":   {Name: "sd", Fidelity: "delivery", ResolutionHeight: 480, ColorDepth: 8},
	"hd":   {Name: "hd", Fidelity: "delivery", ResolutionHeight: 1080, ColorDepth: 8},
	"4k":   {Name: "4k", Fidelity: "delivery", ResolutionHeight: 2160, ColorDepth: 10},
	"8k":   {Name: "8k", Fidelity: "delivery", ResolutionHeight: 4320, ColorDepth: 10},
}

// QualityProfileForName resolves a named quality tier, defaulting to hd
// for an unrecognized or empty name.
func QualityProfileForName(name string) compiler.QualityProfile {
	if profile, ok := qualityPresets[name]; ok {
		return profile
	}
	return qualityPresets["hd"]
}
