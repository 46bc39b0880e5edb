package compiler

import (
	"fmt"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// RenderRequest is the compiler's sole output: a validated, ordered
// render graph plus the frame geometry it was built for. The Engine
// treats it as opaque input; it never looks back at the Timeline.
type RenderRequest struct {
	Time       timecode.Time
	Graph      *rendergraph.Graph
	Order      []rendergraph.NodeID
	Width      int
	Height     int
	ColorDepth int
}

// featureNodeKind maps a closed-catalog feature id to the render node
// kind that implements it. audio.dialogCleanwater.v1 has no video node
// ; it is consumed only by the Audio Mixer.
var featureNodeKind = map[string]rendergraph.Kind{
	"mv.colorGrade":               rendergraph.KindColorCDL,
	"mv.retime":                   rendergraph.KindRetime,
	"com.metavis.fx.tonemap.aces": rendergraph.KindToneMapACES,
	"com.metavis.fx.false_color.turbo": rendergraph.KindFalseColor,
	"com.metavis.fx.lut3d":        rendergraph.KindLUT3D,
	"com.metavis.fx.watermark":    rendergraph.KindWatermark,
}

// Compile lowers tl at instant t into a RenderRequest sized per
// profile. It is pure: given the same (tl, t, profile) it produces
// byte-identical graphs across runs, and it never reads frame data.
func Compile(tl editmodel.Timeline, t timecode.Time, profile QualityProfile) (RenderRequest, error) {
	graph := rendergraph.New()

	var masterOutput rendergraph.NodeID
	haveMaster := false

	for trackIdx, track := range tl.VideoTracks() {
		out, err := compileTrack(graph, track, trackIdx, t)
		if err != nil {
			return RenderRequest{}, err
		}
		if out == "" {
			continue
		}
		if !haveMaster {
			masterOutput = out
			haveMaster = true
			continue
		}
		id := rendergraph.NodeID(fmt.Sprintf("master:%d", trackIdx))
		if err := graph.AddNode(rendergraph.Node{
			ID: id, Kind: rendergraph.KindComposite,
			Inputs: []rendergraph.NodeID{masterOutput, out},
			Params: map[string]rendergraph.Param{"blendMode": {String: "over"}},
		}); err != nil {
			return RenderRequest{}, err
		}
		masterOutput = id
	}

	if !haveMaster {
		id := rendergraph.NodeID("fallback:blackfill")
		if err := graph.AddNode(rendergraph.Node{ID: id, Kind: rendergraph.KindBlackFill}); err != nil {
			return RenderRequest{}, err
		}
		masterOutput = id
	}

	sink := rendergraph.NodeID("odt")
	if err := graph.AddNode(rendergraph.Node{
		ID: sink, Kind: rendergraph.KindODT,
		Inputs: []rendergraph.NodeID{masterOutput},
		Params: map[string]rendergraph.Param{
			"from":       {String: "ACEScg"},
			"to":         {String: "Rec709"},
			"colorDepth": {Int: int64(profile.ColorDepth)},
		},
	}); err != nil {
		return RenderRequest{}, err
	}

	order, err := graph.Validate()
	if err != nil {
		return RenderRequest{}, err
	}

	return RenderRequest{
		Time:       t,
		Graph:      graph,
		Order:      order,
		Width:      profile.Width(),
		Height:     profile.ResolutionHeight,
		ColorDepth: profile.ColorDepth,
	}, nil
}

// compileTrack builds the composited subgraph for one video track at
// t, returning the node feeding the track's contribution, or "" if no
// clip on the track is selected at t.
func compileTrack(graph *rendergraph.Graph, track editmodel.Track, trackIdx int, t timecode.Time) (rendergraph.NodeID, error) {
	sorted := track.Sorted()

	type active struct {
		clip  editmodel.Clip
		state ClipState
		node  rendergraph.NodeID
	}
	var selected []active
	for _, c := range sorted {
		st := stateOf(c, t)
		if !isSelected(st) {
			continue
		}
		node, err := compileClipSubgraph(graph, c, t)
		if err != nil {
			return "", err
		}
		selected = append(selected, active{clip: c, state: st, node: node})
	}

	if len(selected) == 0 {
		return "", nil
	}

	acc := selected[0].node
	for i := 1; i < len(selected); i++ {
		prev, cur := selected[i-1], selected[i]

		overlap := prev.clip.Range().Overlaps(cur.clip.Range()) &&
			prev.clip.TransitionOut != nil && cur.clip.TransitionIn != nil

		var nodeID rendergraph.NodeID
		if overlap {
			trans := cur.clip.TransitionIn
			p := progress(t, cur.clip.StartTime, trans.Duration, trans.Easing)
			var err error
			nodeID, err = blendNode(graph, fmt.Sprintf("blend:%d:%s:%s", trackIdx, prev.clip.ID, cur.clip.ID), acc, cur.node, *trans, p)
			if err != nil {
				return "", err
			}
		} else {
			nodeID = rendergraph.NodeID(fmt.Sprintf("track:%d:composite:%s", trackIdx, cur.clip.ID))
			if err := graph.AddNode(rendergraph.Node{
				ID: nodeID, Kind: rendergraph.KindComposite,
				Inputs: []rendergraph.NodeID{acc, cur.node},
				Params: map[string]rendergraph.Param{"blendMode": {String: "over"}},
			}); err != nil {
				return "", err
			}
		}
		acc = nodeID
	}
	return acc, nil
}

// blendNode emits the transition-kind-specific blend node combining
// the outgoing (a) and incoming (b) subgraph outputs at progress p.
func blendNode(graph *rendergraph.Graph, id string, a, b rendergraph.NodeID, trans editmodel.Transition, p float64) (rendergraph.NodeID, error) {
	nodeID := rendergraph.NodeID(id)
	var node rendergraph.Node
	switch trans.Kind {
	case editmodel.TransitionCut:
		node = rendergraph.Node{ID: nodeID, Kind: rendergraph.KindComposite,
			Inputs: []rendergraph.NodeID{a, b},
			Params: map[string]rendergraph.Param{"blendMode": {String: "over"}}}
	case editmodel.TransitionCrossfade:
		node = rendergraph.Node{ID: nodeID, Kind: rendergraph.KindCrossfade,
			Inputs: []rendergraph.NodeID{a, b},
			Params: map[string]rendergraph.Param{"progress": {Float: p}}}
	case editmodel.TransitionDipToColor:
		r, g, bch := colorFields(trans)
		node = rendergraph.Node{ID: nodeID, Kind: rendergraph.KindDip,
			Inputs: []rendergraph.NodeID{a, b},
			Params: map[string]rendergraph.Param{
				"progress": {Float: p},
				"color":    {Vec3: [3]float64{r, g, bch}},
			}}
	case editmodel.TransitionWipe:
		node = rendergraph.Node{ID: nodeID, Kind: rendergraph.KindWipe,
			Inputs: []rendergraph.NodeID{a, b},
			Params: map[string]rendergraph.Param{
				"progress":  {Float: p},
				"direction": {String: string(trans.Direction)},
			}}
	default:
		return "", xerrors.Compile("malformed transition", map[string]any{"kind": string(trans.Kind)})
	}
	if err := graph.AddNode(node); err != nil {
		return "", err
	}
	return nodeID, nil
}

// colorFields extracts a DipToColor transition's color as three
// float64s without editmodel exposing its internal RGB type name.
func colorFields(trans editmodel.Transition) (float64, float64, float64) {
	return trans.DipColor.R, trans.DipColor.G, trans.DipColor.B
}

// compileClipSubgraph synthesizes Source -> IDT -> effect chain for a
// single clip, returning the id of its final node.
func compileClipSubgraph(graph *rendergraph.Graph, clip editmodel.Clip, t timecode.Time) (rendergraph.NodeID, error) {
	sourceTime := t.Sub(clip.StartTime).Add(clip.Offset)

	parsed, err := editmodel.Parse(clip.Asset.URI)
	if err != nil {
		return "", err
	}

	srcID := rendergraph.NodeID(fmt.Sprintf("clip:%s:src", clip.ID))
	switch parsed.Scheme {
	case "file":
		if err := graph.AddNode(rendergraph.Node{
			ID: srcID, Kind: rendergraph.KindSourceTexture,
			Params: map[string]rendergraph.Param{
				"assetId":     {String: clip.Asset.ID},
				"sourceTicks": {Int: sourceTime.Ticks()},
			},
		}); err != nil {
			return "", err
		}
	case "ligm":
		kind := parsed.LigmKindOf()
		if !editmodel.IsKnownLigmKind(kind) {
			return "", xerrors.Compile("unknown ligm kind", map[string]any{"clipId": clip.ID, "kind": string(kind)})
		}
		params := map[string]rendergraph.Param{"kind": {String: string(kind)}}
		for k, v := range parsed.Query {
			if len(v) > 0 {
				params["q_"+k] = rendergraph.Param{String: v[0]}
			}
		}
		if err := graph.AddNode(rendergraph.Node{
			ID: srcID, Kind: rendergraph.KindSourceProcedural, Params: params,
		}); err != nil {
			return "", err
		}
	default:
		return "", xerrors.Compile("unsupported asset scheme", map[string]any{"clipId": clip.ID, "scheme": parsed.Scheme})
	}

	idtID := rendergraph.NodeID(fmt.Sprintf("clip:%s:idt", clip.ID))
	if err := graph.AddNode(rendergraph.Node{
		ID: idtID, Kind: rendergraph.KindIDT,
		Inputs: []rendergraph.NodeID{srcID},
		Params: map[string]rendergraph.Param{"from": {String: "Rec709"}, "to": {String: "ACEScg"}},
	}); err != nil {
		return "", err
	}

	prev := idtID
	for i, eff := range clip.Effects {
		if err := editmodel.ValidateFeature(eff); err != nil {
			return "", err
		}
		if eff.ID == "audio.dialogCleanwater.v1" {
			continue // audio-only feature, no video node
		}
		kind, ok := featureNodeKind[eff.ID]
		if !ok {
			return "", xerrors.Compile("feature id has no render node mapping", map[string]any{"clipId": clip.ID, "featureId": eff.ID})
		}
		if eff.ID == "mv.retime" {
			if factor, ok := eff.Parameters["factor"]; ok && factor.Float < 0 {
				return "", xerrors.Compile("negative retime factor is not legal", map[string]any{"clipId": clip.ID, "factor": factor.Float})
			}
		}
		nodeID := rendergraph.NodeID(fmt.Sprintf("clip:%s:effect:%d:%s", clip.ID, i, eff.ID))
		if err := graph.AddNode(rendergraph.Node{
			ID: nodeID, Kind: kind,
			Inputs: []rendergraph.NodeID{prev},
			Params: paramsFromFeature(eff),
		}); err != nil {
			return "", err
		}
		prev = nodeID
	}
	return prev, nil
}

func paramsFromFeature(app editmodel.FeatureApplication) map[string]rendergraph.Param {
	out := make(map[string]rendergraph.Param, len(app.Parameters))
	for k, v := range app.Parameters {
		out[k] = rendergraph.Param{Float: v.Float, String: v.String, Bool: v.Bool, Vec3: v.Vec3}
	}
	return out
}
