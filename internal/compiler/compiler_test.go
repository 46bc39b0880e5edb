package compiler

import (
	"testing"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
)

func sec(s float64) timecode.Time { return timecode.FromSeconds(s) }

func barsClip(id string, start, dur float64) editmodel.Clip {
	return editmodel.Clip{
		ID:        id,
		Name:      id,
		Asset:     editmodel.AssetReference{ID: id, URI: "ligm://video/smpte_bars"},
		StartTime: sec(start),
		Duration:  sec(dur),
	}
}

func TestQualityProfileWidth(t *testing.T) {
	p := QualityProfile{ResolutionHeight: 1080}
	if got := p.Width(); got != 1920 {
		t.Fatalf("Width() = %d, want 1920", got)
	}
	p2 := QualityProfile{ResolutionHeight: 1080, WidthOverride: 2000}
	if got := p2.Width(); got != 2000 {
		t.Fatalf("Width() override = %d, want 2000", got)
	}
}

func TestCompileSingleClipProducesValidGraph(t *testing.T) {
	tl := editmodel.Timeline{
		Name:     "single",
		Duration: sec(5),
		Tracks: []editmodel.Track{
			{Name: "V1", Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{barsClip("a", 0, 5)}},
		},
	}
	req, err := Compile(tl, sec(2), QualityProfile{ResolutionHeight: 1080, ColorDepth: 8})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if req.Width != 1920 || req.Height != 1080 {
		t.Errorf("unexpected geometry: %dx%d", req.Width, req.Height)
	}
	sink := req.Graph.Sink()
	if sink == nil || sink.Kind != rendergraph.KindODT {
		t.Fatalf("expected ODT sink, got %+v", sink)
	}
}

func TestCompileNoActiveClipFallsBackToBlackFill(t *testing.T) {
	tl := editmodel.Timeline{
		Duration: sec(5),
		Tracks: []editmodel.Track{
			{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{barsClip("a", 0, 2)}},
		},
	}
	req, err := Compile(tl, sec(4), QualityProfile{ResolutionHeight: 720, ColorDepth: 8})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := req.Graph.Nodes["fallback:blackfill"]; !ok {
		t.Fatalf("expected fallback BlackFill node, nodes = %v", req.Graph.Nodes)
	}
}

func TestCompileIsDeterministicAcrossRuns(t *testing.T) {
	tl := editmodel.Timeline{
		Duration: sec(10),
		Tracks: []editmodel.Track{
			{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{
				barsClip("a", 0, 5),
				barsClip("b", 5, 5),
			}},
		},
	}
	profile := QualityProfile{ResolutionHeight: 1080, ColorDepth: 10}
	r1, err := Compile(tl, sec(3), profile)
	if err != nil {
		t.Fatalf("Compile #1: %v", err)
	}
	r2, err := Compile(tl, sec(3), profile)
	if err != nil {
		t.Fatalf("Compile #2: %v", err)
	}
	if len(r1.Order) != len(r2.Order) {
		t.Fatalf("order length mismatch")
	}
	for i := range r1.Order {
		if r1.Order[i] != r2.Order[i] {
			t.Fatalf("nondeterministic compile: %v vs %v", r1.Order, r2.Order)
		}
	}
}

func TestCompileCrossfadeEmitsCrossfadeNode(t *testing.T) {
	a := barsClip("a", 0, 5)
	a.TransitionOut = &editmodel.Transition{Kind: editmodel.TransitionCrossfade, Duration: sec(1), Easing: editmodel.EaseLinear}
	b := barsClip("b", 4, 5)
	b.TransitionIn = &editmodel.Transition{Kind: editmodel.TransitionCrossfade, Duration: sec(1), Easing: editmodel.EaseLinear}

	tl := editmodel.Timeline{
		Duration: sec(9),
		Tracks:   []editmodel.Track{{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{a, b}}},
	}
	req, err := Compile(tl, sec(4.5), QualityProfile{ResolutionHeight: 1080, ColorDepth: 8})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	found := false
	for _, n := range req.Graph.Nodes {
		if n.Kind == rendergraph.KindCrossfade {
			found = true
			if p := n.Params["progress"].Float; p < 0 || p > 1 {
				t.Errorf("crossfade progress out of range: %v", p)
			}
		}
	}
	if !found {
		t.Fatal("expected a Crossfade node at the overlap midpoint")
	}
}

func TestCompileRejectsNegativeRetimeFactor(t *testing.T) {
	c := barsClip("a", 0, 5)
	c.Effects = []editmodel.FeatureApplication{
		{ID: "mv.retime", Parameters: map[string]editmodel.NodeValue{"factor": {Float: -0.5}}},
	}
	tl := editmodel.Timeline{
		Duration: sec(5),
		Tracks:   []editmodel.Track{{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{c}}},
	}
	if _, err := Compile(tl, sec(1), QualityProfile{ResolutionHeight: 1080, ColorDepth: 8}); err == nil {
		t.Fatal("expected negative retime factor to fail compilation")
	}
}

func TestCompileRejectsUnknownFeatureID(t *testing.T) {
	c := barsClip("a", 0, 5)
	c.Effects = []editmodel.FeatureApplication{{ID: "not.a.real.feature"}}
	tl := editmodel.Timeline{
		Duration: sec(5),
		Tracks:   []editmodel.Track{{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{c}}},
	}
	if _, err := Compile(tl, sec(1), QualityProfile{ResolutionHeight: 1080, ColorDepth: 8}); err == nil {
		t.Fatal("expected unknown feature id to fail compilation")
	}
}

func TestCompileRejectsUnknownLigmKind(t *testing.T) {
	c := editmodel.Clip{
		ID: "a", Asset: editmodel.AssetReference{ID: "a", URI: "ligm://video/not_a_kind"},
		StartTime: sec(0), Duration: sec(5),
	}
	tl := editmodel.Timeline{
		Duration: sec(5),
		Tracks:   []editmodel.Track{{Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{c}}},
	}
	if _, err := Compile(tl, sec(1), QualityProfile{ResolutionHeight: 1080, ColorDepth: 8}); err == nil {
		t.Fatal("expected unknown ligm kind to fail compilation")
	}
}

func TestStateOfTransitionsThroughLifecycle(t *testing.T) {
	c := barsClip("a", 10, 5)
	c.TransitionIn = &editmodel.Transition{Kind: editmodel.TransitionCrossfade, Duration: sec(1)}
	c.TransitionOut = &editmodel.Transition{Kind: editmodel.TransitionCrossfade, Duration: sec(1)}

	cases := []struct {
		t    timecode.Time
		want ClipState
	}{
		{sec(5), StateBefore},
		{sec(10), StateFadingIn},
		{sec(10.5), StateFadingIn},
		{sec(12), StateActive},
		{sec(14), StateFadingOut},
		{sec(15), StateAfter},
		{sec(20), StateAfter},
	}
	for _, c2 := range cases {
		if got := stateOf(c, c2.t); got != c2.want {
			t.Errorf("stateOf(%v) = %v, want %v", c2.t, got, c2.want)
		}
	}
}
