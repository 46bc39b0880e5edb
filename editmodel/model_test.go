package editmodel

import (
	"testing"

	"github.com/metavis/renderengine/internal/timecode"
)

func sec(s float64) timecode.Time { return timecode.FromSeconds(s) }

func TestEasingApply(t *testing.T) {
	cases := []struct {
		e    Easing
		p    float64
		want float64
	}{
		{EaseLinear, 0.5, 0.5},
		{EaseIn, 0.5, 0.25},
		{EaseOut, 0.5, 0.75},
		{EaseInOut, 0.25, 0.125},
		{EaseInOut, 0.75, 0.875},
		{Easing("bogus"), 0.5, 0.5}, // unrecognized falls back to linear
		{EaseLinear, -1, 0},
		{EaseLinear, 2, 1},
	}
	for _, c := range cases {
		got := c.e.Apply(c.p)
		if !approxEq(got, c.want, 1e-9) {
			t.Errorf("%s.Apply(%v) = %v, want %v", c.e, c.p, got, c.want)
		}
	}
}

func approxEq(a, b, eps float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= eps
}

func TestClipEndTimeAndWindows(t *testing.T) {
	c := Clip{
		ID:        "c1",
		StartTime: sec(10),
		Duration:  sec(5),
		TransitionIn: &Transition{
			Kind: TransitionCrossfade, Duration: sec(1),
		},
		TransitionOut: &Transition{
			Kind: TransitionCrossfade, Duration: sec(2),
		},
	}
	if !c.EndTime().Equal(sec(15)) {
		t.Fatalf("EndTime = %v, want 15s", c.EndTime())
	}
	in := c.FadeInWindow()
	if !in.Start.Equal(sec(10)) || !in.Duration.Equal(sec(1)) {
		t.Errorf("FadeInWindow = %+v", in)
	}
	out := c.FadeOutWindow()
	if !out.Start.Equal(sec(13)) || !out.Duration.Equal(sec(2)) {
		t.Errorf("FadeOutWindow = %+v", out)
	}

	noTransition := Clip{StartTime: sec(0), Duration: sec(1)}
	if z := noTransition.FadeInWindow(); !z.Duration.IsZero() {
		t.Errorf("expected zero FadeInWindow without TransitionIn, got %+v", z)
	}
}

func TestTrackSortedIsStableByStartThenID(t *testing.T) {
	track := Track{
		Kind: TrackVideo,
		Clips: []Clip{
			{ID: "b", StartTime: sec(5), Duration: sec(1)},
			{ID: "a", StartTime: sec(5), Duration: sec(1)},
			{ID: "z", StartTime: sec(0), Duration: sec(1)},
		},
	}
	got := track.Sorted()
	want := []string{"z", "a", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("Sorted()[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestTrackValidateDetectsUnexplainedOverlap(t *testing.T) {
	track := Track{
		Kind: TrackVideo,
		Clips: []Clip{
			{ID: "a", StartTime: sec(0), Duration: sec(5)},
			{ID: "b", StartTime: sec(3), Duration: sec(5)},
		},
	}
	errs := track.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 unexplained overlap error, got %d: %v", len(errs), errs)
	}
}

func TestTrackValidateAllowsMatchingTransitionOverlap(t *testing.T) {
	track := Track{
		Kind: TrackVideo,
		Clips: []Clip{
			{ID: "a", StartTime: sec(0), Duration: sec(5), TransitionOut: &Transition{Kind: TransitionCrossfade, Duration: sec(2)}},
			{ID: "b", StartTime: sec(3), Duration: sec(5), TransitionIn: &Transition{Kind: TransitionCrossfade, Duration: sec(2)}},
		},
	}
	if errs := track.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors for matching transition overlap, got %v", errs)
	}
}

func TestTrackValidateCatchesDurationMismatch(t *testing.T) {
	track := Track{
		Kind: TrackVideo,
		Clips: []Clip{
			{ID: "a", StartTime: sec(0), Duration: sec(5), TransitionOut: &Transition{Kind: TransitionCrossfade, Duration: sec(2)}},
			{ID: "b", StartTime: sec(3), Duration: sec(5), TransitionIn: &Transition{Kind: TransitionCrossfade, Duration: sec(1)}},
		},
	}
	if errs := track.Validate(); len(errs) != 1 {
		t.Fatalf("expected 1 duration-mismatch error, got %d: %v", len(errs), errs)
	}
}

func TestTimelineValidateNegativeStartAndShortDuration(t *testing.T) {
	tl := Timeline{
		Tracks: []Track{
			{Kind: TrackVideo, Clips: []Clip{
				{ID: "a", StartTime: timecode.Zero.Sub(sec(1)), Duration: sec(3)},
			}},
		},
		Duration: sec(1),
	}
	errs := tl.Validate()
	if len(errs) < 2 {
		t.Fatalf("expected negative-start and short-duration errors, got %v", errs)
	}
}

func TestTimelineVideoAndAudioTracks(t *testing.T) {
	tl := Timeline{
		Tracks: []Track{
			{Name: "v1", Kind: TrackVideo},
			{Name: "a1", Kind: TrackAudio},
			{Name: "v2", Kind: TrackVideo},
		},
	}
	if len(tl.VideoTracks()) != 2 {
		t.Errorf("expected 2 video tracks, got %d", len(tl.VideoTracks()))
	}
	if len(tl.AudioTracks()) != 1 {
		t.Errorf("expected 1 audio track, got %d", len(tl.AudioTracks()))
	}
}

func TestAssetReferenceScheme(t *testing.T) {
	a := AssetReference{ID: "x", URI: "file:/media/clip.mov"}
	scheme, err := a.Scheme()
	if err != nil || scheme != "file" {
		t.Fatalf("Scheme() = %q, %v", scheme, err)
	}
}

func TestValidateFeatureKnownAndUnknown(t *testing.T) {
	if err := ValidateFeature(FeatureApplication{ID: "mv.colorGrade"}); err != nil {
		t.Errorf("expected known feature to validate, got %v", err)
	}
	if err := ValidateFeature(FeatureApplication{ID: "not.a.real.feature"}); err == nil {
		t.Errorf("expected unknown feature id to error")
	}
}

func TestIsKnownLigmKind(t *testing.T) {
	if !IsKnownLigmKind(LigmSMPTEBars) {
		t.Errorf("expected %s to be known", LigmSMPTEBars)
	}
	if IsKnownLigmKind(LigmKind("video/not_a_kind")) {
		t.Errorf("expected unknown kind to be unrecognized")
	}
}

func TestParseFileAndLigmURIs(t *testing.T) {
	p, err := Parse("file:/media/clip_01.mov")
	if err != nil {
		t.Fatalf("Parse file URI: %v", err)
	}
	if p.Scheme != "file" || p.Path != "media/clip_01.mov" {
		t.Errorf("unexpected parse result: %+v", p)
	}

	p2, err := Parse("ligm://video/smpte_bars")
	if err != nil {
		t.Fatalf("Parse ligm URI: %v", err)
	}
	if p2.Scheme != "ligm" || p2.LigmKindOf() != LigmSMPTEBars {
		t.Errorf("unexpected ligm parse result: %+v", p2)
	}
}

func TestParseRejectsMissingScheme(t *testing.T) {
	if _, err := Parse("no-scheme-here"); err == nil {
		t.Errorf("expected error for URI with no scheme")
	}
}

func TestParseRejectsMalformedURI(t *testing.T) {
	if _, err := Parse("://::bad"); err == nil {
		t.Errorf("expected error for malformed URI")
	}
}
