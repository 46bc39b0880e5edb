package clipreader

import (
	"testing"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/timecode"
)

func TestGenerateProceduralVideoFrameSMPTEBarsFillsFrame(t *testing.T) {
	f, err := GenerateProceduralVideoFrame(editmodel.LigmSMPTEBars, 7, 2, nil, timecode.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Pixels) != 7*2*4 {
		t.Fatalf("expected %d floats, got %d", 7*2*4, len(f.Pixels))
	}
	// first bar (white, 75%) should be brighter than the last (blue) in R.
	firstR := f.Pixels[0]
	lastBarX := 6
	lastR := f.Pixels[(lastBarX)*4]
	if !(firstR > lastR) {
		t.Fatalf("expected first bar R > last bar R, got %v vs %v", firstR, lastR)
	}
}

func TestGenerateProceduralVideoFrameRejectsUnknownKind(t *testing.T) {
	_, err := GenerateProceduralVideoFrame(editmodel.LigmKind("video/nonexistent"), 4, 4, nil, timecode.Zero)
	if err == nil {
		t.Fatal("expected error for unknown ligm video kind")
	}
}

func TestGenerateProceduralVideoFrameFrameCounterVariesByTick(t *testing.T) {
	f1, _ := GenerateProceduralVideoFrame(editmodel.LigmFrameCounter, 2, 2, nil, timecode.FromTicks(1))
	f2, _ := GenerateProceduralVideoFrame(editmodel.LigmFrameCounter, 2, 2, nil, timecode.FromTicks(2))
	if f1.Pixels[0] == f2.Pixels[0] {
		t.Fatal("expected frame counter luma to differ across distinct ticks")
	}
}

func TestGenerateProceduralAudioSineIsDeterministic(t *testing.T) {
	params := map[string]string{"freq": "440"}
	a, err := GenerateProceduralAudio(editmodel.LigmAudioSine, params, 0, 0.01, 48000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GenerateProceduralAudio(editmodel.LigmAudioSine, params, 0, 0.01, 48000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("length mismatch %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected bit-identical sine output at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenerateProceduralAudioWhiteNoiseDeterministicAcrossRuns(t *testing.T) {
	params := map[string]string{"seedTag": "clipA"}
	a, err := GenerateProceduralAudio(editmodel.LigmAudioWhite, params, 2.5, 0.02, 48000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := GenerateProceduralAudio(editmodel.LigmAudioWhite, params, 2.5, 0.02, 48000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("white noise generation must be bit-reproducible: sample %d differs (%v vs %v)", i, a[i], b[i])
		}
	}
}

func TestGenerateProceduralAudioDifferentParamsDifferentSeed(t *testing.T) {
	a, _ := GenerateProceduralAudio(editmodel.LigmAudioWhite, map[string]string{"seedTag": "clipA"}, 0, 0.02, 48000)
	b, _ := GenerateProceduralAudio(editmodel.LigmAudioWhite, map[string]string{"seedTag": "clipB"}, 0, 0.02, 48000)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected distinct seedTag params to produce distinct noise sequences")
	}
}

func TestGenerateProceduralAudioMarkerPlacesSingleSampleAtOffset(t *testing.T) {
	params := map[string]string{"at": "1.0"}
	out, err := GenerateProceduralAudio(editmodel.LigmAudioMarker, params, 0.5, 1.0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantIdx := int((1.0 - 0.5) * 1000)
	for i := 0; i < len(out)/2; i++ {
		if i == wantIdx {
			if out[i*2] != 1 || out[i*2+1] != 1 {
				t.Fatalf("expected unit-amplitude marker sample at index %d, got %v", i, out[i*2])
			}
		} else if out[i*2] != 0 || out[i*2+1] != 0 {
			t.Fatalf("expected silence outside marker index, found nonzero at %d", i)
		}
	}
}

func TestGenerateProceduralAudioRejectsUnknownKind(t *testing.T) {
	_, err := GenerateProceduralAudio(editmodel.LigmKind("audio/nonexistent"), nil, 0, 1, 48000)
	if err == nil {
		t.Fatal("expected error for unknown ligm audio kind")
	}
}

func TestDeterministicRNGProducesValuesInUnitRange(t *testing.T) {
	rng := newDeterministicRNG(hashSeed(editmodel.LigmAudioWhite, map[string]string{"x": "1"}, 0))
	for i := 0; i < 1000; i++ {
		v := rng.next()
		if v < 0 || v >= 1 {
			t.Fatalf("expected rng output in [0,1), got %v", v)
		}
	}
}

func TestHashSeedIsOrderIndependentAcrossMapIteration(t *testing.T) {
	p1 := map[string]string{"a": "1", "b": "2", "c": "3"}
	p2 := map[string]string{"c": "3", "a": "1", "b": "2"}
	if hashSeed(editmodel.LigmAudioWhite, p1, 0) != hashSeed(editmodel.LigmAudioWhite, p2, 0) {
		t.Fatal("expected hashSeed to be independent of map construction order")
	}
}
