package clipreader

import (
	"testing"

	"github.com/metavis/renderengine/internal/timecode"
)

func ticks(n int64) timecode.Time { return timecode.FromTicks(n) }

func TestAnalyzeVFRConstantCadenceIsNotVFRLikely(t *testing.T) {
	// 24fps cadence: each tick delta is exactly timecode.Rate/24.
	step := int64(timecode.Rate / 24)
	samples := []timecode.Time{ticks(0), ticks(step), ticks(2 * step), ticks(3 * step), ticks(4 * step)}
	stats := AnalyzeVFR(samples)
	if stats.IsVFRLikely {
		t.Fatalf("constant cadence flagged VFR-likely: %+v", stats)
	}
	if stats.DistinctCount != 1 {
		t.Fatalf("expected 1 distinct delta, got %d", stats.DistinctCount)
	}
}

func TestAnalyzeVFRManyDistinctDeltasIsVFRLikely(t *testing.T) {
	samples := []timecode.Time{
		timecode.FromSeconds(0),
		timecode.FromSeconds(0.033),
		timecode.FromSeconds(0.050),
		timecode.FromSeconds(0.080),
		timecode.FromSeconds(0.100),
	}
	stats := AnalyzeVFR(samples)
	if !stats.IsVFRLikely {
		t.Fatalf("expected VFR-likely for jittery deltas: %+v", stats)
	}
	if stats.DistinctCount < vfrDistinctThreshold {
		t.Fatalf("expected distinct count >= %d, got %d", vfrDistinctThreshold, stats.DistinctCount)
	}
}

func TestAnalyzeVFRHighStdDevAloneTriggersLikely(t *testing.T) {
	samples := []timecode.Time{
		timecode.FromSeconds(0),
		timecode.FromSeconds(0.010),
		timecode.FromSeconds(0.060), // big outlier delta
	}
	stats := AnalyzeVFR(samples)
	if !stats.IsVFRLikely {
		t.Fatalf("expected stdDev-triggered VFR-likely: %+v", stats)
	}
}

func TestAnalyzeVFRTooFewSamples(t *testing.T) {
	stats := AnalyzeVFR([]timecode.Time{timecode.Zero})
	if stats.IsVFRLikely || stats.DistinctCount != 0 {
		t.Fatalf("expected zero-value stats for <2 samples, got %+v", stats)
	}
}

func TestToleranceCapsAtEpsilonCeiling(t *testing.T) {
	low := Tolerance(timecode.FPS{Num: 1, Den: 1}) // 1fps -> 1s, capped to 2ms
	if low.Seconds() != epsilonCeiling {
		t.Fatalf("expected tolerance capped at %v, got %v", epsilonCeiling, low.Seconds())
	}
}

func TestToleranceUsesInverseFPSWhenTighter(t *testing.T) {
	tight := Tolerance(timecode.FPS{Num: 1000, Den: 1}) // 1000fps -> 1ms, tighter than the 2ms ceiling
	want := 1.0 / 1000
	if tight.Seconds() != want {
		t.Fatalf("expected tolerance = 1/fps = %v, got %v", want, tight.Seconds())
	}
}

func TestWithinToleranceSymmetric(t *testing.T) {
	eps := timecode.FromSeconds(0.002)
	requested := timecode.FromSeconds(1.000)
	if !WithinTolerance(requested, timecode.FromSeconds(1.0015), eps) {
		t.Fatal("expected actual ahead of requested within eps to pass")
	}
	if !WithinTolerance(requested, timecode.FromSeconds(0.9985), eps) {
		t.Fatal("expected actual behind requested within eps to pass")
	}
	if WithinTolerance(requested, timecode.FromSeconds(1.010), eps) {
		t.Fatal("expected actual far outside eps to fail")
	}
}
