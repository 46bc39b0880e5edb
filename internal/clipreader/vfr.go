package clipreader

import (
	"math"

	"github.com/metavis/renderengine/internal/timecode"
)

// vfrStdDevThreshold and vfrDistinctThreshold are the spec's VFR-likely
// thresholds (§4.3): distinctDeltaCount >= 3 or stdDev > 2ms.
const (
	vfrDistinctThreshold = 3
	vfrStdDevThreshold   = 0.002 // seconds
	epsilonCeiling       = 0.002 // seconds, the 2ms cap on tolerance
	deltaQuantum         = 1e-6  // seconds; deltas within this are "the same" for distinct-count purposes
)

// VFRStats summarizes the presentation-timestamp deltas sampled from a
// stream's first N packets.
type VFRStats struct {
	Mean          float64
	StdDev        float64
	DistinctCount int
	IsVFRLikely   bool
}

// AnalyzeVFR computes VFRStats from a sequence of presentation
// timestamps sampled in decode order. Fewer than two samples yields a
// zero-value, non-VFR-likely result: there isn't enough information to
// call it variable.
func AnalyzeVFR(samples []timecode.Time) VFRStats {
	if len(samples) < 2 {
		return VFRStats{}
	}
	deltas := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		deltas = append(deltas, samples[i].Sub(samples[i-1]).Seconds())
	}

	var sum float64
	for _, d := range deltas {
		sum += d
	}
	mean := sum / float64(len(deltas))

	var variance float64
	for _, d := range deltas {
		diff := d - mean
		variance += diff * diff
	}
	variance /= float64(len(deltas))
	stdDev := math.Sqrt(variance)

	distinct := countDistinct(deltas)

	return VFRStats{
		Mean:          mean,
		StdDev:        stdDev,
		DistinctCount: distinct,
		IsVFRLikely:   distinct >= vfrDistinctThreshold || stdDev > vfrStdDevThreshold,
	}
}

func countDistinct(deltas []float64) int {
	var buckets []float64
	for _, d := range deltas {
		found := false
		for _, b := range buckets {
			if math.Abs(b-d) <= deltaQuantum {
				found = true
				break
			}
		}
		if !found {
			buckets = append(buckets, d)
		}
	}
	return len(buckets)
}

// Tolerance returns the epsilon window used to map a requested
// sourceTicks to the nearest decoded frame for a VFR-likely stream:
// min(1/fps, 2ms), per §4.3 step 4.
func Tolerance(fps timecode.FPS) timecode.Time {
	inverseFPS := 1.0
	if f := fps.Float(); f > 0 {
		inverseFPS = 1.0 / f
	}
	eps := inverseFPS
	if eps > epsilonCeiling {
		eps = epsilonCeiling
	}
	return timecode.FromSeconds(eps)
}

// WithinTolerance reports whether actual lies within eps of requested.
func WithinTolerance(requested, actual, eps timecode.Time) bool {
	diff := actual.Sub(requested)
	if diff.Negative() {
		diff = diff.Neg()
	}
	return !diff.Greater(eps)
}
