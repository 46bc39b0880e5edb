package qc

import (
	"fmt"
	"math"

	"github.com/metavis/renderengine/internal/timecode"
)

// Rec.709 luma weights, shared with the color-math OETF/luma
// computations elsewhere in this module.
const (
	lumaWeightR = 0.2126
	lumaWeightG = 0.7152
	lumaWeightB = 0.0722
)

const (
	lowLumaThreshold  = 0.05
	highLumaThreshold = 0.95
	histogramBins     = 256
)

// ContentSample is one sample time's color statistics over a frame's
// linear-index RGBA pixels.
type ContentSample struct {
	Time              timecode.Time
	MeanR, MeanG, MeanB, MeanLuma float64
	ChannelDeltaMax   float64
	LowLumaFraction   float64
	HighLumaFraction  float64
	HistogramPeakBin  int
}

// MeasureFrame computes mean RGB, mean luma, per-channel deltas,
// low/high-luma fractions, and a 256-bin luma histogram peak for one
// frame's pixels (interleaved RGBA floats in [0,1]).
func MeasureFrame(t timecode.Time, pixels []float32) ContentSample {
	n := len(pixels) / 4
	if n == 0 {
		return ContentSample{Time: t}
	}

	var sumR, sumG, sumB, sumLuma float64
	var low, high int
	var hist [histogramBins]int

	for i := 0; i < n; i++ {
		r := float64(pixels[i*4+0])
		g := float64(pixels[i*4+1])
		b := float64(pixels[i*4+2])
		luma := lumaWeightR*r + lumaWeightG*g + lumaWeightB*b

		sumR += r
		sumG += g
		sumB += b
		sumLuma += luma

		if luma < lowLumaThreshold {
			low++
		}
		if luma > highLumaThreshold {
			high++
		}
		hist[clampBin(luma)]++
	}

	meanR := sumR / float64(n)
	meanG := sumG / float64(n)
	meanB := sumB / float64(n)
	meanLuma := sumLuma / float64(n)

	deltaRG := math.Abs(meanR - meanG)
	deltaGB := math.Abs(meanG - meanB)
	deltaRB := math.Abs(meanR - meanB)
	maxDelta := math.Max(deltaRG, math.Max(deltaGB, deltaRB))

	peakBin, peakCount := 0, 0
	for i, c := range hist {
		if c > peakCount {
			peakCount = c
			peakBin = i
		}
	}

	return ContentSample{
		Time:             t,
		MeanR:            meanR,
		MeanG:            meanG,
		MeanB:            meanB,
		MeanLuma:         meanLuma,
		ChannelDeltaMax:  maxDelta,
		LowLumaFraction:  float64(low) / float64(n),
		HighLumaFraction: float64(high) / float64(n),
		HistogramPeakBin: peakBin,
	}
}

func clampBin(luma float64) int {
	bin := int(luma*float64(histogramBins-1) + 0.5)
	if bin < 0 {
		return 0
	}
	if bin > histogramBins-1 {
		return histogramBins - 1
	}
	return bin
}

// NearBlackThreshold bounds the mean luma and low-luma fraction a
// "near-black" sample must satisfy, per spec §4.6.
type NearBlackThreshold struct {
	MaxMeanLuma        float64
	MinLowLumaFraction float64
}

// IsNearBlack reports whether s qualifies as near-black under t.
func IsNearBlack(t NearBlackThreshold, s ContentSample) bool {
	return s.MeanLuma <= t.MaxMeanLuma && s.LowLumaFraction >= t.MinLowLumaFraction
}

// ColorStatsPolicy bounds a labeled sample's color statistics. A zero
// Max* field means "no bound" for that statistic.
type ColorStatsPolicy struct {
	Label               string
	MinMeanLuma         float64
	MaxMeanLuma         float64
	MaxChannelDelta     float64
	MaxLowLumaFraction  float64
	MaxHighLumaFraction float64
}

// CheckColorStats validates s against policy's bounds.
func CheckColorStats(policy ColorStatsPolicy, s ContentSample) (bool, []string) {
	var failures []string
	if s.MeanLuma < policy.MinMeanLuma || (policy.MaxMeanLuma > 0 && s.MeanLuma > policy.MaxMeanLuma) {
		failures = append(failures, fmt.Sprintf(
			"%s: mean luma %.4f outside [%.4f,%.4f]", policy.Label, s.MeanLuma, policy.MinMeanLuma, policy.MaxMeanLuma))
	}
	if policy.MaxChannelDelta > 0 && s.ChannelDeltaMax > policy.MaxChannelDelta {
		failures = append(failures, fmt.Sprintf(
			"%s: channel delta %.4f exceeds max %.4f", policy.Label, s.ChannelDeltaMax, policy.MaxChannelDelta))
	}
	if policy.MaxLowLumaFraction > 0 && s.LowLumaFraction > policy.MaxLowLumaFraction {
		failures = append(failures, fmt.Sprintf(
			"%s: low-luma fraction %.4f exceeds max %.4f", policy.Label, s.LowLumaFraction, policy.MaxLowLumaFraction))
	}
	if policy.MaxHighLumaFraction > 0 && s.HighLumaFraction > policy.MaxHighLumaFraction {
		failures = append(failures, fmt.Sprintf(
			"%s: high-luma fraction %.4f exceeds max %.4f", policy.Label, s.HighLumaFraction, policy.MaxHighLumaFraction))
	}
	return len(failures) == 0, failures
}

// LumaSignature downsamples pixels into a gridSize x gridSize grid of
// mean luma values, used to compare frames for temporal variety without
// a full per-pixel diff.
func LumaSignature(pixels []float32, width, height, gridSize int) []float64 {
	sig := make([]float64, gridSize*gridSize)
	counts := make([]int, gridSize*gridSize)
	for y := 0; y < height; y++ {
		cellY := y * gridSize / height
		for x := 0; x < width; x++ {
			cellX := x * gridSize / width
			idx := (y*width + x) * 4
			luma := lumaWeightR*float64(pixels[idx]) + lumaWeightG*float64(pixels[idx+1]) + lumaWeightB*float64(pixels[idx+2])
			cell := cellY*gridSize + cellX
			sig[cell] += luma
			counts[cell]++
		}
	}
	for i := range sig {
		if counts[i] > 0 {
			sig[i] /= float64(counts[i])
		}
	}
	return sig
}

// TemporalVarietyMAD returns the mean absolute difference between
// consecutive luma signatures in the sampled sequence, following the
// same sum-then-divide-by-comparisons shape as the teacher's
// calculateCohesionScore.
func TemporalVarietyMAD(signatures [][]float64) float64 {
	if len(signatures) < 2 {
		return 0
	}
	var total float64
	var comparisons int
	for i := 1; i < len(signatures); i++ {
		var sum float64
		for j := range signatures[i] {
			sum += math.Abs(signatures[i][j] - signatures[i-1][j])
		}
		total += sum / float64(len(signatures[i]))
		comparisons++
	}
	if comparisons == 0 {
		return 0
	}
	return total / float64(comparisons)
}

// ContentReport is the content QC result across every sampled time.
type ContentReport struct {
	Samples             []ContentSample
	TemporalVarietyMAD  float64
	Pass                bool
	Failures            []string
}

// BuildContentReport validates each sample against its labeled policy
// (by index; a sample with no corresponding policy is unchecked) and
// the overall temporal-variety floor.
func BuildContentReport(samples []ContentSample, signatures [][]float64, policies []ColorStatsPolicy, minVarietyMAD float64) ContentReport {
	report := ContentReport{Samples: samples, Pass: true}
	for i, s := range samples {
		if i >= len(policies) {
			continue
		}
		ok, failures := CheckColorStats(policies[i], s)
		if !ok {
			report.Pass = false
			report.Failures = append(report.Failures, failures...)
		}
	}
	report.TemporalVarietyMAD = TemporalVarietyMAD(signatures)
	if minVarietyMAD > 0 && report.TemporalVarietyMAD < minVarietyMAD {
		report.Pass = false
		report.Failures = append(report.Failures, fmt.Sprintf(
			"temporal variety MAD %.5f below threshold %.5f", report.TemporalVarietyMAD, minVarietyMAD))
	}
	return report
}
