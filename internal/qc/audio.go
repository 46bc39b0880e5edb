package qc

import (
	"fmt"
	"math"
)

// AudioMeasurement is a window's peak magnitude and RMS.
type AudioMeasurement struct {
	PeakMagnitude float64
	RMS           float64
}

// MeasureAudio computes peak magnitude and RMS over a stereo-interleaved
// float32 window.
func MeasureAudio(samples []float32) AudioMeasurement {
	if len(samples) == 0 {
		return AudioMeasurement{}
	}
	var peak float64
	var sumSq float64
	for _, v := range samples {
		av := math.Abs(float64(v))
		if av > peak {
			peak = av
		}
		sumSq += float64(v) * float64(v)
	}
	return AudioMeasurement{
		PeakMagnitude: peak,
		RMS:           math.Sqrt(sumSq / float64(len(samples))),
	}
}

// AudioPolicy gates a measured window against a silence threshold. Per
// spec §4.6, the silence check only applies ("rejects below threshold")
// when the deliverable's audio is Required.
type AudioPolicy struct {
	Required         bool
	SilenceThreshold float64
}

// AudioReport is the audio QC result.
type AudioReport struct {
	Measurement AudioMeasurement
	Pass        bool
	Failures    []string
}

// CheckAudio validates m against policy.
func CheckAudio(policy AudioPolicy, m AudioMeasurement) AudioReport {
	report := AudioReport{Measurement: m, Pass: true}
	if policy.Required && m.PeakMagnitude < policy.SilenceThreshold {
		report.Pass = false
		report.Failures = append(report.Failures, fmt.Sprintf(
			"audio peak %.5f below required silence threshold %.5f", m.PeakMagnitude, policy.SilenceThreshold))
	}
	return report
}
