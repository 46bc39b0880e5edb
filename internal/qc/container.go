// Package qc implements the Quality Control validators: container,
// content, sidecar, and audio checks, plus the enforced-vs-reported
// policy gate described in spec §4.6. The averaging/threshold shape of
// the scoring functions is grounded on the teacher's
// SmartCompositor.calculateQualityScore and calculateCohesionScore
// (sum-then-divide-by-count fitness), repurposed from clip selection
// into deterministic pass/fail measurement with no randomness.
package qc

import (
	"fmt"

	"github.com/metavis/renderengine/internal/timecode"
)

// ContainerMinSampleRatio is the minimum fraction of the expected frame
// count a deliverable must carry, per spec §4.6.
const ContainerMinSampleRatio = 0.8

// ContainerSpec describes the expected geometry and duration of a
// deliverable.
type ContainerSpec struct {
	ExpectedFPS              timecode.FPS
	ExpectedWidth            int
	ExpectedHeight           int
	ExpectedDurationSeconds  float64
	DurationToleranceSeconds float64
}

// ContainerMeasurement is what the Container Writer actually produced.
type ContainerMeasurement struct {
	Width           int
	Height          int
	FrameCount      int64
	DurationSeconds float64
}

// ContainerReport is the container QC result.
type ContainerReport struct {
	Measurement ContainerMeasurement
	Pass        bool
	Failures    []string
}

// CheckContainer validates nominal frame rate implied duration, track
// resolution, and minimum sample count against spec.
func CheckContainer(spec ContainerSpec, m ContainerMeasurement) ContainerReport {
	report := ContainerReport{Measurement: m, Pass: true}

	if m.Width != spec.ExpectedWidth || m.Height != spec.ExpectedHeight {
		report.Pass = false
		report.Failures = append(report.Failures, fmt.Sprintf(
			"resolution %dx%d does not match expected %dx%d", m.Width, m.Height, spec.ExpectedWidth, spec.ExpectedHeight))
	}

	durationDelta := m.DurationSeconds - spec.ExpectedDurationSeconds
	if durationDelta < 0 {
		durationDelta = -durationDelta
	}
	if durationDelta > spec.DurationToleranceSeconds {
		report.Pass = false
		report.Failures = append(report.Failures, fmt.Sprintf(
			"duration %.3fs outside tolerance of expected %.3fs +/- %.3fs",
			m.DurationSeconds, spec.ExpectedDurationSeconds, spec.DurationToleranceSeconds))
	}

	expectedFrames := int64(spec.ExpectedDurationSeconds * spec.ExpectedFPS.Float())
	minFrames := int64(float64(expectedFrames) * ContainerMinSampleRatio)
	if m.FrameCount < minFrames {
		report.Pass = false
		report.Failures = append(report.Failures, fmt.Sprintf(
			"frame count %d below minimum %d (%.0f%% of expected %d)",
			m.FrameCount, minFrames, ContainerMinSampleRatio*100, expectedFrames))
	}

	return report
}
