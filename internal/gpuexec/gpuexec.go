// Package gpuexec walks a validated render graph and produces the
// final Rec.709 frame. A Vulkan-backed executor owns the device,
// texture pool, and shader library for the hardware path; a
// software executor implementing the identical interface backs
// GPU-less test CI and acts as the fallback when device init fails,
// mirroring the teacher's Vulkan/software backend pairing.
package gpuexec

import (
	"context"

	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
)

// AssetSource resolves a SourceTexture/SourceProcedural node's inputs
// to a decoded frame. During normal operation internal/orchestrator's
// assetIndex implements it on top of clipreader.Reader; tests supply a
// stub.
type AssetSource interface {
	ReadFrame(ctx context.Context, node *rendergraph.Node, t timecode.Time) (decode.Frame, error)
}

// Executor evaluates a validated graph for one render request and
// produces the final ODT-sink frame.
type Executor interface {
	Execute(ctx context.Context, req Request) (decode.Frame, error)
	// Diagnostics reports counters that should stay at their zero
	// value during correct steady-state operation.
	Diagnostics() Diagnostics
	Close() error
}

// Request bundles everything Execute needs: the validated graph, its
// topological order (as produced by rendergraph.Validate), the frame
// time being rendered, and the output raster size.
type Request struct {
	Graph  *rendergraph.Graph
	Order  []rendergraph.NodeID
	Time   timecode.Time
	Width  int
	Height int
	Source AssetSource
}

// Diagnostics are process-wide counters a correctly operating executor
// never increments in normal operation; QC and tests assert they stay
// zero across a render.
type Diagnostics struct {
	// UnexpectedReadbacks counts CPU readbacks of GPU-resident textures
	// outside the single expected final-frame copy. Any nonzero value
	// indicates a dispatch bug forcing host/device sync on the hot path.
	UnexpectedReadbacks int64
	// SubmissionRetries counts GPU command-buffer submissions that
	// failed once and were retried (the spec's single-retry-then-fail
	// policy); nonzero values are worth alerting on even though they
	// do not fail the render.
	SubmissionRetries int64
}

// NewExecutor returns a Vulkan-backed Executor when preferGPU is true
// and device initialization succeeds, otherwise the software fallback.
// The returned bool reports whether the GPU path was actually used.
func NewExecutor(preferGPU bool) (Executor, bool) {
	if preferGPU {
		if vb, err := newVulkanExecutor(); err == nil {
			return vb, true
		}
	}
	return newSoftwareExecutor(), false
}
