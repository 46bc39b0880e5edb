// Package orchestrator implements the Deliverable Orchestrator: it
// authorizes a request against a governance Plan, drives the
// compile/execute/mix/mux pipeline to a staging directory, runs QC, and
// either publishes atomically or discards staging. Governance checks
// and the Plan shape are grounded on the teacher's middleware/auth.go
// JWT-claim pattern (a plan id resolved per caller) generalized from
// "is this request allowed" to resolution/codec/watermark/duration
// gates.
package orchestrator

import (
	"github.com/metavis/renderengine/internal/container"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// WatermarkPolicy governs whether a plan's deliverables may, must, or
// must never carry the watermark render node.
type WatermarkPolicy string

const (
	WatermarkForbidden WatermarkPolicy = "forbidden"
	WatermarkOptional  WatermarkPolicy = "optional"
	WatermarkRequired  WatermarkPolicy = "required"
)

// Plan is a governance policy bound to an authenticated caller, looked
// up by the plan id carried in the caller's JWT claim.
type Plan struct {
	Name            string
	MaxResolutionH  int
	MaxDuration     timecode.Time
	WatermarkPolicy WatermarkPolicy
	AllowedCodecs   []string
}

// DeliverableRequest is what a caller submits for governance review,
// before any compile step runs.
type DeliverableRequest struct {
	ResolutionHeight int
	Duration         timecode.Time
	VideoCodec       string
	WatermarkApplied bool
}

// Authorize runs resolution, codec, watermark, and duration checks
// before any compile step, per spec §9's Governance & Plan Enforcement
// addition. A denial returns a structured GovernanceError carrying
// requested vs. allowed values.
func Authorize(plan Plan, req DeliverableRequest) error {
	if plan.MaxResolutionH > 0 && req.ResolutionHeight > plan.MaxResolutionH {
		return xerrors.Governance("requested resolution exceeds plan maximum", map[string]any{
			"requested": req.ResolutionHeight, "maxAllowed": plan.MaxResolutionH,
		})
	}
	if plan.MaxDuration.Ticks() > 0 && req.Duration.Greater(plan.MaxDuration) {
		return xerrors.Governance("requested duration exceeds plan maximum", map[string]any{
			"requestedSeconds": req.Duration.Seconds(), "maxAllowedSeconds": plan.MaxDuration.Seconds(),
		})
	}
	if len(plan.AllowedCodecs) > 0 && !containsCodec(plan.AllowedCodecs, req.VideoCodec) {
		return xerrors.Governance("requested codec is not permitted by plan", map[string]any{
			"requested": req.VideoCodec, "allowed": plan.AllowedCodecs,
		})
	}
	switch plan.WatermarkPolicy {
	case WatermarkRequired:
		if !req.WatermarkApplied {
			return xerrors.Governance("plan requires a watermark but the request has none", nil)
		}
	case WatermarkForbidden:
		if req.WatermarkApplied {
			return xerrors.Governance("plan forbids a watermark but the request applies one", nil)
		}
	}
	return nil
}

func containsCodec(allowed []string, codec string) bool {
	for _, c := range allowed {
		if c == codec {
			return true
		}
	}
	return false
}

// DefaultColorTag is the color tag every deliverable is published with
// under this plan's governance (Rec.709, per spec's HDR exclusion).
func DefaultColorTag() container.ColorTag { return container.Rec709 }
