package qc

import "github.com/metavis/renderengine/internal/xerrors"

// Policy decides which QC dimensions are enforced (abort publish on
// failure) versus merely reported in the manifest, per spec §4.6:
// "Policies are gates: any enforced failure aborts publish with a
// structured error; non-enforced failures are reported in the
// manifest."
type Policy struct {
	EnforceContainer bool
	EnforceContent   bool
	EnforceSidecar   bool
	EnforceAudio     bool
}

// Report bundles every QC dimension's result for one deliverable. Audio
// is a pointer because a Forbidden-policy export has no audio track to
// measure.
type Report struct {
	Container ContainerReport
	Content   ContentReport
	Sidecar   SidecarReport
	Audio     *AudioReport
}

// Enforce returns a QCError for the first enforced, failing dimension,
// or nil if every enforced dimension passed. Non-enforced failures are
// left for the caller to record in the manifest.
func (p Policy) Enforce(r Report) error {
	if p.EnforceContainer && !r.Container.Pass {
		return xerrors.QC("container QC failed", map[string]any{"failures": r.Container.Failures})
	}
	if p.EnforceContent && !r.Content.Pass {
		return xerrors.QC("content QC failed", map[string]any{"failures": r.Content.Failures})
	}
	if p.EnforceSidecar && !r.Sidecar.Pass {
		return xerrors.QC("sidecar QC failed", map[string]any{"failures": r.Sidecar.Failures})
	}
	if p.EnforceAudio && r.Audio != nil && !r.Audio.Pass {
		return xerrors.QC("audio QC failed", map[string]any{"failures": r.Audio.Failures})
	}
	return nil
}
