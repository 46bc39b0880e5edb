package orchestrator

import (
	"encoding/json"

	"github.com/metavis/renderengine/internal/qc"
)

// ManifestSchemaVersion is written on every new manifest. Readers
// parsing an older version must tolerate missing qcContentReport,
// qcMetadataReport, qcSidecarReport, and sidecars, per spec §6.
const ManifestSchemaVersion = 1

// DeliverableSummary identifies the published artifact within the
// manifest, independent of where it is mounted on disk.
type DeliverableSummary struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	DurationSeconds float64 `json:"durationSeconds"`
	VideoCodec      string `json:"videoCodec"`
	ColorDepth      int    `json:"colorDepth"`
}

// TimelineSummary records the inputs the deliverable was compiled
// from, enough to audit a manifest without re-opening the project.
type TimelineSummary struct {
	TimelineID  string `json:"timelineId"`
	ClipCount   int    `json:"clipCount"`
	TrackCount  int    `json:"trackCount"`
}

// GovernanceSummary records which plan authorized the export and what
// was requested, for post-hoc audit.
type GovernanceSummary struct {
	PlanName         string `json:"planName"`
	WatermarkApplied bool   `json:"watermarkApplied"`
}

// DeliverableManifest is the versioned record written alongside the
// movie, per spec §3/§6. Key ordering is stable because Go's
// encoding/json marshals struct fields in declaration order.
type DeliverableManifest struct {
	SchemaVersion     int                 `json:"schemaVersion"`
	CreatedAt         string              `json:"createdAt"`
	Deliverable       DeliverableSummary  `json:"deliverable"`
	TimelineSummary   TimelineSummary     `json:"timelineSummary"`
	Quality           string              `json:"quality"`
	FPS               string              `json:"fps"`
	Codec             string              `json:"codec"`
	AudioPolicy       string              `json:"audioPolicy"`
	Governance        GovernanceSummary   `json:"governance"`
	QCPolicy          qc.Policy           `json:"qcPolicy"`
	QCReport          qc.ContainerReport  `json:"qcReport"`
	QCContentReport   *qc.ContentReport   `json:"qcContentReport,omitempty"`
	QCAudioReport     *qc.AudioReport     `json:"qcMetadataReport,omitempty"`
	QCSidecarReport   *qc.SidecarReport   `json:"qcSidecarReport,omitempty"`
	Sidecars          []SidecarEntry      `json:"sidecars,omitempty"`
}

// SidecarEntry is one row of the manifest's sidecars array.
type SidecarEntry struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Present bool   `json:"present"`
}

// Marshal renders the manifest as stably-ordered, indented JSON.
func (m DeliverableManifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// UnmarshalManifest decodes JSON into a DeliverableManifest. Any
// schemaVersion is accepted; optional fields simply stay nil/zero when
// absent from an older document.
func UnmarshalManifest(data []byte) (DeliverableManifest, error) {
	var m DeliverableManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return DeliverableManifest{}, err
	}
	return m, nil
}
