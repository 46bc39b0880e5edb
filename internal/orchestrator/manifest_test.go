package orchestrator

import (
	"testing"

	"github.com/metavis/renderengine/internal/qc"
)

func TestManifestRoundTripPreservesFields(t *testing.T) {
	m := DeliverableManifest{
		SchemaVersion: ManifestSchemaVersion,
		CreatedAt:     "2026-07-30T00:00:00Z",
		Deliverable:   DeliverableSummary{Width: 3840, Height: 2160, DurationSeconds: 13, VideoCodec: "hevc", ColorDepth: 8},
		Quality:       "4k",
		FPS:           "24/1",
		Codec:         "hevc",
		AudioPolicy:   "auto",
		QCReport:      qc.ContainerReport{Pass: true},
	}
	data, err := m.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	got, err := UnmarshalManifest(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got.Deliverable.VideoCodec != "hevc" || got.Quality != "4k" || got.FPS != "24/1" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if !got.QCReport.Pass {
		t.Fatal("expected QCReport.Pass to round-trip true")
	}
}

func TestUnmarshalManifestToleratesMissingOptionalFields(t *testing.T) {
	legacy := []byte(`{"schemaVersion":1,"createdAt":"2026-01-01T00:00:00Z","deliverable":{"width":1920,"height":1080,"durationSeconds":5,"videoCodec":"h264","colorDepth":8},"quality":"hd","fps":"30/1","codec":"h264","audioPolicy":"forbidden","qcReport":{"pass":true}}`)
	got, err := UnmarshalManifest(legacy)
	if err != nil {
		t.Fatalf("expected legacy manifest missing qcContentReport/sidecars to decode, got %v", err)
	}
	if got.QCContentReport != nil {
		t.Fatal("expected QCContentReport to be nil when absent from the document")
	}
	if len(got.Sidecars) != 0 {
		t.Fatal("expected no sidecars when absent from the document")
	}
	if !got.QCReport.Pass {
		t.Fatal("expected qcReport.pass to decode true")
	}
}
