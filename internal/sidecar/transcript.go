package sidecar

import "github.com/metavis/renderengine/internal/timecode"

// TranscriptSchemaVersion is the current transcript JSON schema version
// per spec §6.
const TranscriptSchemaVersion = 1

// TranscriptWord is one word-level transcript entry.
type TranscriptWord struct {
	Text                string `json:"text"`
	TimelineStartTicks  int64  `json:"timelineStartTicks"`
	TimelineEndTicks    int64  `json:"timelineEndTicks"`
	SourceStartTicks    int64  `json:"sourceStartTicks"`
	SourceEndTicks      int64  `json:"sourceEndTicks"`
	Speaker             string `json:"speaker,omitempty"`
}

// Transcript is the TranscriptWordsJSON sidecar document.
type Transcript struct {
	SchemaVersion int              `json:"schemaVersion"`
	TickScale     int64            `json:"tickScale"`
	Words         []TranscriptWord `json:"words"`
}

// BuildTranscriptFromCues derives one transcript word per caption cue
// when the orchestrator has no word-level timing of its own (the
// sidecar-discovery path: a discovered caption file's cues stand in for
// words). A cue's full text becomes one "word" spanning the cue's
// duration; source times equal timeline times absent a separate
// source-to-timeline mapping for the discovered clip.
func BuildTranscriptFromCues(cues []Cue) Transcript {
	words := make([]TranscriptWord, 0, len(cues))
	for _, c := range cues {
		startTicks := int64(c.Start.Seconds() * float64(timecode.Rate))
		endTicks := int64(c.End.Seconds() * float64(timecode.Rate))
		words = append(words, TranscriptWord{
			Text:               c.Text,
			TimelineStartTicks: startTicks,
			TimelineEndTicks:   endTicks,
			SourceStartTicks:   startTicks,
			SourceEndTicks:     endTicks,
			Speaker:            c.Speaker,
		})
	}
	return Transcript{SchemaVersion: TranscriptSchemaVersion, TickScale: timecode.Rate, Words: words}
}
