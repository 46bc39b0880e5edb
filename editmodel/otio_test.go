package editmodel

import "testing"

func TestToOTIOTrackCounts(t *testing.T) {
	tl := Timeline{
		Name:     "t",
		Duration: sec(10),
		Tracks: []Track{
			{
				Name: "V1", Kind: TrackVideo,
				Clips: []Clip{
					{ID: "a", Name: "a", Asset: AssetReference{ID: "a", URI: "file:/media/a.mov"}, StartTime: sec(0), Duration: sec(5)},
					{ID: "b", Name: "b", Asset: AssetReference{ID: "b", URI: "file:/media/b.mov"}, StartTime: sec(5), Duration: sec(5)},
				},
			},
			{
				Name: "A1", Kind: TrackAudio,
				Clips: []Clip{
					{ID: "c", Name: "c", Asset: AssetReference{ID: "c", URI: "file:/media/c.wav"}, StartTime: sec(0), Duration: sec(10)},
				},
			},
		},
	}

	doc := ToOTIO(tl)
	if got := len(doc.VideoTracks()); got != 1 {
		t.Errorf("VideoTracks() len = %d, want 1", got)
	}
	if got := len(doc.AudioTracks()); got != 1 {
		t.Errorf("AudioTracks() len = %d, want 1", got)
	}
	if doc.Name() != "t" {
		t.Errorf("Name() = %q, want %q", doc.Name(), "t")
	}
}

func TestToOTIOInsertsGapForLeadingOffset(t *testing.T) {
	tl := Timeline{
		Name:     "gap",
		Duration: sec(10),
		Tracks: []Track{
			{
				Name: "V1", Kind: TrackVideo,
				Clips: []Clip{
					{ID: "a", Name: "a", Asset: AssetReference{ID: "a", URI: "file:/media/a.mov"}, StartTime: sec(2), Duration: sec(5)},
				},
			},
		},
	}
	doc := ToOTIO(tl)
	track := doc.VideoTracks()[0]
	if len(track.Children()) != 2 {
		t.Fatalf("expected gap + clip children, got %d", len(track.Children()))
	}
}
