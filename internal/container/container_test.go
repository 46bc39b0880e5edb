package container

import (
	"context"
	"testing"

	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

func sec(s float64) timecode.Time { return timecode.FromSeconds(s) }

func testSpec() Spec {
	return Spec{
		Width: 4, Height: 2, FPS: timecode.FPS{Num: 24, Den: 1},
		ColorDepth: 8, VideoCodec: "libx264", AudioCodec: "aac",
		SampleRate: 48000, Color: Rec709,
	}
}

func frame(pts timecode.Time, w, h int) decode.Frame {
	px := make([]float32, w*h*4)
	for i := range px {
		px[i] = 0.5
	}
	return decode.Frame{Width: w, Height: h, Pixels: px, PTS: pts}
}

func TestAppendVideoFrameRejectsGeometryMismatch(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	err := w.AppendVideoFrame(context.Background(), frame(sec(0), 8, 8))
	if err == nil {
		t.Fatal("expected an error for mismatched frame geometry")
	}
}

func TestAppendVideoFrameRejectsOutOfOrderPTS(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	if err := w.AppendVideoFrame(context.Background(), frame(sec(1), 4, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := w.AppendVideoFrame(context.Background(), frame(sec(0.5), 4, 2))
	if err == nil {
		t.Fatal("expected an error for a frame appended out of PTS order")
	}
}

func TestAppendVideoFrameAcceptsIncreasingPTS(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	for i := 0; i < 3; i++ {
		if err := w.AppendVideoFrame(context.Background(), frame(sec(float64(i)), 4, 2)); err != nil {
			t.Fatalf("unexpected error at frame %d: %v", i, err)
		}
	}
	if w.FrameCount() != 3 {
		t.Fatalf("expected FrameCount()==3, got %d", w.FrameCount())
	}
}

func TestAppendAudioRejectsOutOfOrderWindows(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	samples := make([]float32, 48000*2) // 1 second @ 48kHz stereo
	if err := w.AppendAudio(context.Background(), sec(1), samples); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := w.AppendAudio(context.Background(), sec(0.5), samples)
	if err == nil {
		t.Fatal("expected an error for an audio window appended out of order")
	}
}

func TestAppendAudioAcceptsContiguousWindows(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	samples := make([]float32, 48000*2)
	if err := w.AppendAudio(context.Background(), sec(0), samples); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.AppendAudio(context.Background(), sec(1), samples); err != nil {
		t.Fatalf("unexpected error appending the contiguous next window: %v", err)
	}
}

func TestAppendAudioRejectsMissingSampleRate(t *testing.T) {
	spec := testSpec()
	spec.SampleRate = 0
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", spec)
	err := w.AppendAudio(context.Background(), sec(0), []float32{0, 0})
	if err == nil {
		t.Fatal("expected an error when the spec declares no sample rate")
	}
}

func TestFinalizeRejectsEmptyVideo(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	_, err := w.Finalize(context.Background(), "out.mp4")
	if err == nil {
		t.Fatal("expected an error finalizing a writer with no appended video frames")
	}
}

func TestAppendAfterFinalizedIsRejected(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	if err := w.AppendVideoFrame(context.Background(), frame(sec(0), 4, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.finalized = true // simulate a completed Finalize without invoking ffmpeg
	if err := w.AppendVideoFrame(context.Background(), frame(sec(1), 4, 2)); err == nil {
		t.Fatal("expected an error appending a video frame after Finalize")
	}
	if err := w.AppendAudio(context.Background(), sec(0), []float32{0, 0}); err == nil {
		t.Fatal("expected an error appending audio after Finalize")
	}
}

func TestPublishRequiresFinalizeFirst(t *testing.T) {
	w := NewWriter(fsadapter.NewMemory(), "ffmpeg", "/stage", testSpec())
	if err := w.Publish("/dest"); err == nil {
		t.Fatal("expected an error publishing before Finalize")
	}
}

func TestAbortRemovesStagingDirectory(t *testing.T) {
	fs := fsadapter.NewMemory()
	w := NewWriter(fs, "ffmpeg", "/stage", testSpec())
	if err := w.AppendVideoFrame(context.Background(), frame(sec(0), 4, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.Exists(w.videoScratchPath()) {
		t.Fatal("expected the video scratch file to be gone after Abort")
	}
}

func TestQuantize8ClampsToByteRange(t *testing.T) {
	if got := quantize8(-1); got != 0 {
		t.Fatalf("expected 0 for a negative input, got %d", got)
	}
	if got := quantize8(2); got != 255 {
		t.Fatalf("expected 255 for an over-range input, got %d", got)
	}
}

func TestBuildMuxArgsTagsRec709Metadata(t *testing.T) {
	args := buildMuxArgs("ffmpeg", testSpec(), "/v.raw", "/a.raw", true, "/out.mp4")
	want := []string{"-color_primaries", "bt709", "-color_trc", "bt709", "-colorspace", "bt709"}
	if !containsSubsequence(args, want) {
		t.Fatalf("expected color metadata flags %v in %v", want, args)
	}
}

func TestBuildMuxArgsOmitsAudioInputWhenSilent(t *testing.T) {
	args := buildMuxArgs("ffmpeg", testSpec(), "/v.raw", "/a.raw", false, "/out.mp4")
	for i, a := range args {
		if a == "-i" && i+1 < len(args) && args[i+1] == "/a.raw" {
			t.Fatal("did not expect an audio input when hasAudio is false")
		}
	}
	if !containsSubsequence(args, []string{"-an"}) {
		t.Fatal("expected -an when the deliverable has no audio")
	}
}

func containsSubsequence(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, v := range needle {
			if haystack[i+j] != v {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
