package orchestrator

import (
	"context"
	"testing"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/audiomix"
	"github.com/metavis/renderengine/internal/clipreader"
	"github.com/metavis/renderengine/internal/compiler"
	"github.com/metavis/renderengine/internal/container"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/gpuexec"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/pkg/clock"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

// fakeExecutor ignores the graph entirely and returns a flat-gray
// frame stamped with the requested time, letting tests assert on
// ordering/geometry without exercising colormath.
type fakeExecutor struct {
	width, height int
}

func (f *fakeExecutor) Execute(ctx context.Context, req gpuexec.Request) (decode.Frame, error) {
	px := make([]float32, f.width*f.height*4)
	for i := 0; i < f.width*f.height; i++ {
		px[i*4+3] = 1
	}
	return decode.Frame{Width: f.width, Height: f.height, Pixels: px, PTS: req.Time}, nil
}
func (f *fakeExecutor) Diagnostics() gpuexec.Diagnostics { return gpuexec.Diagnostics{} }
func (f *fakeExecutor) Close() error                     { return nil }

func ligmTimeline(durationSeconds float64) editmodel.Timeline {
	return editmodel.Timeline{
		Name:     "t1",
		Duration: timecode.FromSeconds(durationSeconds),
		Tracks: []editmodel.Track{
			{
				Kind: editmodel.TrackVideo,
				Clips: []editmodel.Clip{
					{
						ID:        "c1",
						Asset:     editmodel.AssetReference{ID: "a1", URI: "ligm://video/smpte_bars"},
						StartTime: timecode.Zero,
						Duration:  timecode.FromSeconds(durationSeconds),
					},
				},
			},
		},
	}
}

func testOrchestrator(width, height int) (*Orchestrator, *fsadapter.Memory) {
	fs := fsadapter.NewMemory()
	reader := clipreader.NewReader(nil, nil, nil, nil, clipreader.MemoryPressurePolicy{FrameEntries: 8, StillBytes: 1 << 20, DecoderEntries: 4})
	o := New(fs, "ffmpeg", &fakeExecutor{width: width, height: height}, reader, audiomix.DefaultAssetSource{}, clock.NewSystem(), "/stage")
	return o, fs
}

func TestRenderVideoAppendsFramesInOrder(t *testing.T) {
	o, fs := testOrchestrator(64, 36)
	job := Job{
		Timeline: ligmTimeline(0.2),
		Profile:  compiler.QualityProfile{Name: "tiny", ResolutionHeight: 36, WidthOverride: 64, ColorDepth: 8},
		FPS:      timecode.FPS{Num: 24, Den: 1},
	}
	spec := container.Spec{Width: 64, Height: 36, FPS: job.FPS, ColorDepth: 8, VideoCodec: "libx264"}
	writer := container.NewWriter(fs, "ffmpeg", "/stage/job", spec)
	assets := newAssetIndex(job.Timeline, o.reader, 64, 36)

	samples, err := o.renderVideo(context.Background(), job, writer, assets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writer.FrameCount() == 0 {
		t.Fatal("expected at least one appended frame")
	}
	if len(samples) == 0 {
		t.Fatal("expected at least one content sample at the sampling stride")
	}
}

func TestRenderVideoPropagatesCancellation(t *testing.T) {
	o, fs := testOrchestrator(64, 36)
	job := Job{
		Timeline: ligmTimeline(2),
		Profile:  compiler.QualityProfile{Name: "tiny", ResolutionHeight: 36, WidthOverride: 64, ColorDepth: 8},
		FPS:      timecode.FPS{Num: 24, Den: 1},
	}
	spec := container.Spec{Width: 64, Height: 36, FPS: job.FPS, ColorDepth: 8, VideoCodec: "libx264"}
	writer := container.NewWriter(fs, "ffmpeg", "/stage/job2", spec)
	assets := newAssetIndex(job.Timeline, o.reader, 64, 36)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.renderVideo(ctx, job, writer, assets)
	if err == nil {
		t.Fatal("expected a cancellation error for an already-cancelled context")
	}
}
