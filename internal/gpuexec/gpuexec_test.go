package gpuexec

import (
	"context"
	"testing"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/clipreader"
	"github.com/metavis/renderengine/internal/compiler"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
)

func sec(s float64) timecode.Time { return timecode.FromSeconds(s) }

func barsClip(id string, start, dur float64) editmodel.Clip {
	return editmodel.Clip{
		ID:        id,
		Name:      id,
		Asset:     editmodel.AssetReference{ID: id, URI: "ligm://video/smpte_bars"},
		StartTime: sec(start),
		Duration:  sec(dur),
	}
}

// proceduralSource resolves SourceProcedural nodes via
// clipreader.GenerateProceduralVideoFrame and fails any SourceTexture
// node, since the tests below only exercise ligm assets.
type proceduralSource struct{ width, height int }

func (s proceduralSource) ReadFrame(ctx context.Context, node *rendergraph.Node, t timecode.Time) (decode.Frame, error) {
	kindParam := node.Params["kind"]
	kind := editmodel.LigmKind(kindParam.String)
	params := map[string]string{}
	for k, v := range node.Params {
		if len(k) > 2 && k[:2] == "q_" {
			params[k[2:]] = v.String
		}
	}
	return clipreader.GenerateProceduralVideoFrame(kind, s.width, s.height, params, t)
}

func compileOneClip(t *testing.T) compiler.RenderRequest {
	t.Helper()
	tl := editmodel.Timeline{
		Name:     "single",
		Duration: sec(5),
		Tracks: []editmodel.Track{
			{Name: "V1", Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{barsClip("a", 0, 5)}},
		},
	}
	profile := compiler.QualityProfile{Name: "preview", Fidelity: "preview", ResolutionHeight: 16}
	req, err := compiler.Compile(tl, sec(1), profile)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return req
}

func toRequest(rr compiler.RenderRequest, src AssetSource) Request {
	return Request{Graph: rr.Graph, Order: rr.Order, Time: rr.Time, Width: rr.Width, Height: rr.Height, Source: src}
}

func TestSoftwareExecutorRendersSingleClip(t *testing.T) {
	rr := compileOneClip(t)
	exec := newSoftwareExecutor()
	src := proceduralSource{width: rr.Width, height: rr.Height}

	frame, err := exec.Execute(context.Background(), toRequest(rr, src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame.Width != rr.Width || frame.Height != rr.Height {
		t.Fatalf("expected %dx%d frame, got %dx%d", rr.Width, rr.Height, frame.Width, frame.Height)
	}
	if len(frame.Pixels) != rr.Width*rr.Height*4 {
		t.Fatalf("expected %d floats, got %d", rr.Width*rr.Height*4, len(frame.Pixels))
	}
}

func TestSoftwareExecutorIsDeterministicAcrossRuns(t *testing.T) {
	rr := compileOneClip(t)
	src := proceduralSource{width: rr.Width, height: rr.Height}

	a, err := newSoftwareExecutor().Execute(context.Background(), toRequest(rr, src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := newSoftwareExecutor().Execute(context.Background(), toRequest(rr, src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a.Pixels {
		if a.Pixels[i] != b.Pixels[i] {
			t.Fatalf("expected bit-identical render output at index %d: %v vs %v", i, a.Pixels[i], b.Pixels[i])
		}
	}
}

func TestSoftwareExecutorOutputIsInDisplayRange(t *testing.T) {
	rr := compileOneClip(t)
	src := proceduralSource{width: rr.Width, height: rr.Height}
	frame, err := newSoftwareExecutor().Execute(context.Background(), toRequest(rr, src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range frame.Pixels {
		if v < 0 || v > 1 {
			t.Fatalf("expected ODT output clamped to [0,1] at index %d, got %v", i, v)
		}
	}
}

func TestSoftwareExecutorNoActiveClipFallsBackToBlackFrame(t *testing.T) {
	tl := editmodel.Timeline{
		Name:     "empty",
		Duration: sec(5),
		Tracks: []editmodel.Track{
			{Name: "V1", Kind: editmodel.TrackVideo, Clips: []editmodel.Clip{barsClip("a", 0, 1)}},
		},
	}
	profile := compiler.QualityProfile{Name: "preview", ResolutionHeight: 16}
	rr, err := compiler.Compile(tl, sec(3), profile) // past the only clip's range
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	src := proceduralSource{width: rr.Width, height: rr.Height}
	frame, err := newSoftwareExecutor().Execute(context.Background(), toRequest(rr, src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range frame.Pixels {
		if v != 0 {
			t.Fatalf("expected an all-black fallback frame, found nonzero at index %d: %v", i, v)
		}
	}
}

func TestSoftwareExecutorDiagnosticsStayZero(t *testing.T) {
	rr := compileOneClip(t)
	src := proceduralSource{width: rr.Width, height: rr.Height}
	exec := newSoftwareExecutor()
	if _, err := exec.Execute(context.Background(), toRequest(rr, src)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := exec.Diagnostics()
	if d.UnexpectedReadbacks != 0 || d.SubmissionRetries != 0 {
		t.Fatalf("expected zero diagnostics for a clean software render, got %+v", d)
	}
}

func TestSoftwareExecutorRejectsNilGraph(t *testing.T) {
	exec := newSoftwareExecutor()
	_, err := exec.Execute(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected an error for a request with no graph")
	}
}

func TestSoftwareExecutorHonorsContextCancellation(t *testing.T) {
	rr := compileOneClip(t)
	src := proceduralSource{width: rr.Width, height: rr.Height}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSoftwareExecutor().Execute(ctx, toRequest(rr, src))
	if err == nil {
		t.Fatal("expected an error for an already-cancelled context")
	}
}

func TestShaderLibraryEnsureLoadedAcceptsCatalogKinds(t *testing.T) {
	rr := compileOneClip(t)
	lib := &ShaderLibrary{}
	if err := lib.EnsureLoaded(rr.Graph); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestShaderLibraryPanicsOnUnregisteredKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for a node kind with no registered shader")
		}
	}()
	g := rendergraph.New()
	_ = g.AddNode(rendergraph.Node{ID: "odt", Kind: rendergraph.KindODT})

	// Simulate a catalog/library drift: load the real table, then
	// remove one entry to reproduce the situation EnsureLoaded must
	// guard against (a node kind the graph uses but the library never
	// registered a shader for).
	lib := &ShaderLibrary{}
	lib.once.Do(lib.load)
	delete(lib.loaded, rendergraph.KindODT)
	_ = lib.EnsureLoaded(g)
}

func TestNewExecutorFallsBackToSoftwareWithoutGPU(t *testing.T) {
	exec, usedGPU := NewExecutor(false)
	if usedGPU {
		t.Fatal("expected preferGPU=false to never select the Vulkan backend")
	}
	if exec == nil {
		t.Fatal("expected a non-nil fallback executor")
	}
}
