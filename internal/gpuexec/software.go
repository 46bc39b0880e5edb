package gpuexec

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/metavis/renderengine/internal/colormath"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// softwareExecutor walks a validated graph node by node, evaluating
// every pixel through internal/colormath's CPU reference transforms.
// It backs GPU-less test CI and is the fallback when Vulkan device
// init fails; it implements the same Executor contract as the Vulkan
// backend so callers never branch on which one they got.
type softwareExecutor struct {
	diag diagnostics
}

type diagnostics struct {
	unexpectedReadbacks int64
	submissionRetries   int64
}

func newSoftwareExecutor() *softwareExecutor { return &softwareExecutor{} }

func (e *softwareExecutor) Close() error { return nil }

func (e *softwareExecutor) Diagnostics() Diagnostics {
	return Diagnostics{
		UnexpectedReadbacks: atomic.LoadInt64(&e.diag.unexpectedReadbacks),
		SubmissionRetries:   atomic.LoadInt64(&e.diag.submissionRetries),
	}
}

// plane is a CPU-resident linear-light RGBA raster, the software
// executor's stand-in for a GPU texture.
type plane struct {
	width, height int
	pixels        []colormath.RGB
	alpha         []float64
}

func newPlane(w, h int) *plane {
	return &plane{width: w, height: h, pixels: make([]colormath.RGB, w*h), alpha: make([]float64, w*h)}
}

func (p *plane) at(x, y int) (colormath.RGB, float64) {
	i := y*p.width + x
	return p.pixels[i], p.alpha[i]
}

func (p *plane) set(x, y int, c colormath.RGB, a float64) {
	i := y*p.width + x
	p.pixels[i] = c
	p.alpha[i] = a
}

func planeFromFrame(f decode.Frame) *plane {
	p := newPlane(f.Width, f.Height)
	for i := 0; i < f.Width*f.Height; i++ {
		base := i * 4
		p.pixels[i] = colormath.RGB{R: float64(f.Pixels[base]), G: float64(f.Pixels[base+1]), B: float64(f.Pixels[base+2])}
		p.alpha[i] = float64(f.Pixels[base+3])
	}
	return p
}

func (p *plane) toFrame(t timecode.Time) decode.Frame {
	out := make([]float32, p.width*p.height*4)
	for i, c := range p.pixels {
		out[i*4] = float32(c.R)
		out[i*4+1] = float32(c.G)
		out[i*4+2] = float32(c.B)
		out[i*4+3] = float32(p.alpha[i])
	}
	return decode.Frame{Width: p.width, Height: p.height, Pixels: out, PTS: t}
}

func (e *softwareExecutor) Execute(ctx context.Context, req Request) (decode.Frame, error) {
	if req.Graph == nil {
		return decode.Frame{}, xerrors.Engine("render request has no graph", nil)
	}
	planes := make(map[rendergraph.NodeID]*plane, len(req.Order))

	for _, id := range req.Order {
		select {
		case <-ctx.Done():
			return decode.Frame{}, xerrors.Cancelled("render execution cancelled")
		default:
		}
		node := req.Graph.Nodes[id]
		p, err := e.evalNode(ctx, req, node, planes)
		if err != nil {
			return decode.Frame{}, err
		}
		planes[id] = p
	}

	sink := req.Graph.Sink()
	if sink == nil {
		return decode.Frame{}, xerrors.Engine("graph has no ODT sink after validation", nil)
	}
	result, ok := planes[sink.ID]
	if !ok {
		return decode.Frame{}, xerrors.Engine("sink node produced no plane", map[string]any{"nodeId": string(sink.ID)})
	}
	return result.toFrame(req.Time), nil
}

func input(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node, slot int) (*plane, error) {
	if slot >= len(node.Inputs) {
		return nil, xerrors.Engine("render node missing required input slot", map[string]any{
			"nodeId": string(node.ID), "slot": slot,
		})
	}
	p, ok := planes[node.Inputs[slot]]
	if !ok {
		return nil, xerrors.Engine("render node input not yet evaluated", map[string]any{
			"nodeId": string(node.ID), "inputId": string(node.Inputs[slot]),
		})
	}
	return p, nil
}

func (e *softwareExecutor) evalNode(ctx context.Context, req Request, node *rendergraph.Node, planes map[rendergraph.NodeID]*plane) (*plane, error) {
	switch node.Kind {
	case rendergraph.KindSourceTexture:
		return e.evalSourceTexture(ctx, req, node)
	case rendergraph.KindSourceProcedural:
		return e.evalSourceProcedural(req, node)
	case rendergraph.KindBlackFill:
		return newPlane(req.Width, req.Height), nil
	case rendergraph.KindIDT:
		return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB { return colormath.IDT(c) })
	case rendergraph.KindODT:
		return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB { return colormath.ODT(colormath.SanitizeHDR(c)) })
	case rendergraph.KindColorCDL:
		return e.evalCDL(planes, node)
	case rendergraph.KindToneMapACES:
		return e.evalToneMap(planes, node)
	case rendergraph.KindFalseColor:
		return e.evalFalseColor(planes, node)
	case rendergraph.KindLUT3D:
		return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB { return c })
	case rendergraph.KindComposite:
		return e.evalComposite(planes, node)
	case rendergraph.KindCrossfade:
		return e.evalCrossfade(planes, node)
	case rendergraph.KindDip:
		return e.evalDip(planes, node)
	case rendergraph.KindWipe:
		return e.evalWipe(planes, node)
	case rendergraph.KindRetime:
		return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB { return c })
	case rendergraph.KindWatermark:
		return e.evalWatermark(planes, node)
	default:
		return nil, xerrors.Engine("unhandled render node kind", map[string]any{"kind": string(node.Kind)})
	}
}

func input1(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) *plane {
	p, err := input(planes, node, 0)
	if err != nil || p == nil {
		return nil
	}
	return p
}

func mapPlane(src *plane, f func(colormath.RGB) colormath.RGB) (*plane, error) {
	if src == nil {
		return nil, xerrors.Engine("render node input plane missing", nil)
	}
	out := newPlane(src.width, src.height)
	for i, c := range src.pixels {
		out.pixels[i] = f(c)
		out.alpha[i] = src.alpha[i]
	}
	return out, nil
}

func (e *softwareExecutor) evalSourceTexture(ctx context.Context, req Request, node *rendergraph.Node) (*plane, error) {
	if req.Source == nil {
		return nil, xerrors.Engine("render request has no asset source configured", map[string]any{"nodeId": string(node.ID)})
	}
	f, err := req.Source.ReadFrame(ctx, node, req.Time)
	if err != nil {
		return nil, err
	}
	return planeFromFrame(f), nil
}

func (e *softwareExecutor) evalSourceProcedural(req Request, node *rendergraph.Node) (*plane, error) {
	if req.Source == nil {
		return nil, xerrors.Engine("render request has no asset source configured", map[string]any{"nodeId": string(node.ID)})
	}
	f, err := req.Source.ReadFrame(context.Background(), node, req.Time)
	if err != nil {
		return nil, err
	}
	return planeFromFrame(f), nil
}

func (e *softwareExecutor) evalCDL(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	cdl := colormath.CDL{
		Slope:      vec3Param(node, "slope", colormath.RGB{R: 1, G: 1, B: 1}),
		Offset:     vec3Param(node, "offset", colormath.RGB{}),
		Power:      vec3Param(node, "power", colormath.RGB{R: 1, G: 1, B: 1}),
		Saturation: floatParamOr(node, "saturation", 1),
	}
	return mapPlane(input1(planes, node), cdl.Apply)
}

func (e *softwareExecutor) evalToneMap(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	exposure := floatParamOr(node, "exposure", 0)
	return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB { return colormath.ToneMapACES(c, exposure) })
}

func (e *softwareExecutor) evalFalseColor(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	return mapPlane(input1(planes, node), func(c colormath.RGB) colormath.RGB {
		y := colormath.Luma709(c)
		return turboColormap(y)
	})
}

// turboColormap is a coarse piecewise approximation of Google's Turbo
// false-color map, enough to visually distinguish exposure bands; QC's
// false-color overlay only needs relative ordering, not perceptual
// uniformity.
func turboColormap(y float64) colormath.RGB {
	if y < 0 {
		y = 0
	}
	if y > 1 {
		y = 1
	}
	switch {
	case y < 0.25:
		t := y / 0.25
		return colormath.RGB{R: 0, G: t, B: 1 - t}
	case y < 0.5:
		t := (y - 0.25) / 0.25
		return colormath.RGB{R: 0, G: 1, B: t * 0}
	case y < 0.75:
		t := (y - 0.5) / 0.25
		return colormath.RGB{R: t, G: 1, B: 0}
	default:
		t := (y - 0.75) / 0.25
		return colormath.RGB{R: 1, G: 1 - t, B: 0}
	}
}

func (e *softwareExecutor) evalComposite(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	base, err := input(planes, node, 0)
	if err != nil {
		return nil, err
	}
	over, err := input(planes, node, 1)
	if err != nil {
		return nil, err
	}
	return blendPlanes(base, over, func(a, b colormath.RGB, aa, ba float64) (colormath.RGB, float64) {
		outA := ba + aa*(1-ba)
		if outA == 0 {
			return colormath.RGB{}, 0
		}
		return colormath.Lerp(a, b, ba), outA
	})
}

func (e *softwareExecutor) evalCrossfade(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	a, err := input(planes, node, 0)
	if err != nil {
		return nil, err
	}
	b, err := input(planes, node, 1)
	if err != nil {
		return nil, err
	}
	t := floatParamOr(node, "progress", 0.5)
	return blendPlanes(a, b, func(ca, cb colormath.RGB, aa, ba float64) (colormath.RGB, float64) {
		return colormath.Lerp(ca, cb, t), aa + (ba-aa)*t
	})
}

func (e *softwareExecutor) evalDip(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	a, err := input(planes, node, 0)
	if err != nil {
		return nil, err
	}
	b, err := input(planes, node, 1)
	if err != nil {
		return nil, err
	}
	t := floatParamOr(node, "progress", 0.5)
	dip := vec3Param(node, "color", colormath.RGB{})
	return blendPlanes(a, b, func(ca, cb colormath.RGB, aa, ba float64) (colormath.RGB, float64) {
		if t < 0.5 {
			return colormath.Lerp(ca, dip, t*2), aa
		}
		return colormath.Lerp(dip, cb, (t-0.5)*2), ba
	})
}

func (e *softwareExecutor) evalWipe(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	a, err := input(planes, node, 0)
	if err != nil {
		return nil, err
	}
	b, err := input(planes, node, 1)
	if err != nil {
		return nil, err
	}
	t := floatParamOr(node, "progress", 0.5)
	out := newPlane(a.width, a.height)
	edge := int(math.Round(t * float64(a.width)))
	for y := 0; y < a.height; y++ {
		for x := 0; x < a.width; x++ {
			if x < edge {
				c, al := b.at(x, y)
				out.set(x, y, c, al)
			} else {
				c, al := a.at(x, y)
				out.set(x, y, c, al)
			}
		}
	}
	return out, nil
}

func (e *softwareExecutor) evalWatermark(planes map[rendergraph.NodeID]*plane, node *rendergraph.Node) (*plane, error) {
	src, err := input(planes, node, 0)
	if err != nil {
		return nil, err
	}
	opacity := floatParamOr(node, "opacity", 0.3)
	out := newPlane(src.width, src.height)
	copy(out.pixels, src.pixels)
	copy(out.alpha, src.alpha)
	// Lower-right quadrant overlay; a real watermark sources its own
	// texture, omitted here since the node catalog gives no asset
	// reference to watermark nodes and the compiler only ever emits a
	// synthetic mark.
	x0, y0 := src.width*3/4, src.height*3/4
	for y := y0; y < src.height; y++ {
		for x := x0; x < src.width; x++ {
			c, _ := out.at(x, y)
			out.set(x, y, colormath.Lerp(c, colormath.RGB{R: 1, G: 1, B: 1}, opacity), 1)
		}
	}
	return out, nil
}

func blendPlanes(a, b *plane, f func(ca, cb colormath.RGB, aa, ba float64) (colormath.RGB, float64)) (*plane, error) {
	if a.width != b.width || a.height != b.height {
		return nil, xerrors.Engine("blend node inputs have mismatched dimensions", map[string]any{
			"a": [2]int{a.width, a.height}, "b": [2]int{b.width, b.height},
		})
	}
	out := newPlane(a.width, a.height)
	for i := range out.pixels {
		ca, cb := colormath.SanitizeHDR(a.pixels[i]), colormath.SanitizeHDR(b.pixels[i])
		c, al := f(ca, cb, a.alpha[i], b.alpha[i])
		out.pixels[i], out.alpha[i] = c, al
	}
	return out, nil
}

func floatParamOr(node *rendergraph.Node, key string, def float64) float64 {
	if p, ok := node.Params[key]; ok {
		return p.Float
	}
	return def
}

func vec3Param(node *rendergraph.Node, key string, def colormath.RGB) colormath.RGB {
	p, ok := node.Params[key]
	if !ok {
		return def
	}
	return colormath.RGB{R: p.Vec3[0], G: p.Vec3[1], B: p.Vec3[2]}
}
