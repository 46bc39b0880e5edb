package clipreader

import (
	"math"
	"sort"
	"strconv"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/colormath"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// GenerateProceduralVideoFrame renders one of the closed ligm video
// kinds as a CPU frame. SourceProcedural nodes are host-side: the GPU
// executor's shader library has no shader for them, so this is the
// only implementation of the generators.
func GenerateProceduralVideoFrame(kind editmodel.LigmKind, width, height int, params map[string]string, t timecode.Time) (decode.Frame, error) {
	out := make([]float32, width*height*4)
	switch kind {
	case editmodel.LigmSMPTEBars:
		fillSMPTEBars(out, width, height)
	case editmodel.LigmMacbeth:
		fillMacbeth(out, width, height)
	case editmodel.LigmZonePlate:
		speed := floatParam(params, "speed", 1.0)
		fillZonePlate(out, width, height, t.Seconds()*speed)
	case editmodel.LigmFrameCounter:
		fillFrameCounter(out, width, height, t)
	default:
		return decode.Frame{}, xerrors.Compile("unsupported procedural video kind", map[string]any{"kind": string(kind)})
	}
	return decode.Frame{Width: width, Height: height, Pixels: out, PTS: t}, nil
}

func setPixel(buf []float32, width, x, y int, c colormath.RGB) {
	i := (y*width + x) * 4
	buf[i+0] = float32(c.R)
	buf[i+1] = float32(c.G)
	buf[i+2] = float32(c.B)
	buf[i+3] = 1
}

var smpteBarColors = []colormath.RGB{
	{R: 0.75, G: 0.75, B: 0.75}, // white (75%)
	{R: 0.75, G: 0.75, B: 0},    // yellow
	{R: 0, G: 0.75, B: 0.75},    // cyan
	{R: 0, G: 0.75, B: 0},       // green
	{R: 0.75, G: 0, B: 0.75},    // magenta
	{R: 0.75, G: 0, B: 0},       // red
	{R: 0, G: 0, B: 0.75},       // blue
}

func fillSMPTEBars(buf []float32, width, height int) {
	n := len(smpteBarColors)
	for x := 0; x < width; x++ {
		barIdx := x * n / width
		if barIdx >= n {
			barIdx = n - 1
		}
		c := colormath.RGB{
			R: colormath.OETFDecode(smpteBarColors[barIdx].R),
			G: colormath.OETFDecode(smpteBarColors[barIdx].G),
			B: colormath.OETFDecode(smpteBarColors[barIdx].B),
		}
		for y := 0; y < height; y++ {
			setPixel(buf, width, x, y, c)
		}
	}
}

// macbethPatches are approximate display-referred sRGB values for the
// 24-patch ColorChecker, decoded into linear for the working space.
var macbethPatches = [24]colormath.RGB{
	{0.400, 0.350, 0.270}, {0.760, 0.575, 0.460}, {0.330, 0.420, 0.545},
	{0.300, 0.370, 0.220}, {0.460, 0.400, 0.550}, {0.360, 0.680, 0.600},
	{0.700, 0.420, 0.160}, {0.240, 0.300, 0.550}, {0.650, 0.300, 0.320},
	{0.240, 0.180, 0.320}, {0.540, 0.680, 0.200}, {0.760, 0.560, 0.110},
	{0.130, 0.150, 0.440}, {0.210, 0.460, 0.200}, {0.540, 0.140, 0.150},
	{0.820, 0.660, 0.050}, {0.620, 0.240, 0.420}, {0.000, 0.390, 0.460},
	{0.850, 0.850, 0.840}, {0.680, 0.680, 0.680}, {0.530, 0.530, 0.530},
	{0.370, 0.370, 0.370}, {0.240, 0.240, 0.240}, {0.130, 0.130, 0.130},
}

func fillMacbeth(buf []float32, width, height int) {
	cols, rows := 6, 4
	for y := 0; y < height; y++ {
		row := y * rows / height
		for x := 0; x < width; x++ {
			col := x * cols / width
			idx := row*cols + col
			if idx >= len(macbethPatches) {
				idx = len(macbethPatches) - 1
			}
			p := macbethPatches[idx]
			c := colormath.RGB{R: colormath.OETFDecode(p.R), G: colormath.OETFDecode(p.G), B: colormath.OETFDecode(p.B)}
			setPixel(buf, width, x, y, c)
		}
	}
}

func fillZonePlate(buf []float32, width, height int, phase float64) {
	cx, cy := float64(width)/2, float64(height)/2
	k := 0.0015
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			r2 := dx*dx + dy*dy
			v := 0.5 + 0.5*math.Sin(k*r2+phase*2*math.Pi)
			setPixel(buf, width, x, y, colormath.RGB{R: v, G: v, B: v})
		}
	}
}

// fillFrameCounter renders a simplified machine-readable counter: a
// horizontal band whose luma encodes the low byte of the current
// frame's tick count, for sync tests that only need a monotonically
// distinguishable per-frame signature rather than glyph rendering.
func fillFrameCounter(buf []float32, width, height int, t timecode.Time) {
	v := float64(t.Ticks()%256) / 255
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			setPixel(buf, width, x, y, colormath.RGB{R: v, G: v, B: v})
		}
	}
}

func floatParam(params map[string]string, key string, def float64) float64 {
	if s, ok := params[key]; ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return def
}

// GenerateProceduralAudio renders a stereo-interleaved sample buffer
// for [startSeconds, startSeconds+duration) at sampleRate, for one of
// the closed ligm audio kinds. Noise kinds are seeded deterministically
// from the requested window so repeated renders are byte-identical.
func GenerateProceduralAudio(kind editmodel.LigmKind, params map[string]string, startSeconds, duration float64, sampleRate int) ([]float32, error) {
	n := int(duration * float64(sampleRate))
	if n < 0 {
		n = 0
	}
	out := make([]float32, n*2)

	switch kind {
	case editmodel.LigmAudioSine:
		freq := floatParam(params, "freq", 1000)
		for i := 0; i < n; i++ {
			tt := startSeconds + float64(i)/float64(sampleRate)
			v := float32(math.Sin(2 * math.Pi * freq * tt))
			out[i*2], out[i*2+1] = v, v
		}
	case editmodel.LigmAudioWhite:
		rng := newDeterministicRNG(hashSeed(kind, params, startSeconds))
		for i := 0; i < n; i++ {
			v := float32(rng.next()*2 - 1)
			out[i*2], out[i*2+1] = v, v
		}
	case editmodel.LigmAudioPink:
		rng := newDeterministicRNG(hashSeed(kind, params, startSeconds))
		var b0, b1, b2 float64
		for i := 0; i < n; i++ {
			white := rng.next()*2 - 1
			b0 = 0.99765*b0 + white*0.0990460
			b1 = 0.96300*b1 + white*0.2965164
			b2 = 0.57000*b2 + white*1.0526913
			v := float32((b0 + b1 + b2 + white*0.1848) * 0.2)
			out[i*2], out[i*2+1] = v, v
		}
	case editmodel.LigmAudioSweep:
		start := floatParam(params, "start", 20)
		end := floatParam(params, "end", 20000)
		for i := 0; i < n; i++ {
			frac := float64(i) / math.Max(1, float64(n))
			freq := start + (end-start)*frac
			tt := float64(i) / float64(sampleRate)
			v := float32(math.Sin(2 * math.Pi * freq * tt))
			out[i*2], out[i*2+1] = v, v
		}
	case editmodel.LigmAudioImpulse:
		interval := floatParam(params, "interval", 1.0)
		period := int(interval * float64(sampleRate))
		if period <= 0 {
			period = sampleRate
		}
		for i := 0; i < n; i++ {
			if i%period == 0 {
				out[i*2], out[i*2+1] = 1, 1
			}
		}
	case editmodel.LigmAudioMarker:
		at := floatParam(params, "at", 0)
		idx := int((at - startSeconds) * float64(sampleRate))
		if idx >= 0 && idx < n {
			out[idx*2], out[idx*2+1] = 1, 1
		}
	default:
		return nil, xerrors.Compile("unsupported procedural audio kind", map[string]any{"kind": string(kind)})
	}
	return out, nil
}

// deterministicRNG is a small xorshift64 generator seeded explicitly so
// "random" procedurals stay bit-reproducible across runs; it never
// reads system entropy.
type deterministicRNG struct{ state uint64 }

func newDeterministicRNG(seed uint64) *deterministicRNG {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &deterministicRNG{state: seed}
}

func (r *deterministicRNG) next() float64 {
	r.state ^= r.state << 13
	r.state ^= r.state >> 7
	r.state ^= r.state << 17
	return float64(r.state>>11) / float64(1<<53)
}

func hashSeed(kind editmodel.LigmKind, params map[string]string, startSeconds float64) uint64 {
	h := uint64(1469598103934665603) // FNV-1a offset basis
	mix := func(s string) {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= 1099511628211
		}
	}
	mix(string(kind))
	mix(strconv.FormatFloat(startSeconds, 'f', 9, 64))
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		mix(k)
		mix(params[k])
	}
	return h
}
