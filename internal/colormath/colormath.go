// Package colormath implements the CPU reference color transforms: the
// Rec.709<->ACEScg boundary conversions, ASC CDL grading, and the film
// tone-map curve. These are the "golden trace" implementations tests
// compare against; the GPU shader path in gpuexec must agree with them
// bit-exactly on fixture frames (spec §9 open question: shared lookup
// source rather than two independently derived curves).
package colormath

import "math"

// RGB is a working-space or display-space linear triple. Values outside
// [0,1] are legal in ACEScg (wide gamut, unclamped) but are clamped at
// the ODT boundary.
type RGB struct {
	R, G, B float64
}

func (c RGB) Add(o RGB) RGB { return RGB{c.R + o.R, c.G + o.G, c.B + o.B} }
func (c RGB) Scale(k float64) RGB { return RGB{c.R * k, c.G * k, c.B * k} }

// Lerp blends a toward b by t in [0,1].
func Lerp(a, b RGB, t float64) RGB {
	return RGB{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
	}
}

// Luma709 computes Rec.709 luma from linear RGB.
func Luma709(c RGB) float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

// rec709ToACEScg and acesCgToRec709 are 3x3 matrices for the primaries
// conversion (D65 Rec.709 <-> AP1/ACEScg), the standard published
// coefficients used throughout the VFX color pipeline.
var rec709ToACEScg = [3][3]float64{
	{0.6131324224, 0.3395380341, 0.0473295434},
	{0.0701243808, 0.9163035361, 0.0135720831},
	{0.0206412773, 0.1095816000, 0.8697771227},
}

var acesCgToRec709 = [3][3]float64{
	{1.7048586920, -0.6217160346, -0.0831186160},
	{-0.1302512339, 1.1407997278, -0.0105459847},
	{-0.0240033568, -0.1289689761, 1.1529704609},
}

func apply(m [3][3]float64, c RGB) RGB {
	return RGB{
		R: m[0][0]*c.R + m[0][1]*c.G + m[0][2]*c.B,
		G: m[1][0]*c.R + m[1][1]*c.G + m[1][2]*c.B,
		B: m[2][0]*c.R + m[2][1]*c.G + m[2][2]*c.B,
	}
}

// IDT converts linear Rec.709 camera/display-referred RGB into the
// ACEScg working space. This is the only IDT the spec requires by name;
// other asset color spaces route through this after their own
// normalization in the Clip Reader.
func IDT(c RGB) RGB { return apply(rec709ToACEScg, c) }

// ODT converts ACEScg working-space RGB back to Rec.709, applying the
// shared gamma curve and clamp. Per the open question in spec §9 this
// is a simple gamma+clamp transform (not a full ACES RRT+ODT); the
// important contract is that this function and the GPU shader sample
// from the same curve definition (OETFEncode below) so CPU and GPU
// fixtures agree bit-exactly.
func ODT(c RGB) RGB {
	lin := apply(acesCgToRec709, c)
	return RGB{
		R: OETFEncode(clamp01(lin.R)),
		G: OETFEncode(clamp01(lin.G)),
		B: OETFEncode(clamp01(lin.B)),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// OETFEncode applies the Rec.709 opto-electronic transfer function
// (gamma ~2.2 with a linear toe), the single curve definition shared by
// the CPU reference (here) and the GPU shader's lookup table.
func OETFEncode(v float64) float64 {
	const (
		alpha = 1.099
		beta  = 0.018
	)
	if v < beta {
		return 4.5 * v
	}
	return alpha*math.Pow(v, 0.45) - (alpha - 1)
}

// OETFDecode inverts OETFEncode, used by the IDT normalization path for
// decoded Rec.709 sources that arrive display-encoded.
func OETFDecode(v float64) float64 {
	const (
		alpha = 1.099
		beta  = 0.081 // 4.5 * 0.018
	)
	if v < beta {
		return v / 4.5
	}
	return math.Pow((v+alpha-1)/alpha, 1/0.45)
}

// CDL is an ASC Color Decision List: per-channel slope/offset/power plus
// saturation, applied in the working color space.
type CDL struct {
	Slope      RGB
	Offset     RGB
	Power      RGB
	Saturation float64
}

// IdentityCDL returns a CDL that leaves color unchanged.
func IdentityCDL() CDL {
	return CDL{
		Slope:      RGB{1, 1, 1},
		Offset:     RGB{0, 0, 0},
		Power:      RGB{1, 1, 1},
		Saturation: 1,
	}
}

// Apply runs the CDL transform: out = (in * slope + offset) ^ power,
// per channel, followed by a saturation adjustment around Rec.709 luma.
func (cdl CDL) Apply(c RGB) RGB {
	apply1 := func(v, slope, offset, power float64) float64 {
		x := v*slope + offset
		sign := 1.0
		if x < 0 {
			sign = -1.0
			x = -x
		}
		return sign * math.Pow(x, power)
	}
	graded := RGB{
		R: apply1(c.R, cdl.Slope.R, cdl.Offset.R, cdl.Power.R),
		G: apply1(c.G, cdl.Slope.G, cdl.Offset.G, cdl.Power.G),
		B: apply1(c.B, cdl.Slope.B, cdl.Offset.B, cdl.Power.B),
	}
	if cdl.Saturation == 1 {
		return graded
	}
	y := Luma709(graded)
	return RGB{
		R: y + (graded.R-y)*cdl.Saturation,
		G: y + (graded.G-y)*cdl.Saturation,
		B: y + (graded.B-y)*cdl.Saturation,
	}
}

// ToneMapACES applies a filmic tone-map curve (Narkowicz ACES
// approximation) at the given exposure in working space, compressing
// highlights before the ODT.
func ToneMapACES(c RGB, exposure float64) RGB {
	k := math.Pow(2, exposure)
	exposed := c.Scale(k)
	return RGB{
		R: acesFilmic(exposed.R),
		G: acesFilmic(exposed.G),
		B: acesFilmic(exposed.B),
	}
}

func acesFilmic(x float64) float64 {
	const (
		a = 2.51
		b = 0.03
		c = 2.43
		d = 0.59
		e = 0.14
	)
	num := x * (a*x + b)
	den := x*(c*x+d) + e
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

// SanitizeHDR replaces NaN/Inf components with 0, per the spec's
// requirement that the executor sanitize HDR inputs before blending.
func SanitizeHDR(c RGB) RGB {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}
	return RGB{R: fix(c.R), G: fix(c.G), B: fix(c.B)}
}
