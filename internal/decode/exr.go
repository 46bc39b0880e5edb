package decode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

const exrMagic uint32 = 0x01312f76

// EXRDecoder natively decodes single-part, uncompressed scanline OpenEXR
// images with half or float RGB(A) channels — the common case for
// rendered-frame intermediates. Tiled, multi-part, and compressed
// (PIZ/ZIP/PXR24) inputs are out of scope for the native path and fall
// back to the external decoder (decode.go Kind = externalEXR).
type EXRDecoder struct {
	FS fsadapter.FileSystemAdapter
}

func (d *EXRDecoder) Kind() Kind { return KindNativeEXR }

func (d *EXRDecoder) Open(ctx context.Context, path string) (Stream, error) {
	raw, err := d.FS.ReadFile(path)
	if err != nil {
		return nil, xerrors.IO("failed to read EXR asset", err, map[string]any{"path": path})
	}
	img, err := decodeEXRBytes(raw)
	if err != nil {
		return nil, xerrors.Asset("failed to decode EXR", map[string]any{"path": path, "cause": err.Error()})
	}
	return &stillStream{frame: img}, nil
}

type exrImage struct {
	width, height int
	channels      []string // ordered, as declared in the header
	pixelTypes    []int32  // 0=uint,1=half,2=float, parallel to channels
	data          []float32
}

func decodeEXRBytes(raw []byte) (Frame, error) {
	r := bufio.NewReader(bytes.NewReader(raw))

	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return Frame{}, err
	}
	if magic != exrMagic {
		return Frame{}, fmt.Errorf("not an EXR file (bad magic %#x)", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Frame{}, err
	}
	if version&0x200 != 0 {
		return Frame{}, fmt.Errorf("tiled EXR not supported by native decoder")
	}
	if version&0x1000 != 0 {
		return Frame{}, fmt.Errorf("multi-part EXR not supported by native decoder")
	}

	img := exrImage{}
	var dataWindow [4]int32
	haveDataWindow := false

	for {
		name, err := readCString(r)
		if err != nil {
			return Frame{}, err
		}
		if name == "" {
			break // end of header
		}
		typ, err := readCString(r)
		if err != nil {
			return Frame{}, err
		}
		var size int32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return Frame{}, err
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
		switch {
		case name == "dataWindow" && typ == "box2i":
			for i := 0; i < 4; i++ {
				dataWindow[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
			}
			haveDataWindow = true
		case name == "channels" && typ == "chlist":
			parseEXRChannelList(payload, &img)
		case name == "compression" && typ == "compression":
			if len(payload) > 0 && payload[0] != 0 {
				return Frame{}, fmt.Errorf("compressed EXR not supported by native decoder")
			}
		}
	}
	if !haveDataWindow {
		return Frame{}, fmt.Errorf("EXR missing dataWindow attribute")
	}
	img.width = int(dataWindow[2]-dataWindow[0]) + 1
	img.height = int(dataWindow[3]-dataWindow[1]) + 1
	if len(img.channels) == 0 {
		return Frame{}, fmt.Errorf("EXR missing channel list")
	}

	// Scanline chunk offset table: one int64 per scanline (uncompressed
	// has one scanline per chunk in this profile).
	offsets := make([]int64, img.height)
	if err := binary.Read(r, binary.LittleEndian, &offsets); err != nil {
		return Frame{}, err
	}

	out := make([]float32, img.width*img.height*4) // RGBA
	chanIdx := map[string]int{"R": 0, "G": 1, "B": 2, "A": 3}

	for y := 0; y < img.height; y++ {
		var lineY int32
		if err := binary.Read(r, binary.LittleEndian, &lineY); err != nil {
			return Frame{}, err
		}
		var dataSize int32
		if err := binary.Read(r, binary.LittleEndian, &dataSize); err != nil {
			return Frame{}, err
		}
		row := make([]byte, dataSize)
		if _, err := io.ReadFull(r, row); err != nil {
			return Frame{}, err
		}
		cursor := 0
		for ci, chName := range img.channels {
			bps := bytesPerEXRPixel(img.pixelTypes[ci])
			outCh, known := chanIdx[chName]
			for x := 0; x < img.width; x++ {
				off := cursor + x*bps
				v := readEXRSample(row[off:off+bps], img.pixelTypes[ci])
				if known {
					out[(y*img.width+x)*4+outCh] = v
				}
			}
			cursor += img.width * bps
		}
		// Alpha defaults to 1 when the channel list carries no "A".
		if _, hasAlpha := chanIdx["A"]; !hasAlpha {
			// no-op: handled by zero-value fallback logic below
		}
	}
	if !hasChannel(img.channels, "A") {
		for i := 0; i < img.width*img.height; i++ {
			out[i*4+3] = 1
		}
	}

	return Frame{Width: img.width, Height: img.height, Pixels: out, PTS: timecode.Zero}, nil
}

func hasChannel(channels []string, name string) bool {
	for _, c := range channels {
		if c == name {
			return true
		}
	}
	return false
}

func parseEXRChannelList(payload []byte, img *exrImage) {
	i := 0
	for i < len(payload) && payload[i] != 0 {
		start := i
		for i < len(payload) && payload[i] != 0 {
			i++
		}
		name := string(payload[start:i])
		i++ // null terminator
		if i+16 > len(payload) {
			return
		}
		pixelType := int32(binary.LittleEndian.Uint32(payload[i:]))
		i += 16 // pixelType(4) + pLinear+reserved(4) + xSampling(4) + ySampling(4)
		img.channels = append(img.channels, name)
		img.pixelTypes = append(img.pixelTypes, pixelType)
	}
}

func bytesPerEXRPixel(pixelType int32) int {
	switch pixelType {
	case 1: // half
		return 2
	default: // uint, float
		return 4
	}
}

func readEXRSample(b []byte, pixelType int32) float32 {
	switch pixelType {
	case 1:
		return halfToFloat32(binary.LittleEndian.Uint16(b))
	case 2:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	default:
		return float32(binary.LittleEndian.Uint32(b))
	}
}

// halfToFloat32 converts an IEEE 754 half-precision bit pattern to
// float32 (no native half.Float in the standard library).
func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := (h >> 10) & 0x1f
	mant := uint32(h & 0x3ff)

	var bits uint32
	switch {
	case exp == 0:
		if mant == 0 {
			bits = sign
		} else {
			// subnormal half -> normalize
			e := 0
			for mant&0x400 == 0 {
				mant <<= 1
				e--
			}
			mant &= 0x3ff
			exp32 := uint32(127 - 15 + e + 1)
			bits = sign | (exp32 << 23) | (mant << 13)
		}
	case exp == 0x1f:
		bits = sign | 0x7f800000 | (mant << 13)
	default:
		exp32 := uint32(exp) - 15 + 127
		bits = sign | (exp32 << 23) | (mant << 13)
	}
	return math.Float32frombits(bits)
}

func readCString(r io.ByteReader) (string, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}
