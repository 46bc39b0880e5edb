package decode

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

const fitsCardSize = 80
const fitsBlockSize = 2880

// FITSDecoder natively decodes the primary HDU of a FITS file as a 2-D
// image (the grayscale still-image case LIGM/astro source plates use).
// A primary HDU that is not 2-D is rejected; extension HDUs that follow
// it are not read.
type FITSDecoder struct {
	FS fsadapter.FileSystemAdapter
}

func (d *FITSDecoder) Kind() Kind { return KindNativeFITS }

func (d *FITSDecoder) Open(ctx context.Context, path string) (Stream, error) {
	raw, err := d.FS.ReadFile(path)
	if err != nil {
		return nil, xerrors.IO("failed to read FITS asset", err, map[string]any{"path": path})
	}
	frame, err := decodeFITSBytes(raw)
	if err != nil {
		return nil, xerrors.Asset("failed to decode FITS", map[string]any{"path": path, "cause": err.Error()})
	}
	return &stillStream{frame: frame}, nil
}

func decodeFITSBytes(raw []byte) (Frame, error) {
	header := map[string]string{}
	pos := 0
	for {
		if pos+fitsBlockSize > len(raw) {
			return Frame{}, fmt.Errorf("truncated FITS header")
		}
		block := raw[pos : pos+fitsBlockSize]
		pos += fitsBlockSize
		done := false
		for i := 0; i+fitsCardSize <= len(block); i += fitsCardSize {
			card := string(block[i : i+fitsCardSize])
			key := strings.TrimSpace(card[:8])
			if key == "END" {
				done = true
				break
			}
			if key == "" || key == "COMMENT" || key == "HISTORY" {
				continue
			}
			if len(card) > 10 && card[8] == '=' {
				val := strings.TrimSpace(card[10:])
				if idx := strings.Index(val, "/"); idx >= 0 {
					val = strings.TrimSpace(val[:idx])
				}
				header[key] = strings.Trim(val, "'")
			}
		}
		if done {
			break
		}
	}

	bitpix, err := strconv.Atoi(header["BITPIX"])
	if err != nil {
		return Frame{}, fmt.Errorf("missing/invalid BITPIX: %w", err)
	}
	naxis, _ := strconv.Atoi(header["NAXIS"])
	if naxis != 2 {
		return Frame{}, fmt.Errorf("only 2-D FITS images are supported, NAXIS=%d", naxis)
	}
	width, err := strconv.Atoi(header["NAXIS1"])
	if err != nil {
		return Frame{}, fmt.Errorf("missing NAXIS1: %w", err)
	}
	height, err := strconv.Atoi(header["NAXIS2"])
	if err != nil {
		return Frame{}, fmt.Errorf("missing NAXIS2: %w", err)
	}
	bzero, bscale := 0.0, 1.0
	if v, ok := header["BZERO"]; ok {
		bzero, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := header["BSCALE"]; ok {
		bscale, _ = strconv.ParseFloat(v, 64)
	}

	bytesPerPixel := abs(bitpix) / 8
	dataLen := width * height * bytesPerPixel
	if pos+dataLen > len(raw) {
		return Frame{}, fmt.Errorf("truncated FITS data: need %d bytes, have %d", dataLen, len(raw)-pos)
	}
	data := raw[pos : pos+dataLen]

	out := make([]float32, width*height*4)
	minV, maxV := math.Inf(1), math.Inf(-1)
	values := make([]float64, width*height)
	for i := 0; i < width*height; i++ {
		off := i * bytesPerPixel
		var raw64 float64
		switch bitpix {
		case 8:
			raw64 = float64(data[off])
		case 16:
			raw64 = float64(int16(binary.BigEndian.Uint16(data[off:])))
		case 32:
			raw64 = float64(int32(binary.BigEndian.Uint32(data[off:])))
		case -32:
			raw64 = float64(math.Float32frombits(binary.BigEndian.Uint32(data[off:])))
		case -64:
			raw64 = math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		default:
			return Frame{}, fmt.Errorf("unsupported BITPIX %d", bitpix)
		}
		v := raw64*bscale + bzero
		values[i] = v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	span := maxV - minV
	if span == 0 {
		span = 1
	}
	// FITS row 1 is the bottom of the image; flip to top-down for the
	// engine's raster convention.
	for row := 0; row < height; row++ {
		srcRow := height - 1 - row
		for col := 0; col < width; col++ {
			norm := float32((values[srcRow*width+col] - minV) / span)
			dst := (row*width + col) * 4
			out[dst+0] = norm
			out[dst+1] = norm
			out[dst+2] = norm
			out[dst+3] = 1
		}
	}

	return Frame{Width: width, Height: height, Pixels: out, PTS: timecode.Zero}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
