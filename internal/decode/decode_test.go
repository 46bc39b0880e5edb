package decode

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

func putCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func buildMinimalEXR(t *testing.T, width, height int, fill [3]float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, exrMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // version, no tiled bit

	// dataWindow attribute: box2i [0,0,width-1,height-1]
	putCString(&buf, "dataWindow")
	putCString(&buf, "box2i")
	binary.Write(&buf, binary.LittleEndian, int32(16))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(0))
	binary.Write(&buf, binary.LittleEndian, int32(width-1))
	binary.Write(&buf, binary.LittleEndian, int32(height-1))

	// channels attribute: chlist with B, G, R, each float(pixelType=2)
	var chBuf bytes.Buffer
	for _, name := range []string{"B", "G", "R"} {
		putCString(&chBuf, name)
		binary.Write(&chBuf, binary.LittleEndian, int32(2)) // pixelType=float
		chBuf.WriteByte(0)                                  // pLinear
		chBuf.Write([]byte{0, 0, 0})                        // reserved
		binary.Write(&chBuf, binary.LittleEndian, int32(1)) // xSampling
		binary.Write(&chBuf, binary.LittleEndian, int32(1)) // ySampling
	}
	chBuf.WriteByte(0) // chlist terminator

	putCString(&buf, "channels")
	putCString(&buf, "chlist")
	binary.Write(&buf, binary.LittleEndian, int32(chBuf.Len()))
	buf.Write(chBuf.Bytes())

	buf.WriteByte(0) // end of header

	// offset table: one per scanline (values unused by our reader)
	for y := 0; y < height; y++ {
		binary.Write(&buf, binary.LittleEndian, int64(0))
	}

	// scanlines: B,G,R each width*4 bytes, all pixels = fill
	for y := 0; y < height; y++ {
		binary.Write(&buf, binary.LittleEndian, int32(y))
		rowSize := int32(width * 4 * 3)
		binary.Write(&buf, binary.LittleEndian, rowSize)
		for _, v := range fill {
			for x := 0; x < width; x++ {
				binary.Write(&buf, binary.LittleEndian, v)
			}
		}
	}
	return buf.Bytes()
}

func TestDecodeEXRBytesRoundTrip(t *testing.T) {
	raw := buildMinimalEXR(t, 2, 2, [3]float32{0.25, 0.5, 0.75})
	frame, err := decodeEXRBytes(raw)
	if err != nil {
		t.Fatalf("decodeEXRBytes: %v", err)
	}
	if frame.Width != 2 || frame.Height != 2 {
		t.Fatalf("unexpected dims: %dx%d", frame.Width, frame.Height)
	}
	r, g, b, a := frame.Pixels[0], frame.Pixels[1], frame.Pixels[2], frame.Pixels[3]
	if r != 0.75 || g != 0.5 || b != 0.25 || a != 1 {
		t.Errorf("unexpected pixel 0: r=%v g=%v b=%v a=%v", r, g, b, a)
	}
}

func TestDecodeEXRBytesRejectsBadMagic(t *testing.T) {
	if _, err := decodeEXRBytes([]byte{0, 0, 0, 0}); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func buildMinimalFITS(t *testing.T, width, height int, values []float32) []byte {
	t.Helper()
	var buf bytes.Buffer
	writeCard := func(s string) {
		card := s
		for len(card) < fitsCardSize {
			card += " "
		}
		buf.WriteString(card[:fitsCardSize])
	}
	writeCard("SIMPLE  =                    T")
	writeCard("BITPIX  =                  -32")
	writeCard("NAXIS   =                    2")
	writeCard(fitsCard("NAXIS1  = ", width))
	writeCard(fitsCard("NAXIS2  = ", height))
	writeCard("END")
	for buf.Len()%fitsBlockSize != 0 {
		buf.WriteByte(' ')
	}
	for _, v := range values {
		binary.Write(&buf, binary.BigEndian, v)
	}
	for buf.Len()%fitsBlockSize != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func fitsCard(prefix string, n int) string {
	return prefix + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestDecodeFITSBytesGrayscale(t *testing.T) {
	// 2x1 image, bottom row only: values [0, 10] -> normalized [0, 1]
	raw := buildMinimalFITS(t, 2, 1, []float32{0, 10})
	frame, err := decodeFITSBytes(raw)
	if err != nil {
		t.Fatalf("decodeFITSBytes: %v", err)
	}
	if frame.Width != 2 || frame.Height != 1 {
		t.Fatalf("unexpected dims: %dx%d", frame.Width, frame.Height)
	}
	if frame.Pixels[0] != 0 || frame.Pixels[4] != 1 {
		t.Errorf("unexpected normalized pixels: %v", frame.Pixels)
	}
}

func TestEXRDecoderOpenUsesFSAdapter(t *testing.T) {
	fs := fsadapter.NewMemory()
	raw := buildMinimalEXR(t, 1, 1, [3]float32{1, 1, 1})
	if err := fs.WriteFile("frame.exr", raw); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dec := &EXRDecoder{FS: fs}
	stream, err := dec.Open(nil, "frame.exr") //nolint:staticcheck // nil Context acceptable in this synchronous in-memory test
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stream.Close()
	frame, err := stream.FrameAt(nil, timecode.Zero)
	if err != nil {
		t.Fatalf("FrameAt: %v", err)
	}
	if frame.Width != 1 || frame.Height != 1 {
		t.Fatalf("unexpected dims: %dx%d", frame.Width, frame.Height)
	}
}
