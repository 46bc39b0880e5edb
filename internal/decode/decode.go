// Package decode defines the decoder adapter contract: a closed tagged
// variant over decoder kinds (native video, native EXR, native FITS,
// external-fallback EXR), each producing Frames on demand. Probing
// follows the teacher's ffprobe JSON shape (VideoInfo), generalized to
// any sniffed container rather than only ffmpeg-muxed files.
package decode

import (
	"context"

	"github.com/metavis/renderengine/internal/timecode"
)

// Kind is the closed set of decoder adapters the Clip Reader can
// dispatch to. There is no plugin registration; adding a format means
// adding a Kind and a case in the Clip Reader's extension dispatch.
type Kind string

const (
	KindNativeVideo   Kind = "nativeVideo"
	KindNativeEXR     Kind = "nativeEXR"
	KindNativeFITS    Kind = "nativeFITS"
	KindNativeStill   Kind = "nativeStill" // PNG/JPEG
	KindExternalEXR   Kind = "externalEXR" // fallback path only
)

// VideoInfo is the probed shape of a source asset, modeled on the
// teacher's ffprobe-derived VideoInfo: duration/geometry/rate/codec
// plus an audio-presence flag.
type VideoInfo struct {
	Duration   timecode.Time
	Width      int
	Height     int
	FPSNum     int64
	FPSDen     int64
	Codec      string
	HasAudio   bool
	AudioCodec string
}

// Frame is one decoded image: interleaved pixels plus the timestamp the
// decoder actually produced it at (which may differ from the
// requested ticks for VFR sources).
type Frame struct {
	Width, Height int
	// Pixels holds interleaved float32 RGBA, row-major, as decoded; no
	// decoder applies an input transform (the compiler's IDT node does).
	Pixels []float32
	PTS    timecode.Time
}

// Stream is an open decode session against one asset. Implementations
// are not safe for concurrent use; the Clip Reader serializes access
// per asset via its decoder-state cache.
type Stream interface {
	Info() VideoInfo
	// FrameAt decodes the frame nearest to sourceTicks. Implementations
	// seek only when necessary; sequential reads should be cheap.
	FrameAt(ctx context.Context, sourceTicks timecode.Time) (Frame, error)
	// SamplePTS returns up to n successive presentation timestamps from
	// the start of the stream, used for VFR detection. It does not
	// disturb the stream's current read position.
	SamplePTS(ctx context.Context, n int) ([]timecode.Time, error)
	Close() error
}

// Decoder opens a Stream for a resolved file path. Kind() identifies
// which adapter this is, for diagnostics and the QC container report.
type Decoder interface {
	Kind() Kind
	Open(ctx context.Context, path string) (Stream, error)
}
