// Package container implements the Container Writer: it multiplexes
// the rendered frame stream and the mixed audio stream into a target
// container/codec, tags Rec.709 color metadata, and publishes the
// result atomically from a staging directory. The raw-scratch-then-
// mux-with-ffmpeg shape and its ordered argument sections are grounded
// on the teacher's FFmpegProcessor.buildRenderArgs and Muxmaster's
// ffmpeg argument builder; the staging-directory atomic rename is
// grounded on the teacher's graceful-shutdown cleanup discipline,
// generalized from "stop serving" to "never expose a partial file".
package container

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"

	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

// ColorTag is the container-level color metadata triple the writer
// stamps onto the output. HDR tagging (PQ/HLG) is out of scope per
// spec §9; every deliverable is tagged Rec.709.
type ColorTag struct {
	Primaries string
	Transfer  string
	Matrix    string
}

// Rec709 is the only color tag this engine ever writes.
var Rec709 = ColorTag{Primaries: "bt709", Transfer: "bt709", Matrix: "bt709"}

// Spec describes the target container/codec geometry for one
// deliverable render.
type Spec struct {
	Width, Height int
	FPS           timecode.FPS
	ColorDepth    int // 8, 10, or 12 bits per channel
	VideoCodec    string
	PixFmt        string // output pixel format; derived from ColorDepth if empty
	AudioCodec    string
	SampleRate    int // 0 if the deliverable carries no audio
	Color         ColorTag
}

func (s Spec) pixFmt() string {
	if s.PixFmt != "" {
		return s.PixFmt
	}
	if s.ColorDepth > 8 {
		return "yuv420p10le"
	}
	return "yuv420p"
}

// rawPixFmt is the ffmpeg rawvideo input format the scratch file is
// packed as: 8-bit channels pack as "rgba"; anything deeper packs as
// 16-bit "rgba64le" (a documented simplification — ffmpeg's rawvideo
// demuxer has no native 10/12-bit packed RGBA format, so 10/12-bit
// samples are upconverted to 16-bit precision before muxing).
func (s Spec) rawPixFmt() string {
	if s.ColorDepth > 8 {
		return "rgba64le"
	}
	return "rgba"
}

func (s Spec) bytesPerPixel() int {
	if s.ColorDepth > 8 {
		return 8
	}
	return 4
}

// Writer accumulates a rendered frame stream and a mixed audio stream
// into raw scratch files inside a staging directory, then muxes and
// publishes them atomically.
type Writer struct {
	fs         fsadapter.FileSystemAdapter
	ffmpegPath string
	stagingDir string
	spec       Spec

	frameCount   int64
	lastVideoPTS timecode.Time
	haveVideo    bool

	audioSamples int64
	lastAudioEnd timecode.Time
	haveAudio    bool

	finalized  bool
	finalPath  string
}

// NewWriter creates a Writer rooted at stagingDir, which must not yet
// exist or must be empty; the writer creates it on first append.
func NewWriter(fs fsadapter.FileSystemAdapter, ffmpegPath, stagingDir string, spec Spec) *Writer {
	return &Writer{fs: fs, ffmpegPath: ffmpegPath, stagingDir: stagingDir, spec: spec}
}

func (w *Writer) videoScratchPath() string { return filepath.Join(w.stagingDir, "video.raw") }
func (w *Writer) audioScratchPath() string { return filepath.Join(w.stagingDir, "audio.raw") }

// AppendVideoFrame packs frame into the container's raw pixel format
// and appends it to the video scratch file. Frames must arrive in
// strictly increasing PTS order; the writer never buffers an entire
// pass in memory.
func (w *Writer) AppendVideoFrame(ctx context.Context, frame decode.Frame) error {
	if w.finalized {
		return xerrors.Engine("cannot append a video frame after Finalize", nil)
	}
	if frame.Width != w.spec.Width || frame.Height != w.spec.Height {
		return xerrors.Engine("frame geometry does not match container spec", map[string]any{
			"want": fmt.Sprintf("%dx%d", w.spec.Width, w.spec.Height),
			"got":  fmt.Sprintf("%dx%d", frame.Width, frame.Height),
		})
	}
	if w.haveVideo && !frame.PTS.Greater(w.lastVideoPTS) {
		return xerrors.Engine("video frame appended out of order", map[string]any{
			"pts": frame.PTS.String(), "lastPTS": w.lastVideoPTS.String(),
		})
	}

	buf := w.packFrame(frame)
	if err := w.fs.Append(w.videoScratchPath(), buf); err != nil {
		return xerrors.IO("failed to append video frame", err, nil)
	}
	w.frameCount++
	w.lastVideoPTS = frame.PTS
	w.haveVideo = true
	return nil
}

// packFrame quantizes frame's linear-index RGBA floats (already
// OETF-encoded by the ODT sink) to the container's channel depth and
// returns the packed raw bytes, row-major, little-endian.
func (w *Writer) packFrame(frame decode.Frame) []byte {
	n := len(frame.Pixels)
	buf := make([]byte, n*w.spec.bytesPerPixel()/4)
	if w.spec.ColorDepth > 8 {
		for i, v := range frame.Pixels {
			binary.LittleEndian.PutUint16(buf[i*2:], quantize16(v))
		}
		return buf
	}
	for i, v := range frame.Pixels {
		buf[i] = quantize8(v)
	}
	return buf
}

func quantize8(v float32) byte {
	v = clamp01(v)
	return byte(v*255 + 0.5)
}

func quantize16(v float32) uint16 {
	v = clamp01(v)
	return uint16(v*65535 + 0.5)
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AppendAudio appends a stereo-interleaved float32 buffer covering
// [windowStart, windowStart+len(samples)/2/SampleRate) to the audio
// scratch file. Windows must arrive in monotonically increasing
// timestamp order, per the spec's append-ordering invariant.
func (w *Writer) AppendAudio(ctx context.Context, windowStart timecode.Time, samples []float32) error {
	if w.finalized {
		return xerrors.Engine("cannot append audio after Finalize", nil)
	}
	if w.spec.SampleRate <= 0 {
		return xerrors.Engine("container spec declares no audio sample rate", nil)
	}
	if w.haveAudio && windowStart.Less(w.lastAudioEnd) {
		return xerrors.Engine("audio buffer appended out of order", map[string]any{
			"windowStart": windowStart.String(), "lastEnd": w.lastAudioEnd.String(),
		})
	}

	raw := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	if err := w.fs.Append(w.audioScratchPath(), raw); err != nil {
		return xerrors.IO("failed to append audio buffer", err, nil)
	}

	frames := len(samples) / 2
	w.audioSamples += int64(frames)
	w.lastAudioEnd = windowStart.Add(timecode.FromSeconds(float64(frames) / float64(w.spec.SampleRate)))
	w.haveAudio = true
	return nil
}

// Finalize muxes the accumulated scratch files into outputName inside
// the staging directory via ffmpeg, tagging Rec.709 color metadata. It
// returns the muxed file's path (the staging directory joined with
// outputName); the caller (the
// Deliverable Orchestrator) runs QC against it before Publish.
func (w *Writer) Finalize(ctx context.Context, outputName string) (string, error) {
	if w.finalized {
		return "", xerrors.Engine("Finalize called twice", nil)
	}
	if !w.haveVideo {
		return "", xerrors.Engine("cannot finalize a container with no video frames", nil)
	}

	outPath := filepath.Join(w.stagingDir, outputName)
	args := buildMuxArgs(w.ffmpegPath, w.spec, w.videoScratchPath(), w.audioScratchPath(), w.haveAudio, outPath)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if err := cmd.Run(); err != nil {
		return "", xerrors.Engine("ffmpeg mux failed", map[string]any{"cause": err.Error()})
	}

	w.finalized = true
	w.finalPath = outPath
	return outPath, nil
}

// FrameCount returns the number of video frames appended so far, used
// by container QC's minimum-sample-count check.
func (w *Writer) FrameCount() int64 { return w.frameCount }

// Publish renames the staging directory into destPath, the atomic
// commit point: once this returns nil, destPath exists in full or the
// rename itself failed (no partial state is ever visible there).
func (w *Writer) Publish(destPath string) error {
	if !w.finalized {
		return xerrors.Engine("cannot publish before Finalize", nil)
	}
	if err := w.fs.Rename(w.stagingDir, destPath); err != nil {
		return xerrors.IO("failed to publish deliverable", err, map[string]any{"dest": destPath})
	}
	return nil
}

// Abort discards the staging directory without touching any
// previously-published destination.
func (w *Writer) Abort() error {
	if err := w.fs.RemoveAll(w.stagingDir); err != nil {
		return xerrors.IO("failed to discard staging directory", err, nil)
	}
	return nil
}
