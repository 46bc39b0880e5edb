package container

import (
	"fmt"
	"strconv"
)

// buildMuxArgs constructs the ffmpeg argument vector that muxes the
// raw video (and, if present, raw audio) scratch files into outPath,
// tagging spec.Color's primaries/transfer/matrix. The ordered-section
// shape (preamble, inputs, stream codecs, color metadata, container
// flags, output) follows Muxmaster's ffmpeg argument builder.
func buildMuxArgs(ffmpegPath string, spec Spec, videoPath, audioPath string, hasAudio bool, outPath string) []string {
	args := make([]string, 0, 32)

	// --- Preamble ---
	args = append(args, ffmpegPath, "-hide_banner", "-nostdin", "-y", "-loglevel", "error")

	// --- Video input: raw packed frames at the container's geometry. ---
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", spec.rawPixFmt(),
		"-s", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-r", fpsArg(spec.FPS.Num, spec.FPS.Den),
		"-i", videoPath,
	)

	// --- Audio input, if the deliverable carries one. ---
	if hasAudio {
		args = append(args,
			"-f", "f32le",
			"-ar", strconv.Itoa(spec.SampleRate),
			"-ac", "2",
			"-i", audioPath,
		)
	}

	// --- Video codec ---
	args = append(args, "-c:v", spec.VideoCodec, "-pix_fmt", spec.pixFmt())

	// --- Color metadata (always Rec.709; no HDR tagging) ---
	args = append(args,
		"-color_primaries", spec.Color.Primaries,
		"-color_trc", spec.Color.Transfer,
		"-colorspace", spec.Color.Matrix,
	)

	// --- Audio codec ---
	if hasAudio {
		codec := spec.AudioCodec
		if codec == "" {
			codec = "aac"
		}
		args = append(args, "-c:a", codec)
	} else {
		args = append(args, "-an")
	}

	// --- Container flags ---
	args = append(args, "-movflags", "+faststart")

	args = append(args, outPath)
	return args
}

func fpsArg(num, den int64) string {
	if den == 0 {
		den = 1
	}
	return fmt.Sprintf("%d/%d", num, den)
}
