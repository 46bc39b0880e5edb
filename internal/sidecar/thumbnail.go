package sidecar

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/metavis/renderengine/internal/xerrors"
)

// GenerateThumbnail extracts a single JPEG frame at timeOffsetSeconds
// from inputPath. Grounded on FFmpegProcessor.GenerateThumbnail's
// single-frame -vframes 1 invocation.
func GenerateThumbnail(ctx context.Context, ffmpegPath, inputPath, outputPath string, timeOffsetSeconds float64) error {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", fmt.Sprintf("%.2f", timeOffsetSeconds),
		"-i", inputPath,
		"-vframes", "1",
		"-q:v", "2",
		"-y",
		outputPath,
	)
	if err := cmd.Run(); err != nil {
		return xerrors.IO("failed to generate thumbnail", err, map[string]any{
			"input": inputPath, "offsetSeconds": timeOffsetSeconds,
		})
	}
	return nil
}

// GenerateContactSheet samples frameCount frames evenly spaced across
// durationSeconds and tiles them into a single JPEG via ffmpeg's
// fps+tile filter chain, in one invocation rather than one per frame.
func GenerateContactSheet(ctx context.Context, ffmpegPath, inputPath, outputPath string, frameCount int, durationSeconds float64) error {
	if frameCount <= 0 {
		return xerrors.Engine("contact sheet frame count must be positive", map[string]any{"frameCount": frameCount})
	}
	cols := contactSheetColumns(frameCount)
	rows := (frameCount + cols - 1) / cols
	fps := 1.0
	if durationSeconds > 0 {
		fps = float64(frameCount) / durationSeconds
	}
	filter := fmt.Sprintf("fps=%f,tile=%dx%d", fps, cols, rows)
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", inputPath,
		"-vf", filter,
		"-frames:v", "1",
		"-y",
		outputPath,
	)
	if err := cmd.Run(); err != nil {
		return xerrors.IO("failed to generate contact sheet", err, map[string]any{
			"input": inputPath, "frameCount": frameCount,
		})
	}
	return nil
}

// contactSheetColumns picks a near-square grid for frameCount tiles.
func contactSheetColumns(frameCount int) int {
	c := 1
	for c*c < frameCount {
		c++
	}
	return c
}
