package sidecar

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/metavis/renderengine/internal/xerrors"
	"github.com/metavis/renderengine/pkg/fsadapter"
)

// Kind enumerates the sidecar kinds spec §4.5 names.
type Kind string

const (
	KindCaptionsVTT         Kind = "CaptionsVTT"
	KindCaptionsSRT         Kind = "CaptionsSRT"
	KindTranscriptWordsJSON Kind = "TranscriptWordsJSON"
	KindThumbnailJPEG       Kind = "ThumbnailJPEG"
	KindContactSheetJPEG    Kind = "ContactSheetJPEG"
)

// fileNames maps each Kind to its canonical bundle-relative file name
// per spec §6's deliverable bundle layout.
var fileNames = map[Kind]string{
	KindCaptionsVTT:         "captions.vtt",
	KindCaptionsSRT:         "captions.srt",
	KindTranscriptWordsJSON: "transcript_words.json",
	KindThumbnailJPEG:       "thumbnail.jpg",
	KindContactSheetJPEG:    "contact_sheet.jpg",
}

// FileName returns k's canonical bundle-relative file name.
func (k Kind) FileName() string { return fileNames[k] }

// Request describes one sidecar the Deliverable Orchestrator wants
// written alongside a deliverable.
type Request struct {
	Kind     Kind
	Required bool

	// Caption/transcript sources, tried in order: InlineCues wins, else
	// SourcePath is read and parsed by its extension, else
	// DiscoveredPath (found via Discover) is used.
	InlineCues     []Cue
	SourcePath     string
	DiscoveredPath string

	// Thumbnail / contact sheet.
	VideoPath         string
	TimeOffsetSeconds float64
	FrameCount        int
	DurationSeconds   float64
}

// Result reports what a Writer produced for one Request.
type Result struct {
	Kind    Kind
	Path    string
	Present bool
}

// Writer produces sidecar files inside a deliverable's staging
// directory.
type Writer struct {
	fs         fsadapter.FileSystemAdapter
	ffmpegPath string
}

func NewWriter(fs fsadapter.FileSystemAdapter, ffmpegPath string) *Writer {
	return &Writer{fs: fs, ffmpegPath: ffmpegPath}
}

// Write produces req's sidecar inside outDir. A missing optional source
// yields Result{Present: false}; a missing required source errors, per
// spec §4.5 ("missing required sidecars fail the publish").
func (w *Writer) Write(ctx context.Context, req Request, outDir string) (Result, error) {
	outPath := filepath.Join(outDir, req.Kind.FileName())
	switch req.Kind {
	case KindCaptionsVTT, KindCaptionsSRT:
		return w.writeCaptions(req, outPath)
	case KindTranscriptWordsJSON:
		return w.writeTranscript(req, outPath)
	case KindThumbnailJPEG:
		return w.writeThumbnail(ctx, req, outPath)
	case KindContactSheetJPEG:
		return w.writeContactSheet(ctx, req, outPath)
	default:
		return Result{}, xerrors.Engine("unknown sidecar kind", map[string]any{"kind": string(req.Kind)})
	}
}

func (w *Writer) resolveCues(req Request) ([]Cue, bool, error) {
	if len(req.InlineCues) > 0 {
		return req.InlineCues, true, nil
	}
	path := req.SourcePath
	if path == "" {
		path = req.DiscoveredPath
	}
	if path == "" {
		return nil, false, nil
	}
	data, err := w.fs.ReadFile(path)
	if err != nil {
		return nil, false, nil
	}
	if strings.HasSuffix(path, ".srt") {
		cues, err := ParseSRT(data)
		if err != nil {
			return nil, false, xerrors.Asset("failed to parse SRT caption source", map[string]any{
				"path": path, "cause": err.Error(),
			})
		}
		return cues, true, nil
	}
	cues, err := ParseVTT(data)
	if err != nil {
		return nil, false, xerrors.Asset("failed to parse WebVTT caption source", map[string]any{
			"path": path, "cause": err.Error(),
		})
	}
	return cues, true, nil
}

func (w *Writer) writeCaptions(req Request, outPath string) (Result, error) {
	cues, ok, err := w.resolveCues(req)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if req.Required {
			return Result{}, xerrors.Asset("required caption sidecar has no source", map[string]any{"kind": string(req.Kind)})
		}
		return Result{Kind: req.Kind, Present: false}, nil
	}
	var data []byte
	if req.Kind == KindCaptionsSRT {
		data = WriteSRT(cues)
	} else {
		data = WriteVTT(cues)
	}
	if err := w.fs.WriteFile(outPath, data); err != nil {
		return Result{}, xerrors.IO("failed to write caption sidecar", err, nil)
	}
	return Result{Kind: req.Kind, Path: outPath, Present: true}, nil
}

func (w *Writer) writeTranscript(req Request, outPath string) (Result, error) {
	cues, ok, err := w.resolveCues(req)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		if req.Required {
			return Result{}, xerrors.Asset("required transcript sidecar has no source", nil)
		}
		return Result{Kind: req.Kind, Present: false}, nil
	}
	transcript := BuildTranscriptFromCues(cues)
	data, err := json.Marshal(transcript)
	if err != nil {
		return Result{}, xerrors.Engine("failed to marshal transcript", map[string]any{"cause": err.Error()})
	}
	if err := w.fs.WriteFile(outPath, data); err != nil {
		return Result{}, xerrors.IO("failed to write transcript sidecar", err, nil)
	}
	return Result{Kind: req.Kind, Path: outPath, Present: true}, nil
}

func (w *Writer) writeThumbnail(ctx context.Context, req Request, outPath string) (Result, error) {
	if req.VideoPath == "" {
		if req.Required {
			return Result{}, xerrors.Asset("required thumbnail sidecar has no source video", nil)
		}
		return Result{Kind: req.Kind, Present: false}, nil
	}
	if err := GenerateThumbnail(ctx, w.ffmpegPath, req.VideoPath, outPath, req.TimeOffsetSeconds); err != nil {
		return Result{}, err
	}
	return Result{Kind: req.Kind, Path: outPath, Present: true}, nil
}

func (w *Writer) writeContactSheet(ctx context.Context, req Request, outPath string) (Result, error) {
	if req.VideoPath == "" {
		if req.Required {
			return Result{}, xerrors.Asset("required contact sheet sidecar has no source video", nil)
		}
		return Result{Kind: req.Kind, Present: false}, nil
	}
	frameCount := req.FrameCount
	if frameCount <= 0 {
		frameCount = 9
	}
	if err := GenerateContactSheet(ctx, w.ffmpegPath, req.VideoPath, outPath, frameCount, req.DurationSeconds); err != nil {
		return Result{}, err
	}
	return Result{Kind: req.Kind, Path: outPath, Present: true}, nil
}

// Discover finds a sidecar caption file sibling to a source video at
// videoPath, named "<base>.captions.vtt" or "<base>.captions.srt" per
// spec §8's sidecar-discovery scenario. VTT is preferred when both
// exist.
func Discover(fs fsadapter.FileSystemAdapter, videoPath string) (path string, found bool) {
	dir := filepath.Dir(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	vttPath := filepath.Join(dir, base+".captions.vtt")
	if fs.Exists(vttPath) {
		return vttPath, true
	}
	srtPath := filepath.Join(dir, base+".captions.srt")
	if fs.Exists(srtPath) {
		return srtPath, true
	}
	return "", false
}
