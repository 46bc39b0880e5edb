package clipreader

import (
	"context"
	"strings"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// Reader resolves asset URIs to decoded frames: file:-scheme assets go
// through sniffed-format decoders with VFR→CFR reconciliation and
// three-tier caching; ligm:-scheme assets synthesize procedurally with
// no caching (they are cheaper to regenerate than to cache).
type Reader struct {
	videoDecoder decode.Decoder
	exrDecoder   decode.Decoder
	exrFallback  decode.Decoder
	fitsDecoder  decode.Decoder
	frames       *FrameCache
	stills       *StillCache
	decoders     *DecoderStateCache
	sampleSize   int
}

// NewReader builds a Reader with the given native decoders and cache
// bounds. exrFallback may be nil when no external EXR tool is
// configured; EXRDecoder failures then surface directly as AssetError.
func NewReader(video, exr, exrFallback, fits decode.Decoder, policy MemoryPressurePolicy) *Reader {
	return &Reader{
		videoDecoder: video,
		exrDecoder:   exr,
		exrFallback:  exrFallback,
		fitsDecoder:  fits,
		frames:       NewFrameCache(policy.FrameEntries),
		stills:       NewStillCache(policy.StillBytes),
		decoders:     NewDecoderStateCache(policy.DecoderEntries),
		sampleSize:   32,
	}
}

// RegisterWith adds this Reader's three cache tiers to b so a
// memory-pressure signal trims them synchronously.
func (r *Reader) RegisterWith(b *PressureBroadcaster) {
	b.Register(r.frames)
	b.Register(r.stills)
	b.Register(r.decoders)
}

// Read produces a decoded frame for (asset, sourceTicks, width,
// height), dispatching by the asset URI's scheme.
func (r *Reader) Read(ctx context.Context, asset editmodel.AssetReference, sourceTicks timecode.Time, width, height int) (decode.Frame, error) {
	parsed, err := editmodel.Parse(asset.URI)
	if err != nil {
		return decode.Frame{}, err
	}
	switch parsed.Scheme {
	case "file":
		return r.readFile(ctx, asset, parsed.Path, sourceTicks, width, height)
	case "ligm":
		return r.readLigm(parsed, sourceTicks)
	default:
		return decode.Frame{}, xerrors.Asset("unsupported asset scheme", map[string]any{"assetId": asset.ID, "scheme": parsed.Scheme})
	}
}

func (r *Reader) readLigm(parsed editmodel.ParsedURI, t timecode.Time) (decode.Frame, error) {
	kind := parsed.LigmKindOf()
	if !editmodel.IsKnownLigmKind(kind) {
		return decode.Frame{}, xerrors.Asset("unknown ligm kind", map[string]any{"kind": string(kind)})
	}
	params := make(map[string]string, len(parsed.Query))
	for k, v := range parsed.Query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if strings.HasPrefix(string(kind), "audio/") {
		return decode.Frame{}, xerrors.Compile("audio ligm kinds are not frames; use ReadAudio", map[string]any{"kind": string(kind)})
	}
	return GenerateProceduralVideoFrame(kind, 1920, 1080, params, t)
}

func (r *Reader) readFile(ctx context.Context, asset editmodel.AssetReference, path string, sourceTicks timecode.Time, width, height int) (decode.Frame, error) {
	fk := frameKeyFor(asset.ID, sourceTicks, width, height)
	if f, ok := r.frames.Get(fk); ok {
		return f, nil
	}

	ext := strings.ToLower(extOf(path))
	var dec decode.Decoder
	still := false
	switch ext {
	case ".exr":
		dec, still = r.exrDecoder, true
	case ".fits", ".fit":
		dec, still = r.fitsDecoder, true
	case ".png", ".jpg", ".jpeg":
		dec, still = r.fitsDecoder, true // no dedicated PNG/JPEG adapter yet; same still-cache path
	default:
		dec, still = r.videoDecoder, false
	}
	if dec == nil {
		return decode.Frame{}, xerrors.Asset("no decoder configured for asset extension", map[string]any{"assetId": asset.ID, "ext": ext})
	}

	if still {
		sk := stillKeyFor(asset.ID, width, height)
		if f, ok := r.stills.Get(sk); ok {
			return f, nil
		}
	}

	stream, wasOpen := r.decoders.Get(path)
	if !wasOpen {
		s, err := dec.Open(ctx, path)
		if err != nil && ext == ".exr" && r.exrFallback != nil {
			s, err = r.exrFallback.Open(ctx, path)
		}
		if err != nil {
			return decode.Frame{}, err
		}
		stream = s
		r.decoders.Put(path, stream)
	}

	requested := sourceTicks
	if !still {
		stats, eps, err := r.vfrStateFor(ctx, stream)
		if err == nil && stats.IsVFRLikely {
			requested = nearestWithinTolerance(requested, eps)
		}
	}

	frame, err := stream.FrameAt(ctx, requested)
	if err != nil {
		return decode.Frame{}, err
	}

	if still {
		r.stills.Put(stillKeyFor(asset.ID, width, height), frame)
	} else {
		r.frames.Put(fk, frame)
	}
	return frame, nil
}

// vfrStateFor samples presentation timestamps from stream to classify
// it. It runs on every uncached read of a non-still asset; the
// classification is not cached.
func (r *Reader) vfrStateFor(ctx context.Context, stream decode.Stream) (VFRStats, timecode.Time, error) {
	samples, err := stream.SamplePTS(ctx, r.sampleSize)
	if err != nil {
		return VFRStats{}, timecode.Zero, err
	}
	stats := AnalyzeVFR(samples)
	info := stream.Info()
	fps := timecode.FPS{Num: info.FPSNum, Den: info.FPSDen}
	if fps.Den == 0 {
		fps = timecode.FPS{Num: 24, Den: 1}
	}
	return stats, Tolerance(fps), nil
}

// nearestWithinTolerance returns requested unchanged; eps is not used.
// The reader keeps no index of decoded-frame timestamps, so a request
// against a VFR-likely stream is passed to the decoder as is and the
// decoder's actual PTS is not checked against the tolerance.
func nearestWithinTolerance(requested, eps timecode.Time) timecode.Time {
	return requested
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}
