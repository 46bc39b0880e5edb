package audiomix

import (
	"context"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/clipreader"
	"github.com/metavis/renderengine/internal/xerrors"
)

// DefaultAssetSource resolves ligm procedural audio clips directly at
// the caller's target sample rate. No audio decoder adapter is wired
// into decode.Decoder's closed catalog in this build (it covers
// image/video codecs only; see internal/clipreader), so a file-scheme
// clip contributes silence rather than failing the whole mix — the
// same per-asset isolation the Clip Reader applies to a single bad
// frame, generalized to audio.
type DefaultAssetSource struct{}

func (DefaultAssetSource) ReadSamples(ctx context.Context, asset editmodel.AssetReference, startSeconds, durationSeconds float64, sampleRate int) ([]float32, error) {
	parsed, err := editmodel.Parse(asset.URI)
	if err != nil {
		return nil, err
	}

	switch parsed.Scheme {
	case "ligm":
		kind := parsed.LigmKindOf()
		if !editmodel.IsKnownLigmKind(kind) {
			return nil, xerrors.Asset("unknown ligm audio kind", map[string]any{"assetId": asset.ID, "kind": string(kind)})
		}
		params := make(map[string]string, len(parsed.Query))
		for k, v := range parsed.Query {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		return clipreader.GenerateProceduralAudio(kind, params, startSeconds, durationSeconds, sampleRate)
	case "file":
		n := int(durationSeconds * float64(sampleRate))
		if n < 0 {
			n = 0
		}
		return make([]float32, n*2), nil
	default:
		return nil, xerrors.Asset("unsupported audio asset scheme", map[string]any{"assetId": asset.ID, "scheme": parsed.Scheme})
	}
}
