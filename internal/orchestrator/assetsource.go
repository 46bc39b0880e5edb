package orchestrator

import (
	"context"
	"strings"

	"github.com/metavis/renderengine/editmodel"
	"github.com/metavis/renderengine/internal/clipreader"
	"github.com/metavis/renderengine/internal/decode"
	"github.com/metavis/renderengine/internal/rendergraph"
	"github.com/metavis/renderengine/internal/timecode"
	"github.com/metavis/renderengine/internal/xerrors"
)

// assetIndex adapts a Timeline's clips and a clipreader.Reader into the
// gpuexec.AssetSource interface the GPU Executor's SourceTexture/
// SourceProcedural nodes call back into. The render graph only carries
// a clip's stable assetId (not its full URI) on SourceTexture nodes, so
// the index resolves assetId -> editmodel.AssetReference once per run
// from the timeline's own clips.
type assetIndex struct {
	byAssetID     map[string]editmodel.AssetReference
	reader        *clipreader.Reader
	width, height int
}

// newAssetIndex builds the assetId -> AssetReference table from every
// video-track clip in tl (the compiler never reaches into an audio-only
// clip's video source).
func newAssetIndex(tl editmodel.Timeline, reader *clipreader.Reader, width, height int) *assetIndex {
	idx := &assetIndex{byAssetID: make(map[string]editmodel.AssetReference), reader: reader, width: width, height: height}
	for _, track := range tl.VideoTracks() {
		for _, clip := range track.Clips {
			idx.byAssetID[clip.Asset.ID] = clip.Asset
		}
	}
	return idx
}

// ReadFrame implements gpuexec.AssetSource.
func (a *assetIndex) ReadFrame(ctx context.Context, node *rendergraph.Node, t timecode.Time) (decode.Frame, error) {
	switch node.Kind {
	case rendergraph.KindSourceProcedural:
		kind := editmodel.LigmKind(node.Params["kind"].String)
		params := make(map[string]string)
		for key, p := range node.Params {
			if strings.HasPrefix(key, "q_") {
				params[strings.TrimPrefix(key, "q_")] = p.String
			}
		}
		return clipreader.GenerateProceduralVideoFrame(kind, a.width, a.height, params, t)
	case rendergraph.KindSourceTexture:
		assetID := node.Params["assetId"].String
		ref, ok := a.byAssetID[assetID]
		if !ok {
			return decode.Frame{}, xerrors.Asset("render graph references an unknown asset id", map[string]any{
				"assetId": assetID, "nodeId": string(node.ID),
			})
		}
		sourceTicks := timecode.FromTicks(node.Params["sourceTicks"].Int)
		return a.reader.Read(ctx, ref, sourceTicks, a.width, a.height)
	default:
		return decode.Frame{}, xerrors.Engine("asset index asked to resolve a non-source node", map[string]any{
			"kind": string(node.Kind),
		})
	}
}
