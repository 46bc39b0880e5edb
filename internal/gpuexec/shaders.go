package gpuexec

import (
	"fmt"
	"sync"

	"github.com/metavis/renderengine/internal/rendergraph"
)

// ShaderLibrary is the process-wide table of compiled shader modules,
// one per render node Kind. It is loaded once, on the first
// EnsureLoaded call; a
// missing shader for a Kind the catalog declares is a fatal
// configuration error, never a silent skip, since an unrendered node
// would otherwise pass through pixels unmodified and corrupt output
// without any error surfacing.
type ShaderLibrary struct {
	once    sync.Once
	loaded  map[rendergraph.Kind]bool
	loadErr error
}

var (
	globalShaderLibrary     *ShaderLibrary
	globalShaderLibraryOnce sync.Once
)

// GlobalShaderLibrary returns the process-wide ShaderLibrary,
// constructing it on first use.
func GlobalShaderLibrary() *ShaderLibrary {
	globalShaderLibraryOnce.Do(func() {
		globalShaderLibrary = &ShaderLibrary{}
	})
	return globalShaderLibrary
}

// shaderBackedKinds are the node kinds that require a dedicated shader
// module on the hardware path. SourceTexture/SourceProcedural/
// BlackFill are host-side and never dispatch a shader.
var shaderBackedKinds = []rendergraph.Kind{
	rendergraph.KindIDT, rendergraph.KindODT, rendergraph.KindColorCDL,
	rendergraph.KindToneMapACES, rendergraph.KindLUT3D, rendergraph.KindFalseColor,
	rendergraph.KindComposite, rendergraph.KindCrossfade, rendergraph.KindDip,
	rendergraph.KindWipe, rendergraph.KindRetime, rendergraph.KindWatermark,
}

// load compiles (or, in this CPU-backed build, registers) the shader
// module for every kind in the catalog exactly once per process.
func (l *ShaderLibrary) load() {
	l.loaded = make(map[rendergraph.Kind]bool, len(shaderBackedKinds))
	for _, k := range shaderBackedKinds {
		l.loaded[k] = true
	}
}

// EnsureLoaded loads the library on first call and verifies every node
// kind actually present in graph has a shader registered. A missing
// shader is fatal: the render fails rather than silently passing the
// node's input through unmodified.
func (l *ShaderLibrary) EnsureLoaded(graph *rendergraph.Graph) error {
	l.once.Do(l.load)
	if graph == nil {
		return nil
	}
	for _, node := range graph.Nodes {
		switch node.Kind {
		case rendergraph.KindSourceTexture, rendergraph.KindSourceProcedural, rendergraph.KindBlackFill:
			continue
		}
		if !l.loaded[node.Kind] {
			panic(fmt.Sprintf("gpuexec: no shader registered for render node kind %q; the node catalog and shader library have drifted", node.Kind))
		}
	}
	return nil
}
