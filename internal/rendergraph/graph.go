// Package rendergraph defines the closed catalog of render node kinds
// and the directed acyclic graph they are wired into by the Timeline
// Compiler. A Graph is pure data: building one never touches the GPU;
// internal/gpuexec walks an already-validated Graph to dispatch work.
package rendergraph

import (
	"sort"

	"github.com/metavis/renderengine/internal/xerrors"
)

// Kind is a closed enum of the node types the GPU Executor knows how to
// dispatch. Adding a new effect means adding a Kind here and a matching
// case in gpuexec's dispatch switch; there is no plugin mechanism.
type Kind string

const (
	KindSourceTexture    Kind = "SourceTexture"
	KindSourceProcedural Kind = "SourceProcedural"
	KindIDT              Kind = "IDT"
	KindODT              Kind = "ODT"
	KindColorCDL         Kind = "ColorCDL"
	KindToneMapACES      Kind = "ToneMapACES"
	KindLUT3D            Kind = "LUT3D"
	KindFalseColor       Kind = "FalseColor"
	KindComposite        Kind = "Composite"
	KindCrossfade        Kind = "Crossfade"
	KindDip              Kind = "Dip"
	KindWipe             Kind = "Wipe"
	KindRetime           Kind = "Retime"
	KindWatermark        Kind = "Watermark"
	KindBlackFill        Kind = "BlackFill"
)

var knownKinds = map[Kind]bool{
	KindSourceTexture: true, KindSourceProcedural: true, KindIDT: true,
	KindODT: true, KindColorCDL: true, KindToneMapACES: true,
	KindLUT3D: true, KindFalseColor: true, KindComposite: true,
	KindCrossfade: true, KindDip: true, KindWipe: true, KindRetime: true,
	KindWatermark: true, KindBlackFill: true,
}

// IsKnownKind reports whether kind is in the closed node catalog.
func IsKnownKind(kind Kind) bool { return knownKinds[kind] }

// NodeID identifies a node within a single Graph. IDs are assigned by
// the compiler and are only meaningful within that graph.
type NodeID string

// Param is a closed union over the scalar/vector parameter values a
// node can carry (mirrors editmodel.NodeValue, one layer down). Int is
// distinct from Float so tick counts (exact int64s) never round-trip
// through a float64 representation.
type Param struct {
	Float  float64
	Int    int64
	String string
	Bool   bool
	Vec3   [3]float64
}

// Node is one instruction in the render graph: a kind, its static
// parameters, and the node IDs feeding its input slots in declared
// order (slot 0 is the primary input).
type Node struct {
	ID     NodeID
	Kind   Kind
	Params map[string]Param
	Inputs []NodeID
}

// Graph is a directed acyclic graph of Nodes, built bottom-up by the
// compiler: one subgraph per clip feeding into Composite/Crossfade/Dip/
// Wipe blend nodes, terminating in exactly one ODT sink.
type Graph struct {
	Nodes map[NodeID]*Node
}

// New returns an empty Graph ready for AddNode calls.
func New() *Graph { return &Graph{Nodes: make(map[NodeID]*Node)} }

// AddNode inserts node into the graph. It is a compile-time error (not
// a panic) to add a node with a duplicate ID or an unknown Kind.
func (g *Graph) AddNode(n Node) error {
	if !IsKnownKind(n.Kind) {
		return xerrors.Compile("unknown render node kind", map[string]any{"kind": string(n.Kind), "nodeId": string(n.ID)})
	}
	if _, exists := g.Nodes[n.ID]; exists {
		return xerrors.Compile("duplicate render node id", map[string]any{"nodeId": string(n.ID)})
	}
	nodeCopy := n
	g.Nodes[n.ID] = &nodeCopy
	return nil
}

// outEdges returns, for every node, the set of nodes that consume its
// output (the reverse of Inputs).
func (g *Graph) outEdges() map[NodeID][]NodeID {
	out := make(map[NodeID][]NodeID, len(g.Nodes))
	for id := range g.Nodes {
		out[id] = nil
	}
	// Iterate in a stable order so any error path that inspects partial
	// state is deterministic.
	ids := g.sortedIDs()
	for _, id := range ids {
		for _, in := range g.Nodes[id].Inputs {
			out[in] = append(out[in], id)
		}
	}
	return out
}

func (g *Graph) sortedIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TopoSort returns the node IDs of g in a deterministic dependency
// order (every node appears after all nodes it depends on), using
// Kahn's algorithm with a sorted-ID tie-break so the result is stable
// across runs for identical graphs. It fails with a CompileError if
// the graph contains a cycle or references an undeclared input node.
func (g *Graph) TopoSort() ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.Nodes))
	for id := range g.Nodes {
		inDegree[id] = 0
	}
	for _, id := range g.sortedIDs() {
		for _, in := range g.Nodes[id].Inputs {
			if _, ok := g.Nodes[in]; !ok {
				return nil, xerrors.Compile("render graph references undeclared input node", map[string]any{
					"nodeId": string(id), "missingInput": string(in),
				})
			}
			inDegree[id]++
		}
	}

	out := g.outEdges()

	var ready []NodeID
	for _, id := range g.sortedIDs() {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var order []NodeID
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := append([]NodeID(nil), out[id]...)
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		for _, n := range next {
			inDegree[n]--
			if inDegree[n] == 0 {
				ready = append(ready, n)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, xerrors.Compile("render graph contains a cycle", map[string]any{
			"nodeCount": len(g.Nodes), "orderedCount": len(order),
		})
	}
	return order, nil
}

// Validate runs TopoSort (acyclicity + referential integrity) and
// additionally enforces the single-ODT-sink invariant: exactly one
// node of kind ODT, and it must have no consumers (it is the terminal
// output of the graph).
func (g *Graph) Validate() ([]NodeID, error) {
	order, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	out := g.outEdges()
	var odtIDs []NodeID
	for _, id := range g.sortedIDs() {
		if g.Nodes[id].Kind == KindODT {
			odtIDs = append(odtIDs, id)
		}
	}
	if len(odtIDs) != 1 {
		return nil, xerrors.Compile("render graph must have exactly one ODT sink", map[string]any{
			"odtNodeCount": len(odtIDs),
		})
	}
	if len(out[odtIDs[0]]) != 0 {
		return nil, xerrors.Compile("ODT sink node must not feed another node", map[string]any{
			"odtNodeId": string(odtIDs[0]), "consumerCount": len(out[odtIDs[0]]),
		})
	}
	return order, nil
}

// Sink returns the graph's single ODT node. Callers should only invoke
// this after a successful Validate.
func (g *Graph) Sink() *Node {
	for _, id := range g.sortedIDs() {
		if g.Nodes[id].Kind == KindODT {
			return g.Nodes[id]
		}
	}
	return nil
}
