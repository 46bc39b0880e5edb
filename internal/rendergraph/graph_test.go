package rendergraph

import "testing"

func linearGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	must(g.AddNode(Node{ID: "src", Kind: KindSourceTexture}))
	must(g.AddNode(Node{ID: "idt", Kind: KindIDT, Inputs: []NodeID{"src"}}))
	must(g.AddNode(Node{ID: "cdl", Kind: KindColorCDL, Inputs: []NodeID{"idt"}}))
	must(g.AddNode(Node{ID: "odt", Kind: KindODT, Inputs: []NodeID{"cdl"}}))
	return g
}

func TestValidateAcceptsLinearChain(t *testing.T) {
	g := linearGraph(t)
	order, err := g.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []NodeID{"src", "idt", "cdl", "odt"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i, id := range want {
		if order[i] != id {
			t.Errorf("order[%d] = %s, want %s", i, order[i], id)
		}
	}
}

func TestValidateRejectsCycle(t *testing.T) {
	g := New()
	_ = g.AddNode(Node{ID: "a", Kind: KindColorCDL, Inputs: []NodeID{"b"}})
	_ = g.AddNode(Node{ID: "b", Kind: KindColorCDL, Inputs: []NodeID{"a"}})
	if _, err := g.Validate(); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestValidateRejectsUndeclaredInput(t *testing.T) {
	g := New()
	_ = g.AddNode(Node{ID: "odt", Kind: KindODT, Inputs: []NodeID{"ghost"}})
	if _, err := g.Validate(); err == nil {
		t.Fatal("expected undeclared input to be rejected")
	}
}

func TestValidateRejectsMissingODT(t *testing.T) {
	g := New()
	_ = g.AddNode(Node{ID: "src", Kind: KindSourceTexture})
	if _, err := g.Validate(); err == nil {
		t.Fatal("expected missing ODT sink to be rejected")
	}
}

func TestValidateRejectsMultipleODT(t *testing.T) {
	g := linearGraph(t)
	_ = g.AddNode(Node{ID: "odt2", Kind: KindODT, Inputs: []NodeID{"cdl"}})
	if _, err := g.Validate(); err == nil {
		t.Fatal("expected multiple ODT sinks to be rejected")
	}
}

func TestValidateRejectsODTWithConsumer(t *testing.T) {
	g := linearGraph(t)
	_ = g.AddNode(Node{ID: "dangling", Kind: KindWatermark, Inputs: []NodeID{"odt"}})
	if _, err := g.Validate(); err == nil {
		t.Fatal("expected ODT feeding another node to be rejected")
	}
}

func TestAddNodeRejectsUnknownKindAndDuplicateID(t *testing.T) {
	g := New()
	if err := g.AddNode(Node{ID: "x", Kind: Kind("Bogus")}); err == nil {
		t.Error("expected unknown kind to be rejected")
	}
	_ = g.AddNode(Node{ID: "y", Kind: KindSourceTexture})
	if err := g.AddNode(Node{ID: "y", Kind: KindSourceTexture}); err == nil {
		t.Error("expected duplicate id to be rejected")
	}
}

func TestValidateDeterministicOrderAcrossDiamond(t *testing.T) {
	build := func() *Graph {
		g := New()
		_ = g.AddNode(Node{ID: "srcA", Kind: KindSourceTexture})
		_ = g.AddNode(Node{ID: "srcB", Kind: KindSourceTexture})
		_ = g.AddNode(Node{ID: "comp", Kind: KindComposite, Inputs: []NodeID{"srcA", "srcB"}})
		_ = g.AddNode(Node{ID: "odt", Kind: KindODT, Inputs: []NodeID{"comp"}})
		return g
	}
	o1, err := build().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	o2, err := build().Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(o1) != len(o2) {
		t.Fatal("order length mismatch across identical builds")
	}
	for i := range o1 {
		if o1[i] != o2[i] {
			t.Fatalf("nondeterministic order: %v vs %v", o1, o2)
		}
	}
}
