package workflow

import (
	"context"
	"testing"
)

func noop(ctx context.Context) error { return nil }

func TestGraph_AddStep(t *testing.T) {
	g := NewGraph()
	if err := g.AddStep("a", noop); err != nil {
		t.Fatalf("AddStep(a) = %v", err)
	}
	if err := g.AddStep("b", noop, "a"); err != nil {
		t.Fatalf("AddStep(b) = %v", err)
	}

	if err := g.AddStep("a", noop); err == nil {
		t.Error("AddStep accepted a duplicate step")
	}
	if err := g.AddStep("c", noop, "missing"); err == nil {
		t.Error("AddStep accepted an unknown dependency")
	}
	if err := g.AddStep("", noop); err == nil {
		t.Error("AddStep accepted an empty name")
	}
	if err := g.AddStep("d", nil); err == nil {
		t.Error("AddStep accepted a nil func")
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
}

func TestGraph_Order(t *testing.T) {
	g := NewGraph()
	mustAdd := func(name string, deps ...string) {
		t.Helper()
		if err := g.AddStep(name, noop, deps...); err != nil {
			t.Fatalf("AddStep(%s) = %v", name, err)
		}
	}
	mustAdd("fetch")
	mustAdd("metadata", "fetch")
	mustAdd("thumbnail", "fetch")
	mustAdd("schedule", "metadata", "thumbnail")

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order() = %v", err)
	}

	pos := map[string]int{}
	for i, name := range order {
		pos[name] = i
	}
	if len(order) != 4 {
		t.Fatalf("Order() returned %d steps, want 4", len(order))
	}
	for _, dep := range []struct{ before, after string }{
		{"fetch", "metadata"},
		{"fetch", "thumbnail"},
		{"metadata", "schedule"},
		{"thumbnail", "schedule"},
	} {
		if pos[dep.before] >= pos[dep.after] {
			t.Errorf("Order() = %v: %s not before %s", order, dep.before, dep.after)
		}
	}

	// Ties break by name: metadata before thumbnail.
	if pos["metadata"] >= pos["thumbnail"] {
		t.Errorf("Order() = %v: tie not broken by name", order)
	}
}

func TestGraph_OrderDeterministic(t *testing.T) {
	build := func() *Graph {
		g := NewGraph()
		for _, name := range []string{"c", "a", "b"} {
			if err := g.AddStep(name, noop); err != nil {
				t.Fatalf("AddStep(%s) = %v", name, err)
			}
		}
		return g
	}
	first, err := build().Order()
	if err != nil {
		t.Fatalf("Order() = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := build().Order()
		if err != nil {
			t.Fatalf("Order() = %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("Order() not deterministic: %v vs %v", first, again)
			}
		}
	}
}

func TestGraph_Cycle(t *testing.T) {
	// AddStep refuses forward references, so build the cycle directly.
	g := NewGraph()
	g.steps["a"] = &step{name: "a", deps: []string{"b"}, fn: noop}
	g.steps["b"] = &step{name: "b", deps: []string{"a"}, fn: noop}

	if _, err := g.Order(); err == nil {
		t.Error("Order() accepted a cyclic graph")
	}
}
