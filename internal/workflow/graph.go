// Package workflow runs named steps as a dependency graph: steps execute
// after their dependencies succeed, independent branches run in parallel,
// and completed steps are recorded so a rerun of the same run ID resumes
// where it stopped.
package workflow

import (
	"context"
	"fmt"
	"sort"
)

type StepFunc func(ctx context.Context) error

type step struct {
	name string
	deps []string
	fn   StepFunc
}

type Graph struct {
	steps map[string]*step
}

func NewGraph() *Graph {
	return &Graph{steps: map[string]*step{}}
}

// AddStep registers a step. Dependencies must already be registered, which
// keeps a graph acyclic by construction for the common case; Order still
// verifies the full graph.
func (g *Graph) AddStep(name string, fn StepFunc, deps ...string) error {
	if name == "" {
		return fmt.Errorf("empty step name")
	}
	if fn == nil {
		return fmt.Errorf("step %s: nil func", name)
	}
	if _, exists := g.steps[name]; exists {
		return fmt.Errorf("step %s already registered", name)
	}
	for _, dep := range deps {
		if _, ok := g.steps[dep]; !ok {
			return fmt.Errorf("step %s: unknown dependency %s", name, dep)
		}
	}
	g.steps[name] = &step{name: name, deps: append([]string(nil), deps...), fn: fn}
	return nil
}

func (g *Graph) Len() int {
	return len(g.steps)
}

// Order returns a topological order of the steps. Ties are broken by name
// so the order is deterministic for a given graph.
func (g *Graph) Order() ([]string, error) {
	waiting := make(map[string]int, len(g.steps))
	dependents := make(map[string][]string, len(g.steps))
	for _, st := range g.steps {
		waiting[st.name] = len(st.deps)
		for _, dep := range st.deps {
			dependents[dep] = append(dependents[dep], st.name)
		}
	}

	var ready []string
	for name, n := range waiting {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.steps))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)

		released := false
		for _, dependent := range dependents[name] {
			waiting[dependent]--
			if waiting[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.steps) {
		var stuck []string
		for name, n := range waiting {
			if n > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle involving step %s", stuck[0])
	}
	return order, nil
}
