// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"slices"

	"github.com/bleepbuild/bleep/internal/dag"
	"github.com/bleepbuild/bleep/internal/workspace"
)

// Table is the read-only dependency edge table.
type Table struct {
	edges map[string][]string
	keys  []string
}

// Build computes a fresh edge table for reg.
//
// A module's edges are its manifest dependencies that are registered modules,
// in declaration order. External packages are dropped. A bundle output whose
// name is neither its owner's name nor alias gets a synthetic entry
// [owner, owner's edges...]. Output names that collide with another module's
// name are not registered, so they cannot shadow that module's edges.
func Build(reg *workspace.Registry) *Table {
	t := &Table{edges: make(map[string][]string, reg.Len())}

	for _, mod := range reg.Modules() {
		var deps []string
		for _, dep := range mod.Dependencies {
			if reg.Has(dep) && !slices.Contains(deps, dep) {
				deps = append(deps, dep)
			}
		}
		t.set(mod.Name, deps)
	}

	for _, mod := range reg.Modules() {
		names := mod.Names()
		for _, b := range mod.Bundles {
			if b.Output == "" || slices.Contains(names, b.Output) || reg.Has(b.Output) {
				continue
			}
			t.set(b.Output, append([]string{mod.Name}, t.edges[mod.Name]...))
		}
	}

	return t
}

func (t *Table) set(name string, deps []string) {
	if _, ok := t.edges[name]; !ok {
		t.keys = append(t.keys, name)
	}
	t.edges[name] = deps
}

// Edges returns the dependency names recorded for name.
func (t *Table) Edges(name string) ([]string, bool) {
	deps, ok := t.edges[name]
	return slices.Clone(deps), ok
}

// Verify fails with *dag.CycleError when the table contains a loop.
func (t *Table) Verify() error {
	g := dag.New()
	for _, name := range t.keys {
		g.AddNode(name)
		for _, dep := range t.edges[name] {
			g.AddEdge(dep, name)
		}
	}
	_, err := g.TopologicalSort()
	return err
}
