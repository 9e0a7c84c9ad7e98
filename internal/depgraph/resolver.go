// SPDX-License-Identifier: MPL-2.0

package depgraph

import (
	"slices"

	"github.com/bleepbuild/bleep/internal/dag"
	"github.com/bleepbuild/bleep/internal/workspace"
)

// Resolver pairs a registry with its edge table. It is the single context
// object passed to every component that needs module lookups; it is never
// mutated after NewResolver returns.
type Resolver struct {
	registry *workspace.Registry
	table    *Table
}

// NewResolver builds and verifies the edge table for reg.
func NewResolver(reg *workspace.Registry) (*Resolver, error) {
	t := Build(reg)
	if err := t.Verify(); err != nil {
		return nil, err
	}
	return &Resolver{registry: reg, table: t}, nil
}

// Registry returns the module registry.
func (r *Resolver) Registry() *workspace.Registry { return r.registry }

// Table returns the dependency edge table.
func (r *Resolver) Table() *Table { return r.table }

// ResolveOne expands name into its transitive closure, each dependency
// before anything that depends on it and name itself last. Unknown names
// resolve to nothing.
func (r *Resolver) ResolveOne(name string) ([]*workspace.Module, error) {
	return r.ResolveMany([]string{name})
}

// ResolveMany unions the closures of names in request order, keeping the
// first occurrence of every module.
func (r *Resolver) ResolveMany(names []string) ([]*workspace.Module, error) {
	c := collector{
		table:    r.table,
		done:     make(map[string]bool),
		visiting: make(map[string]bool),
	}
	for _, name := range names {
		if err := c.collect(name); err != nil {
			return nil, err
		}
	}

	mods := make([]*workspace.Module, 0, len(c.order))
	for _, name := range c.order {
		if m, ok := r.registry.Get(name); ok && !slices.Contains(mods, m) {
			mods = append(mods, m)
		}
	}
	return mods, nil
}

// collector performs the post-order walk. A name already collected is
// skipped: its whole closure is in order already, so first-seen positions
// match a walk that re-expands it.
type collector struct {
	table    *Table
	done     map[string]bool
	visiting map[string]bool
	path     []string
	order    []string
}

func (c *collector) collect(name string) error {
	if c.done[name] {
		return nil
	}
	if c.visiting[name] {
		start := slices.Index(c.path, name)
		return &dag.CycleError{Cycle: append(slices.Clone(c.path[start:]), name)}
	}

	c.visiting[name] = true
	c.path = append(c.path, name)
	for _, dep := range c.table.edges[name] {
		if err := c.collect(dep); err != nil {
			return err
		}
	}
	c.path = c.path[:len(c.path)-1]
	delete(c.visiting, name)

	c.done[name] = true
	c.order = append(c.order, name)
	return nil
}
