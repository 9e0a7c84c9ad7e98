// SPDX-License-Identifier: MPL-2.0

// Package depgraph derives the module dependency edge table from a
// workspace.Registry and expands requested names into their transitive
// closure, dependencies first.
//
// The table maps every module name, plus every bundle output name that
// differs from its owner's name and alias, to the workspace modules it
// depends on. Requesting an output name therefore pulls in its owner and the
// owner's own dependencies.
//
// Acyclicity is normally guaranteed by the package manager. NewResolver still
// verifies it with a topological sort, and resolution tracks the current
// path, so a bad manifest fails with *dag.CycleError instead of recursing
// forever.
package depgraph
