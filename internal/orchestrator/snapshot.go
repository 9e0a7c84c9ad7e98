// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bleepbuild/bleep/internal/config"
	"github.com/bleepbuild/bleep/internal/dag"
	"github.com/bleepbuild/bleep/internal/depgraph"
	"github.com/bleepbuild/bleep/internal/issue"
	"github.com/bleepbuild/bleep/internal/runtime"
	"github.com/bleepbuild/bleep/internal/sequencer"
	"github.com/bleepbuild/bleep/internal/typecheck"
	"github.com/bleepbuild/bleep/internal/workspace"
)

// All selects every registered module without dependency resolution.
const All = "all"

// ErrUnknownModule is the sentinel wrapped by UnknownModuleError.
var ErrUnknownModule = errors.New("unknown module")

type (
	// UnknownModuleError lists requested names that are not registered modules.
	UnknownModuleError struct {
		Names []string
	}

	// Snapshot is everything one watch session is built from. A Snapshot is
	// never modified; a manifest change produces a new one.
	Snapshot struct {
		Resolver *depgraph.Resolver
		// Modules is the selection in dependency order.
		Modules []*workspace.Module
		// Plan is nil when the selection owns no bundles.
		Plan *sequencer.Plan
		// ProjectFile is the generated composite tsconfig, empty when the
		// type-checker is disabled.
		ProjectFile string
	}
)

func (e *UnknownModuleError) Error() string {
	quoted := make([]string, len(e.Names))
	for i, n := range e.Names {
		quoted[i] = "'" + n + "'"
	}
	return "unknown module " + strings.Join(quoted, ", ")
}

// Unwrap returns ErrUnknownModule for errors.Is compatibility.
func (e *UnknownModuleError) Unwrap() error { return ErrUnknownModule }

// Validate checks every requested name against the registry. The All
// keyword is always accepted.
func Validate(reg *workspace.Registry, names []string) error {
	var unknown []string
	for _, n := range names {
		if n != All && !reg.Has(n) && !slices.Contains(unknown, n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return issue.NewErrorContext().
		WithOperation("select modules").
		WithIssue(issue.UnknownModuleId).
		WithSuggestion(
			"Known modules: "+strings.Join(reg.Names(), ", "),
			"Run 'bleep modules' for their outputs and dependencies",
		).
		Wrap(&UnknownModuleError{Names: unknown}).
		BuildError()
}

// Select turns validated names into the modules to build, dependencies first.
//
// Names containing All select every module in registry order. No names
// select every module with a tsconfig.json, and those modules contribute
// type-checking only: their bundles are dropped.
func Select(res *depgraph.Resolver, names []string) ([]*workspace.Module, error) {
	reg := res.Registry()
	if slices.Contains(names, All) {
		return reg.Modules(), nil
	}
	if len(names) > 0 {
		return res.ResolveMany(names)
	}

	var typed []string
	for _, m := range reg.Modules() {
		if m.HasTypecheckConfig {
			typed = append(typed, m.Name)
		}
	}
	mods, err := res.ResolveMany(typed)
	if err != nil {
		return nil, err
	}
	out := make([]*workspace.Module, len(mods))
	for i, m := range mods {
		if !m.HasTypecheckConfig {
			out[i] = m
			continue
		}
		checkOnly := *m
		checkOnly.Bundles = nil
		out[i] = &checkOnly
	}
	return out, nil
}

// LoadSnapshot reads every manifest under cfg.UIDir and prepares the session
// for names. No subprocess is started; argument errors surface here.
func LoadSnapshot(ctx context.Context, cfg *config.Config, names []string) (*Snapshot, error) {
	res, err := LoadResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Validate(res.Registry(), names); err != nil {
		return nil, err
	}

	mods, err := Select(res, names)
	if err != nil {
		return nil, cycleError(err)
	}

	if cfg.Hooks.Runtime == config.RuntimeVirtual {
		if err := validateHooks(mods); err != nil {
			return nil, err
		}
	}

	snap := &Snapshot{Resolver: res, Modules: mods}

	plan, err := sequencer.Prepare(cfg.OutDir, mods)
	switch {
	case errors.Is(err, sequencer.ErrNothingToBuild):
	case err != nil:
		return nil, issue.NewErrorContext().
			WithOperation("plan bundles").
			WithIssue(issue.OutputConflictId).
			WithSuggestion("Give each bundle a distinct \"output\" name").
			Wrap(err).
			BuildError()
	default:
		snap.Plan = plan
	}

	if cfg.Typecheck.Enabled {
		project, err := typecheck.WriteProject(cfg.TsconfigDir, mods)
		if err != nil {
			return nil, issue.WrapWithOperation(err, "write type-check project")
		}
		snap.ProjectFile = project
	}

	return snap, nil
}

// LoadResolver loads the registry and builds a verified dependency table.
func LoadResolver(ctx context.Context, cfg *config.Config) (*depgraph.Resolver, error) {
	reg, err := workspace.Load(ctx, cfg.UIDir, cfg.Modules.Patterns)
	if err != nil {
		id := issue.ManifestInvalidId
		if errors.Is(err, workspace.ErrDuplicateModule) {
			id = issue.DuplicateModuleId
		}
		return nil, issue.NewErrorContext().
			WithOperation("load modules").
			WithResource(cfg.UIDir).
			WithIssue(id).
			Wrap(err).
			BuildError()
	}

	res, err := depgraph.NewResolver(reg)
	if err != nil {
		return nil, cycleError(err)
	}
	return res, nil
}

// validateHooks parses every hook of mods with the embedded shell so a typo
// surfaces at load time instead of in the middle of a watch cycle.
func validateHooks(mods []*workspace.Module) error {
	sh := runtime.NewVirtualRuntime()
	for _, m := range mods {
		for _, c := range slices.Concat(m.PreHooks, m.PostHooks) {
			if err := sh.Validate(runtime.Line(c)); err != nil {
				return issue.NewErrorContext().
					WithOperation("check hooks").
					WithResource(m.Name).
					WithIssue(issue.ManifestInvalidId).
					Wrap(err).
					BuildError()
			}
		}
	}
	return nil
}

func cycleError(err error) error {
	var cycle *dag.CycleError
	if !errors.As(err, &cycle) {
		return fmt.Errorf("resolve dependencies: %w", err)
	}
	return issue.NewErrorContext().
		WithOperation("resolve dependencies").
		WithIssue(issue.DependencyCycleId).
		WithSuggestion("Remove one of the dependencies named in the cycle").
		Wrap(err).
		BuildError()
}
