// SPDX-License-Identifier: MPL-2.0

// Package sequencer turns selected modules into a bundler watch plan: one
// bundler configuration per bundle spec, the output-to-module ownership map,
// and the set of trigger outputs whose bundling runs the owner's hooks.
package sequencer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bleepbuild/bleep/internal/workspace"
	"github.com/bleepbuild/bleep/pkg/manifest"
)

const (
	// FormatIIFE is the only output format bleep asks for: a self-executing
	// single-file script.
	FormatIIFE = "iife"

	outputExt = ".js"
)

// ErrNothingToBuild means the selection owns no bundle specs. It is not a
// failure: callers report completion without starting a bundler session.
var ErrNothingToBuild = errors.New("nothing to build")

type (
	// Plugin is one entry of a bundler plugin chain.
	Plugin struct {
		Name    string         `json:"name"`
		Options map[string]any `json:"options,omitempty"`
	}

	// Output describes where and how a bundle is written.
	Output struct {
		File   string `json:"file"`
		Format string `json:"format"`
		Name   string `json:"name,omitempty"`
	}

	// BundleConfig is one bundler watch entry.
	BundleConfig struct {
		Module  string   `json:"module"`
		Input   string   `json:"input"`
		Output  Output   `json:"output"`
		Plugins []Plugin `json:"plugins"`
		Warn    string   `json:"warn"`
		// AwaitAck asks the bundler to hold the bundle after announcing its
		// start until bleep acknowledges it (after the pre-hooks ran).
		AwaitAck bool `json:"awaitAck"`
	}

	// Plan is the result of Prepare. It is read-only once returned.
	Plan struct {
		Configs   []BundleConfig
		ownership map[string]*workspace.Module
		triggers  map[string]struct{}
	}
)

// Prepare builds the plan for modules, writing outputs under outDir.
func Prepare(outDir string, modules []*workspace.Module) (*Plan, error) {
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output directory: %w", err)
	}

	p := &Plan{
		ownership: make(map[string]*workspace.Module),
		triggers:  make(map[string]struct{}),
	}

	for _, mod := range modules {
		for _, b := range mod.Bundles {
			output := OutputPath(absOut, b.Output)
			if owner, ok := p.ownership[output]; ok {
				return nil, fmt.Errorf("output %s is produced by both %s and %s", output, owner.Name, mod.Name)
			}
			p.ownership[output] = mod
			if b.Trigger {
				p.triggers[output] = struct{}{}
			}
			p.Configs = append(p.Configs, bundleConfig(b, output))
		}
	}

	if len(p.Configs) == 0 {
		return nil, ErrNothingToBuild
	}
	return p, nil
}

// OutputPath returns the absolute file a bundle named output is written to.
func OutputPath(outDir, output string) string {
	return filepath.Join(outDir, output+outputExt)
}

func bundleConfig(b *workspace.BundleSpec, output string) BundleConfig {
	mod := b.Owner
	return BundleConfig{
		Module:   mod.Name,
		Input:    filepath.Join(mod.Root, filepath.FromSlash(b.Input)),
		Output:   Output{File: output, Format: FormatIIFE, Name: b.ImportName},
		Plugins:  pluginChain(b),
		Warn:     string(b.Warn),
		AwaitAck: b.Trigger,
	}
}

// pluginChain appends the type-checking, module-resolution and CommonJS
// interop plugins to the manifest plugins when the owner has a tsconfig.
func pluginChain(b *workspace.BundleSpec) []Plugin {
	chain := make([]Plugin, 0, len(b.Plugins)+3)
	for _, p := range b.Plugins {
		chain = append(chain, fromManifest(p))
	}
	if b.Owner.HasTypecheckConfig {
		chain = append(chain,
			Plugin{Name: "typescript", Options: map[string]any{"tsconfig": b.Owner.TypecheckConfig()}},
			Plugin{Name: "node-resolve"},
			Plugin{Name: "commonjs", Options: map[string]any{"extensions": []string{".js"}}},
		)
	}
	return chain
}

func fromManifest(p manifest.Plugin) Plugin {
	return Plugin{Name: p.Name, Options: p.Options}
}

// Owner returns the module that owns output.
func (p *Plan) Owner(output string) (*workspace.Module, bool) {
	m, ok := p.ownership[output]
	return m, ok
}

// IsTrigger reports whether output runs its owner's hooks.
func (p *Plan) IsTrigger(output string) bool {
	_, ok := p.triggers[output]
	return ok
}

// Len returns the number of bundler configurations.
func (p *Plan) Len() int {
	return len(p.Configs)
}
