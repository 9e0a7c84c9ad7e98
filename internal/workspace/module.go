// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bleepbuild/bleep/pkg/manifest"
)

// TypecheckConfigName is the per-module type-checker config file. Its
// presence turns on the type-checking plugin chain for the module's bundles.
const TypecheckConfigName = "tsconfig.json"

type (
	// HookCommand is one argv list run before or after a trigger bundle.
	HookCommand []string

	// Module is one front-end package.
	Module struct {
		Name  string
		Alias string
		// Root is the absolute module directory; hooks run here.
		Root string
		// Dependencies are manifest dependency names in declaration order,
		// including packages that are not workspace modules.
		Dependencies       []string
		Bundles            []*BundleSpec
		PreHooks           []HookCommand
		PostHooks          []HookCommand
		HasTypecheckConfig bool
	}

	// BundleSpec is one bundler entry point owned by a module.
	BundleSpec struct {
		Owner      *Module
		Input      string
		Output     string
		ImportName string
		Trigger    bool
		Plugins    []manifest.Plugin
		Warn       manifest.WarnMode
	}
)

// NewModule converts a decoded manifest found in root into a Module.
func NewModule(m *manifest.Manifest, root string) *Module {
	mod := &Module{
		Name:         m.Name,
		Alias:        m.Build.Alias,
		Root:         root,
		Dependencies: append([]string(nil), m.Dependencies...),
	}

	for _, argv := range m.Build.Pre {
		mod.PreHooks = append(mod.PreHooks, HookCommand(argv))
	}
	for _, argv := range m.Build.Post {
		mod.PostHooks = append(mod.PostHooks, HookCommand(argv))
	}

	for i, b := range m.Build.Bundle {
		output := b.Output
		if output == "" {
			output = mod.Name
		}
		mod.Bundles = append(mod.Bundles, &BundleSpec{
			Owner:      mod,
			Input:      b.Input,
			Output:     output,
			ImportName: b.ImportName,
			Trigger:    m.Build.IsTrigger(i),
			Plugins:    b.Plugins,
			Warn:       b.Warn,
		})
	}

	if info, err := os.Stat(filepath.Join(root, TypecheckConfigName)); err == nil && !info.IsDir() {
		mod.HasTypecheckConfig = true
	}

	return mod
}

// Names returns the module name followed by its alias, if any.
func (m *Module) Names() []string {
	if m.Alias == "" || m.Alias == m.Name {
		return []string{m.Name}
	}
	return []string{m.Name, m.Alias}
}

// TypecheckConfig returns the absolute path of the module's tsconfig.json.
func (m *Module) TypecheckConfig() string {
	return filepath.Join(m.Root, TypecheckConfigName)
}

// String implements fmt.Stringer.
func (h HookCommand) String() string {
	return strings.Join(h, " ")
}
