// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/bleepbuild/bleep/pkg/cueutil"

	"cuelang.org/go/cue"
)

// FileName is the manifest file every module directory carries.
const FileName = "package.json"

const (
	// WarnDefault forwards bundler warnings to the log.
	WarnDefault WarnMode = "default"
	// WarnSilent drops bundler warnings.
	WarnSilent WarnMode = "silent"
	// WarnStrict turns bundler warnings into bundle errors.
	WarnStrict WarnMode = "strict"
)

//go:embed manifest_schema.cue
var schema []byte

type (
	// WarnMode selects how the bundler treats warnings for one bundle.
	WarnMode string

	// Manifest is the decoded package.json of one module.
	Manifest struct {
		Name string `json:"name"`
		// Dependencies lists dependency names in declaration order. It is
		// filled from the unified CUE value because a Go map would lose the
		// order.
		Dependencies []string `json:"-"`
		Build        Build    `json:"build"`
	}

	// Build is the "build" object of a manifest.
	Build struct {
		Alias  string     `json:"alias,omitempty"`
		Bundle []Bundle   `json:"bundle,omitempty"`
		Pre    [][]string `json:"pre,omitempty"`
		Post   [][]string `json:"post,omitempty"`
	}

	// Bundle declares one bundler entry point.
	Bundle struct {
		Input      string   `json:"input"`
		Output     string   `json:"output,omitempty"`
		ImportName string   `json:"importName,omitempty"`
		Trigger    *bool    `json:"trigger,omitempty"`
		Plugins    []Plugin `json:"plugins,omitempty"`
		Warn       WarnMode `json:"warn,omitempty"`
	}

	// Plugin is a bundler plugin reference passed through to the bundler.
	Plugin struct {
		Name    string         `json:"name"`
		Options map[string]any `json:"options,omitempty"`
	}
)

// Parse decodes manifest data. filename is only used in error messages.
func Parse(data []byte, filename string) (*Manifest, error) {
	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest", cueutil.WithFilename(filename))
	if err != nil {
		return nil, err
	}

	m := res.Value
	deps, err := dependencyNames(res.Unified)
	if err != nil {
		return nil, cueutil.FormatError(err, filename)
	}
	m.Dependencies = deps

	for i := range m.Build.Bundle {
		if m.Build.Bundle[i].Warn == "" {
			m.Build.Bundle[i].Warn = WarnDefault
		}
	}

	return m, nil
}

// ParseFile reads and decodes the manifest at path.
func ParseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data, path)
}

func dependencyNames(v cue.Value) ([]string, error) {
	deps := v.LookupPath(cue.ParsePath("dependencies"))
	if !deps.Exists() {
		return nil, nil
	}

	iter, err := deps.Fields()
	if err != nil {
		return nil, err
	}

	var names []string
	for iter.Next() {
		names = append(names, iter.Selector().Unquoted())
	}
	return names, nil
}

// IsTrigger reports whether the bundle at index i of b fires the module's
// hooks. An explicit trigger flag wins; otherwise the first bundle is the
// trigger output.
func (b Build) IsTrigger(i int) bool {
	if i < 0 || i >= len(b.Bundle) {
		return false
	}
	if t := b.Bundle[i].Trigger; t != nil {
		return *t
	}
	for _, other := range b.Bundle {
		if other.Trigger != nil && *other.Trigger {
			return false
		}
	}
	return i == 0
}
