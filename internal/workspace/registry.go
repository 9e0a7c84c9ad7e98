// SPDX-License-Identifier: MPL-2.0

package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bleepbuild/bleep/pkg/manifest"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPatterns locate module manifests relative to the ui directory.
var DefaultPatterns = []string{"*/" + manifest.FileName}

// ErrDuplicateModule is the sentinel wrapped by DuplicateModuleError.
var ErrDuplicateModule = errors.New("duplicate module name")

type (
	// DuplicateModuleError reports two manifests claiming the same name, either
	// as a module name or as an alias.
	DuplicateModuleError struct {
		Name   string
		First  string
		Second string
	}

	// Registry maps module names to modules. Lookups by alias are not
	// supported; aliases only matter to the dependency graph builder.
	Registry struct {
		modules map[string]*Module
		order   []string
	}
)

func (e *DuplicateModuleError) Error() string {
	return fmt.Sprintf("module %q declared in both %s and %s", e.Name, e.First, e.Second)
}

// Unwrap returns ErrDuplicateModule for errors.Is compatibility.
func (e *DuplicateModuleError) Unwrap() error { return ErrDuplicateModule }

// NewRegistry indexes mods by name, keeping the given order. Names and
// aliases share one namespace.
func NewRegistry(mods ...*Module) (*Registry, error) {
	r := &Registry{modules: make(map[string]*Module, len(mods))}
	claimed := make(map[string]*Module, len(mods))
	for _, m := range mods {
		for _, name := range m.Names() {
			if prev, ok := claimed[name]; ok {
				return nil, &DuplicateModuleError{Name: name, First: prev.Root, Second: m.Root}
			}
			claimed[name] = m
		}
		r.modules[m.Name] = m
		r.order = append(r.order, m.Name)
	}
	return r, nil
}

// Load discovers every manifest under uiDir matching patterns and builds a
// Registry from them, ordered by manifest path.
func Load(ctx context.Context, uiDir string, patterns []string) (*Registry, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	absUI, err := filepath.Abs(uiDir)
	if err != nil {
		return nil, fmt.Errorf("resolve ui directory: %w", err)
	}

	paths, err := discover(absUI, patterns)
	if err != nil {
		return nil, err
	}

	mods := make([]*Module, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := manifest.ParseFile(p)
		if err != nil {
			return nil, err
		}
		mods = append(mods, NewModule(m, filepath.Dir(p)))
	}

	return NewRegistry(mods...)
}

func discover(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid module pattern %q: %w", pat, err)
		}
		for _, m := range matches {
			if slices.Contains(strings.Split(m, "/"), "node_modules") {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	slices.Sort(out)
	return out, nil
}

// Get returns the module registered under name.
func (r *Registry) Get(name string) (*Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Has reports whether name is a registered module.
func (r *Registry) Has(name string) bool {
	_, ok := r.modules[name]
	return ok
}

// Names returns module names in registry order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Modules returns all modules in registry order.
func (r *Registry) Modules() []*Module {
	out := make([]*Module, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.modules[name])
	}
	return out
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.order)
}
