// SPDX-License-Identifier: MPL-2.0

package typecheck

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bleepbuild/bleep/internal/workspace"
)

// ProjectFileName is the composite project bleep generates in the tsconfig
// directory.
const ProjectFileName = "bleep.tsconfig.json"

type (
	// Project is a composite tsconfig that only references other projects.
	Project struct {
		Files      []string    `json:"files"`
		References []Reference `json:"references"`
	}

	// Reference points at a module root holding a tsconfig.json.
	Reference struct {
		Path string `json:"path"`
	}
)

// NewProject references every module that has a type-checker config, in
// the given order.
func NewProject(modules []*workspace.Module) Project {
	p := Project{Files: []string{}, References: []Reference{}}
	for _, m := range modules {
		if m.HasTypecheckConfig {
			p.References = append(p.References, Reference{Path: m.Root})
		}
	}
	return p
}

// WriteProject writes the composite project for modules into dir and
// returns its path.
func WriteProject(dir string, modules []*workspace.Module) (string, error) {
	data, err := json.MarshalIndent(NewProject(modules), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", ProjectFileName, err)
	}
	path := filepath.Join(dir, ProjectFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", ProjectFileName, err)
	}
	return path, nil
}
