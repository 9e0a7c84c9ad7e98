// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bleepbuild/bleep/internal/orchestrator"
	"github.com/bleepbuild/bleep/internal/workspace"

	"github.com/spf13/cobra"
)

func newModulesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the modules bleep found",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			res, err := orchestrator.LoadResolver(cmd.Context(), cfg)
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}

			mods := res.Registry().Modules()
			if len(mods) == 0 {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(no modules under "+cfg.UIDir+")"))
				return nil
			}
			for _, m := range mods {
				fmt.Fprintln(app.stdout, describeModule(m, cfg.UIDir))
			}
			return nil
		},
	}
}

// describeModule renders one line: name, alias, root, dependencies, outputs.
func describeModule(m *workspace.Module, uiDir string) string {
	var sb strings.Builder
	sb.WriteString(KeyStyle.Render(m.Name))
	if m.Alias != "" && m.Alias != m.Name {
		sb.WriteString(SubtitleStyle.Render(" (" + m.Alias + ")"))
	}
	if rel, err := filepath.Rel(uiDir, m.Root); err == nil {
		sb.WriteString(" " + filepath.ToSlash(rel))
	}
	if m.HasTypecheckConfig {
		sb.WriteString(" " + SuccessStyle.Render("ts"))
	}

	var outputs []string
	for _, b := range m.Bundles {
		out := b.Output + ".js"
		if b.Trigger {
			out += "*"
		}
		outputs = append(outputs, out)
	}
	if len(outputs) > 0 {
		sb.WriteString(" -> " + strings.Join(outputs, ", "))
	}
	if len(m.Dependencies) > 0 {
		sb.WriteString(SubtitleStyle.Render(" deps: " + strings.Join(m.Dependencies, ", ")))
	}
	return sb.String()
}
