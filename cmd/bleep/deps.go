// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/bleepbuild/bleep/internal/orchestrator"

	"github.com/spf13/cobra"
)

func newDepsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <module...>",
		Short: "Print the build order for modules",
		Long: `Print the modules 'bleep build' would bundle for the given names,
dependencies first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			res, err := orchestrator.LoadResolver(cmd.Context(), cfg)
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			if err := orchestrator.Validate(res.Registry(), args); err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			mods, err := orchestrator.Select(res, args)
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			for _, m := range mods {
				fmt.Fprintln(app.stdout, m.Name)
			}
			return nil
		},
	}
}
