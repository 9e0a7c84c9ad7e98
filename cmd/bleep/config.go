// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/bleepbuild/bleep/internal/config"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `bleep config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage bleep configuration",
		Long: `Manage bleep configuration.

Configuration is read from bleep.cue in the working directory, or from the
file given with --config. Every key can be overridden with a BLEEP_ variable,
for example BLEEP_OUT_DIR or BLEEP_HOOKS_PRE_FAILURE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}

			fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
			fmt.Fprintln(app.stdout)
			fmt.Fprintf(app.stdout, "%s: %s\n\n", KeyStyle.Render("Config file"), describePath(path))
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, path, err := app.loadConfig(cmd.Context())
			if err != nil {
				return reportError(app.stderr, err, app.verbose)
			}
			fmt.Fprintln(app.stdout, describePath(path))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default bleep.cue",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig(app.dir)
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("Config file already exists:"), path)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created"), path)
			return nil
		},
	})

	return cfgCmd
}

func describePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return SubtitleStyle.Render("(using defaults)")
	}
	return path
}
