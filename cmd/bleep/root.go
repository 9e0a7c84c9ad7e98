// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for bleep.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the bleep command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "bleep",
		Short: "Incremental front-end build orchestrator",
		Long: TitleStyle.Render("bleep") + SubtitleStyle.Render(" - incremental front-end build orchestrator") + `

bleep runs the type-checker, the bundler and the CSS watcher together in
watch mode. It reads every module's package.json, bundles modules after
their dependencies, and runs each module's pre/post build hooks around
its main bundle.

` + SubtitleStyle.Render("Examples:") + `
  bleep build site          Bundle 'site' and everything it depends on
  bleep build all           Bundle every module
  bleep build               Type-check only
  bleep deps site           Print the build order for 'site'
  bleep config show         Show the effective configuration`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is ./bleep.cue)")

	root.AddCommand(newBuildCommand(app))
	root.AddCommand(newDepsCommand(app))
	root.AddCommand(newModulesCommand(app))
	root.AddCommand(newConfigCommand(app))

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the command's exit code.
// This is called by main.main().
func Execute() {
	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(ExitFailure)
	}

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version.
	// Interrupts cancel the command context; the build shuts down from there.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
