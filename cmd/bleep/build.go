// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/bleepbuild/bleep/internal/config"
	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/metrics"
	"github.com/bleepbuild/bleep/internal/orchestrator"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// buildFlags override the matching config keys when set.
type buildFlags struct {
	noCSS       bool
	noTypecheck bool
	noWatch     bool
	listen      string
	preFailure  string
	runtime     string
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [module...|all]",
		Short: "Build modules in watch mode",
		Long: `Build the named modules and everything they depend on, then keep
watching. 'all' builds every module. With no names only the modules that
have a tsconfig.json are type-checked and nothing is bundled.

Unknown module names are reported before any tool is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, app, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.noCSS, "no-css", false, "do not run the CSS watcher")
	cmd.Flags().BoolVar(&flags.noTypecheck, "no-typecheck", false, "start bundling without waiting for the type-checker")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "do not reload when a package.json changes")
	cmd.Flags().StringVar(&flags.listen, "metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&flags.preFailure, "pre-failure", "", "what a failed pre-hook means: continue or skip-bundle")
	cmd.Flags().StringVar(&flags.runtime, "runtime", "", "hook runtime: native or virtual")

	return cmd
}

func (f buildFlags) apply(cfg *config.Config) error {
	if f.noCSS {
		cfg.CSS.Enabled = false
	}
	if f.noTypecheck {
		cfg.Typecheck.Enabled = false
	}
	if f.noWatch {
		cfg.Watch.Manifests = false
	}
	if f.listen != "" {
		cfg.Metrics.Listen = f.listen
	}
	if f.preFailure != "" {
		cfg.Hooks.PreFailure = config.PreFailurePolicy(f.preFailure)
	}
	if f.runtime != "" {
		cfg.Hooks.Runtime = config.RuntimeMode(f.runtime)
	}
	if valid, errs := cfg.IsValid(); !valid {
		return errs[0]
	}
	return nil
}

func runBuild(cmd *cobra.Command, app *App, names []string, flags buildFlags) error {
	ctx := cmd.Context()

	cfg, _, err := app.loadConfig(ctx)
	if err != nil {
		return reportError(app.stderr, err, app.verbose)
	}
	if err := flags.apply(cfg); err != nil {
		return &ExitError{Code: ExitArgument, Err: err}
	}

	logs := logging.New(app.stdout, logging.Options{Verbose: cfg.UI.Verbose})

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	reg := prom.NewRegistry()
	if cfg.Metrics.Listen != "" {
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	o := orchestrator.New(orchestrator.Options{
		Config:    cfg,
		Logs:      logs,
		Recorder:  recorder,
		Registry:  reg,
		StartTime: app.started,
	})
	return reportError(app.stderr, o.Run(ctx, names), app.verbose)
}
