// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bleepbuild/bleep/internal/config"
)

type (
	// App wires CLI services and shared dependencies. All Cobra command
	// handlers receive an App reference.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
		// started is the program start; the first build summary counts from it.
		started time.Time
		// dir is where bleep.cue is looked up and relative paths resolve.
		dir string

		configPath string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
		// Dir overrides the working directory.
		Dir     string
		Started time.Time
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}
	if deps.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		deps.Dir = wd
	}

	return &App{
		Config:  deps.Config,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		started: deps.Started,
		dir:     deps.Dir,
	}, nil
}

// loadConfig loads bleep.cue (or --config) and makes its directories
// absolute. Relative paths resolve against the config file's directory, or
// the working directory when running on defaults.
func (a *App) loadConfig(ctx context.Context) (*config.Config, string, error) {
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.configPath, Dir: a.dir})
	if err != nil {
		return nil, "", err
	}
	base := a.dir
	if path != "" {
		abs, absErr := filepath.Abs(path)
		if absErr == nil {
			path = abs
			base = filepath.Dir(abs)
		}
	}
	if a.verbose {
		cfg.UI.Verbose = true
	}
	return cfg.Resolve(base), path, nil
}
