// SPDX-License-Identifier: MPL-2.0

// Package csswatch keeps the CSS watcher running. The watcher is known to
// exit with one particular code for no real reason (gulp on macOS exits 1
// while setting up its watchers); that exit is retried a bounded number of
// times. Every other non-zero exit is fatal.
package csswatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bleepbuild/bleep/internal/clock"
	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/metrics"
	"github.com/bleepbuild/bleep/internal/process"

	"github.com/charmbracelet/log"
)

// Defaults for Options.
const (
	DefaultBenignExitCode = 1
	DefaultMaxRetries     = 3
)

// ErrRetriesExhausted is wrapped by the error returned after the last retry.
var ErrRetriesExhausted = errors.New("css watcher kept failing")

type (
	// Options configures a Supervisor.
	Options struct {
		Command        []string
		Dir            string
		BenignExitCode int
		MaxRetries     int
		RetryDelay     time.Duration
		Logger         *log.Logger
		Recorder       metrics.Recorder
		Clock          clock.Clock
	}

	// Supervisor runs and restarts the CSS watcher.
	Supervisor struct {
		opts     Options
		logger   *log.Logger
		recorder metrics.Recorder
		clock    clock.Clock
	}
)

// DefaultCommand is the CSS watcher bleep runs when none is configured.
func DefaultCommand() []string {
	return []string{"yarn", "gulp", "css"}
}

// New creates a Supervisor. Zero BenignExitCode and MaxRetries select the
// defaults; a negative MaxRetries disables retrying.
func New(opts Options) *Supervisor {
	if len(opts.Command) == 0 {
		opts.Command = DefaultCommand()
	}
	if opts.BenignExitCode == 0 {
		opts.BenignExitCode = DefaultBenignExitCode
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Supervisor{opts: opts, logger: logger, recorder: metrics.OrNoop(opts.Recorder), clock: c}
}

// Run starts the watcher and blocks until it ends. It returns nil when the
// watcher exits 0 or ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	lines := logging.LineWriter(s.logger)
	for tries := 0; ; tries++ {
		code, err := process.Run(ctx, process.Command{
			Name:   "css watcher",
			Argv:   s.opts.Command,
			Dir:    s.opts.Dir,
			Stdout: lines,
			Stderr: lines,
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case code == 0:
			return nil
		case code != s.opts.BenignExitCode:
			return fmt.Errorf("css watcher: %w", process.AsExitError(s.opts.Command[0], code))
		case tries >= s.opts.MaxRetries:
			return fmt.Errorf("%w: exit code %d after %d retries", ErrRetriesExhausted, code, tries)
		}

		s.logger.Print(logging.ErrorStyle.Render("Retrying gulp watch..."))
		s.recorder.IncToolRestart(logging.ContextCSS)

		if s.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(s.opts.RetryDelay):
			}
		}
	}
}
