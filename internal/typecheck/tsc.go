// SPDX-License-Identifier: MPL-2.0

package typecheck

import (
	"context"
	"errors"
	"fmt"

	"github.com/bleepbuild/bleep/internal/process"

	"github.com/charmbracelet/log"
)

var (
	// ErrExited is returned when the watching type-checker stops.
	ErrExited = errors.New("type-checker exited")
	// ErrExitedBeforeReady is returned when the type-checker stops without
	// ever reporting a clean build.
	ErrExitedBeforeReady = errors.New("type-checker exited before a clean build")
)

// Options configures Watch.
type Options struct {
	// Command is the type-checker program and leading arguments.
	Command []string
	// Dir is the working directory; the project file lives here.
	Dir string
	// Project is the composite project file passed to -b.
	Project string
	Check   ReadinessCheck
	Logger  *log.Logger
}

// Args returns the watch-mode arguments for project.
func Args(project string) []string {
	return []string{"-b", project, "--incremental", "-w", "--preserveWatchOutput"}
}

// Watch runs the type-checker until ctx is cancelled and calls onReady after
// the first clean build. An exit of the type-checker is an error; exiting
// because ctx was cancelled is not.
func Watch(ctx context.Context, opts Options, onReady func()) error {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"tsc"}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	gate := NewGate(opts.Check, logger, onReady)
	argv := append(append([]string(nil), command...), Args(opts.Project)...)

	p, err := process.Start(ctx, process.Command{
		Name:   "tsc",
		Argv:   argv,
		Dir:    opts.Dir,
		Stdout: gate.Line,
		Stderr: func(line string) {
			if line != "" {
				logger.Print(line)
			}
		},
	})
	if err != nil {
		return err
	}

	code, err := p.Wait()
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	if !gate.Fired() {
		return fmt.Errorf("%w (exit code %d)", ErrExitedBeforeReady, code)
	}
	return fmt.Errorf("%w with code %d", ErrExited, code)
}
