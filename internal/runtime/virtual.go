// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// VirtualRuntime executes commands using the mvdan/sh interpreter. External
// programs are still resolved from PATH; only the shell itself is embedded.
type VirtualRuntime struct{}

// NewVirtualRuntime creates a new virtual runtime
func NewVirtualRuntime() *VirtualRuntime {
	return &VirtualRuntime{}
}

// Name returns the runtime name
func (r *VirtualRuntime) Name() string {
	return string(ModeVirtual)
}

// Available returns whether this runtime is available
func (r *VirtualRuntime) Available() bool {
	// Virtual runtime is always available as it's built-in
	return true
}

// Validate checks that line parses as POSIX shell.
func (r *VirtualRuntime) Validate(line string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(line), "hook"); err != nil {
		return fmt.Errorf("hook syntax error: %w", err)
	}
	return nil
}

// Run interprets req.Line
func (r *VirtualRuntime) Run(ctx context.Context, req Request) Result {
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Line), "hook")
	if err != nil {
		return Result{ExitCode: 1, Error: fmt.Errorf("failed to parse hook: %w", err)}
	}

	dir := req.Dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return Result{ExitCode: 1, Error: err}
		}
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), req.Env...)...)),
		interp.StdIO(nil, writerOrDiscard(req.Stdout), writerOrDiscard(req.Stderr)),
	)
	if err != nil {
		return Result{ExitCode: 1, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return Result{ExitCode: int(exitStatus)}
		}
		return Result{ExitCode: 1, Error: fmt.Errorf("hook execution failed: %w", err)}
	}
	return Result{}
}
