// SPDX-License-Identifier: MPL-2.0

// Package hook runs a module's pre/post build commands. One Runner serves
// both phases; the Mode decides whether the caller waits.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/metrics"
	"github.com/bleepbuild/bleep/internal/runtime"
	"github.com/bleepbuild/bleep/internal/workspace"
)

const (
	// PhasePre runs before a trigger output is bundled.
	PhasePre Phase = "pre"
	// PhasePost runs after a trigger output is bundled.
	PhasePost Phase = "post"
)

const (
	// Blocking runs the commands in order, each to completion, and returns
	// once the last one exited.
	Blocking Mode = iota
	// Detached starts every command in its own goroutine and returns
	// immediately.
	Detached
)

type (
	// Phase names a hook list of a module.
	Phase string

	// Mode selects how Run waits for the commands.
	Mode int

	// Options configures a Runner.
	Options struct {
		Runtime runtime.Runtime
		// Env is added to each command's environment.
		Env      []string
		Logs     *logging.Factory
		Recorder metrics.Recorder

		// StopOnFailure ends a Blocking run at the first failed command.
		StopOnFailure bool
	}

	// Runner executes hook commands.
	Runner struct {
		rt       runtime.Runtime
		env      []string
		logs     *logging.Factory
		recorder metrics.Recorder
		failFast bool
		detached sync.WaitGroup
	}

	// Error reports one failed hook command with its module context.
	Error struct {
		Module string
		Phase  Phase
		Err    error
	}
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s hook for %s: %v", e.Phase, e.Module, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DefaultMode is Blocking for pre-hooks and Detached for post-hooks.
func DefaultMode(p Phase) Mode {
	if p == PhasePre {
		return Blocking
	}
	return Detached
}

// String returns the mode name.
func (m Mode) String() string {
	if m == Detached {
		return "detached"
	}
	return "blocking"
}

// NewRunner creates a Runner. A nil runtime selects the native runtime.
func NewRunner(opts Options) *Runner {
	rt := opts.Runtime
	if rt == nil {
		rt = runtime.NewNativeRuntime()
	}
	logs := opts.Logs
	if logs == nil {
		logs = logging.Discard()
	}
	return &Runner{
		rt:       rt,
		env:      opts.Env,
		logs:     logs,
		recorder: metrics.OrNoop(opts.Recorder),
		failFast: opts.StopOnFailure,
	}
}

// Run executes the phase's commands of mod. In Blocking mode a failing
// command is logged and, unless the Runner stops on failure, the remaining
// commands still run; the returned error joins every failure. In Detached
// mode Run returns nil at once and failures are only logged.
func (r *Runner) Run(ctx context.Context, mod *workspace.Module, phase Phase, mode Mode) error {
	if mod == nil {
		return nil
	}
	cmds := mod.PreHooks
	if phase == PhasePost {
		cmds = mod.PostHooks
	}
	if len(cmds) == 0 {
		return nil
	}

	if mode == Detached {
		for _, c := range cmds {
			r.detached.Go(func() {
				_ = r.exec(ctx, mod, phase, c)
			})
		}
		return nil
	}

	var errs []error
	for _, c := range cmds {
		if err := r.exec(ctx, mod, phase, c); err != nil {
			errs = append(errs, err)
			if r.failFast {
				break
			}
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every detached command has exited.
func (r *Runner) Wait() {
	r.detached.Wait()
}

func (r *Runner) exec(ctx context.Context, mod *workspace.Module, phase Phase, c workspace.HookCommand) error {
	logger := r.logs.For(mod.Name)
	line := runtime.Line(c)
	logger.Print(logging.CommandStyle.Render(line))

	stdout := logging.NewLineSplitter(logging.LineWriter(logger))
	stderr := logging.NewLineSplitter(func(s string) {
		if s != "" {
			logger.Error(s)
		}
	})

	res := r.rt.Run(ctx, runtime.Request{
		Line:   line,
		Dir:    mod.Root,
		Env:    r.env,
		Stdout: stdout,
		Stderr: stderr,
	})
	stdout.Flush()
	stderr.Flush()

	if err := res.Err(line); err != nil {
		logger.Error(logging.ErrorStyle.Render(fmt.Sprintf("%s hook failed", phase)), "cmd", line, "err", err)
		r.recorder.IncHookRun(mod.Name, string(phase), metrics.OutcomeFailed)
		return &Error{Module: mod.Name, Phase: phase, Err: err}
	}
	r.recorder.IncHookRun(mod.Name, string(phase), metrics.OutcomeSuccess)
	return nil
}
