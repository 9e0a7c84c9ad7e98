// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Runtime mode constants.
const (
	ModeNative  Mode = "native"
	ModeVirtual Mode = "virtual"
)

var (
	// ErrUnknownMode is returned by New for an unsupported Mode.
	ErrUnknownMode = errors.New("unknown runtime mode")
	// ErrUnavailable reports a runtime that cannot execute on this host.
	ErrUnavailable = errors.New("runtime not available")
)

type (
	// Mode selects a Runtime implementation.
	Mode string

	// Runtime executes a single command line.
	Runtime interface {
		// Name returns the runtime name.
		Name() string
		// Available reports whether the runtime can execute on this host.
		Available() bool
		// Run executes req and blocks until it exits.
		Run(ctx context.Context, req Request) Result
	}

	// Request describes one command line to execute.
	Request struct {
		// Line is the command line.
		Line string
		// Dir is the working directory.
		Dir string
		// Env holds KEY=VALUE pairs added on top of the host environment.
		Env    []string
		Stdout io.Writer
		Stderr io.Writer
	}

	// Result contains the result of an execution.
	Result struct {
		// ExitCode is the exit code of the command.
		ExitCode int
		// Error contains any infrastructure error (not a non-zero exit).
		Error error
	}

	// ExitError reports a command line that exited non-zero.
	ExitError struct {
		Line string
		Code int
	}
)

func (e *ExitError) Error() string {
	return fmt.Sprintf("%q exited with code %d", e.Line, e.Code)
}

// New returns the Runtime for mode. The empty mode selects native.
func New(mode Mode) (Runtime, error) {
	switch mode {
	case ModeNative, "":
		return NewNativeRuntime(), nil
	case ModeVirtual:
		return NewVirtualRuntime(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Line joins argv into a command line.
func Line(argv []string) string {
	return strings.Join(argv, " ")
}

// Err folds the result into a single error for line.
func (r Result) Err(line string) error {
	if r.Error != nil {
		return r.Error
	}
	if r.ExitCode != 0 {
		return &ExitError{Line: line, Code: r.ExitCode}
	}
	return nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
