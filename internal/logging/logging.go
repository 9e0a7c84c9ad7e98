// SPDX-License-Identifier: MPL-2.0

// Package logging builds the prefixed loggers bleep writes its status stream
// with. Every line carries a context prefix: a tool ("tsc", "gulp",
// "rollup") or a module name.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// Tool prefixes used across packages.
const (
	ContextTypecheck = "tsc"
	ContextCSS       = "gulp"
	ContextBundler   = "rollup"
	ContextWatch     = "watch"
	ContextMetrics   = "metrics"
)

type (
	// Options configures New.
	Options struct {
		Verbose bool
	}

	// Factory hands out loggers that share one writer and level.
	Factory struct {
		base *log.Logger
	}
)

// New creates a Factory writing to w (os.Stderr when nil).
func New(w io.Writer, opts Options) *Factory {
	if w == nil {
		w = os.Stderr
	}
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	return &Factory{base: log.NewWithOptions(w, log.Options{Level: level})}
}

// Discard returns a Factory whose loggers write nowhere.
func Discard() *Factory {
	return New(io.Discard, Options{})
}

// Base returns the unprefixed logger.
func (f *Factory) Base() *log.Logger {
	return f.base
}

// For returns a logger prefixed with ctx.
func (f *Factory) For(ctx string) *log.Logger {
	return f.base.WithPrefix(ctx)
}

// Slog adapts the base logger for code that logs through log/slog.
func (f *Factory) Slog() *slog.Logger {
	return slog.New(f.base)
}

// LineWriter returns a line handler that prints each line verbatim under
// logger's prefix. Blank lines are dropped.
func LineWriter(logger *log.Logger) func(string) {
	return func(line string) {
		if line == "" {
			return
		}
		logger.Print(line)
	}
}
