// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/bleepbuild/bleep/internal/issue"
	"github.com/bleepbuild/bleep/internal/orchestrator"
)

// Exit codes.
const (
	ExitFailure  = 1
	ExitArgument = 2
)

// ExitError signals a non-zero exit code without forcing os.Exit in RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// reportError writes the catalog issue attached to err, if any, and maps err
// to an ExitError. Unknown module names are argument errors.
func reportError(w io.Writer, err error, verbose bool) error {
	if err == nil {
		return nil
	}

	if iss := issue.IssueOf(err); iss != nil {
		if rendered, renderErr := iss.Render("dark"); renderErr == nil {
			fmt.Fprint(w, rendered)
		}
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) && verbose {
		fmt.Fprintln(w, ae.Format(true))
	}

	code := ExitFailure
	if errors.Is(err, orchestrator.ErrUnknownModule) {
		fmt.Fprintln(w, ErrorStyle.Render("Argument error: ")+err.Error())
		code = ExitArgument
	}
	return &ExitError{Code: code, Err: err}
}
