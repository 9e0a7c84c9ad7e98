// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"fmt"
	"time"
)

// Event codes emitted by the bundler on stdout.
const (
	CodeStart       Code = "START"
	CodeBundleStart Code = "BUNDLE_START"
	CodeBundleEnd   Code = "BUNDLE_END"
	CodeError       Code = "ERROR"
	CodeEnd         Code = "END"
)

type (
	// Code identifies a bundler lifecycle event.
	Code string

	// Event is one JSON line from the bundler.
	Event struct {
		Code   Code     `json:"code"`
		Output []string `json:"output,omitempty"`
		// Duration is in milliseconds; set on BUNDLE_END.
		Duration int64       `json:"duration,omitempty"`
		Error    *BuildError `json:"error,omitempty"`
	}

	// BuildError is the diagnostic carried by an ERROR event.
	BuildError struct {
		Code    string    `json:"code,omitempty"`
		Message string    `json:"message"`
		ID      string    `json:"id,omitempty"`
		Loc     *Location `json:"loc,omitempty"`
		Frame   string    `json:"frame,omitempty"`
	}

	// Location points into a source file.
	Location struct {
		File   string `json:"file,omitempty"`
		Line   int    `json:"line"`
		Column int    `json:"column"`
	}

	// ack is written to stdin once the pre-hooks of an awaiting output ran.
	ack struct {
		Ack  string `json:"ack"`
		Skip bool   `json:"skip,omitempty"`
	}

	// release lets the bundler free the build result of an output.
	release struct {
		Close string `json:"close"`
	}
)

// Valid reports whether c is a known event code.
func (c Code) Valid() bool {
	switch c {
	case CodeStart, CodeBundleStart, CodeBundleEnd, CodeError, CodeEnd:
		return true
	}
	return false
}

// PrimaryOutput returns the first output path, or "" when there is none.
func (e Event) PrimaryOutput() string {
	if len(e.Output) == 0 {
		return ""
	}
	return e.Output[0]
}

// Elapsed returns Duration as a time.Duration.
func (e Event) Elapsed() time.Duration {
	return time.Duration(e.Duration) * time.Millisecond
}

func (e *BuildError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// File returns the location's file, falling back to the module id.
func (e *BuildError) File() string {
	if e.Loc != nil && e.Loc.File != "" {
		return e.Loc.File
	}
	return e.ID
}
