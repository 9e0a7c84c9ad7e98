// SPDX-License-Identifier: MPL-2.0

// Package typecheck runs the type-checker in incremental watch mode and
// reports when its first clean build finished.
package typecheck

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// DefaultSuccessMarker is the line tsc 5.x prints after a build without
// errors. Readiness detection depends on this exact text.
const DefaultSuccessMarker = "Found 0 errors."

const readyMessage = "tsc build success. Begin watching..."

type (
	// ReadinessCheck recognises the output line that means the type-checker
	// finished a clean build.
	ReadinessCheck interface {
		Ready(line string) bool
	}

	// MarkerCheck matches lines containing a fixed substring.
	MarkerCheck string

	// Gate forwards type-checker output and fires a continuation on the
	// first ready line only.
	Gate struct {
		check   ReadinessCheck
		logger  *log.Logger
		onReady func()
		once    sync.Once
		fired   bool
	}
)

// Ready implements ReadinessCheck.
func (m MarkerCheck) Ready(line string) bool {
	return m != "" && strings.Contains(line, string(m))
}

// NewGate creates a Gate. A nil check matches DefaultSuccessMarker.
func NewGate(check ReadinessCheck, logger *log.Logger, onReady func()) *Gate {
	if check == nil {
		check = MarkerCheck(DefaultSuccessMarker)
	}
	return &Gate{check: check, logger: logger, onReady: onReady}
}

// Line handles one stdout line of the type-checker.
func (g *Gate) Line(line string) {
	consumed := false
	if g.check.Ready(line) {
		g.once.Do(func() {
			consumed = true
			g.fired = true
			g.logger.Print(readyMessage)
			if g.onReady != nil {
				g.onReady()
			}
		})
	}
	if !consumed && line != "" {
		g.logger.Print(line)
	}
}

// Fired reports whether the continuation ran. It must only be called from
// the goroutine that feeds Line.
func (g *Gate) Fired() bool {
	return g.fired
}
