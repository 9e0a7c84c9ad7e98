// SPDX-License-Identifier: MPL-2.0

package metrics

import "time"

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
	OutcomeSkipped  = "skipped"
)

// Recorder defines observability hooks for a watch session. Implementations
// must be safe for concurrent use; post-hooks report from their own
// goroutines.
type Recorder interface {
	ObserveBundle(module string, d time.Duration, outcome string)
	IncBundleError(module string)
	ObserveCycle(d time.Duration, bundles int)
	IncHookRun(module, phase, outcome string)
	IncToolRestart(tool string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not
// configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBundle(string, time.Duration, string) {}
func (NoopRecorder) IncBundleError(string)                       {}
func (NoopRecorder) ObserveCycle(time.Duration, int)             {}
func (NoopRecorder) IncHookRun(string, string, string)           {}
func (NoopRecorder) IncToolRestart(string)                       {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
