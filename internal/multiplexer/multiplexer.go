// SPDX-License-Identifier: MPL-2.0

// Package multiplexer turns the bundler's event stream into bleep's status
// output and runs module hooks around trigger outputs. Events are handled
// one at a time; a pre-hook holds up both the handler and, through the
// withheld acknowledgement, the bundling of its output.
package multiplexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bleepbuild/bleep/internal/bundler"
	"github.com/bleepbuild/bleep/internal/clock"
	"github.com/bleepbuild/bleep/internal/hook"
	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/metrics"
	"github.com/bleepbuild/bleep/internal/sequencer"
	"github.com/bleepbuild/bleep/internal/workspace"
)

// unknownModule names outputs missing from the ownership map.
const unknownModule = "unknown"

// Pre-hook failure policies.
const (
	// PreContinue logs a failed pre-hook and bundles anyway.
	PreContinue PrePolicy = "continue"
	// PreSkipBundle tells the bundler not to write the output.
	PreSkipBundle PrePolicy = "skip-bundle"
)

const (
	// Idle waits for the next cycle.
	Idle State = iota
	// Started is inside a cycle between bundles.
	Started
	// Bundling is between BUNDLE_START and BUNDLE_END of one output.
	Bundling
)

type (
	// PrePolicy decides what a failed pre-hook means for its bundle.
	PrePolicy string

	// State is the multiplexer's position in the watch cycle.
	State int

	// Session is the bundler side of a watch session.
	Session interface {
		Events() <-chan bundler.Event
		Ack(output string, skip bool) error
		Release(output string) error
	}

	// HookRunner runs a module's hook list.
	HookRunner interface {
		Run(ctx context.Context, mod *workspace.Module, phase hook.Phase, mode hook.Mode) error
	}

	// Options configures New.
	Options struct {
		Plan      *sequencer.Plan
		Hooks     HookRunner
		Logs      *logging.Factory
		Recorder  metrics.Recorder
		PrePolicy PrePolicy
		Clock     clock.Clock
		// StartTime seeds the first cycle so its summary covers startup.
		StartTime time.Time
	}

	// Multiplexer consumes one bundler session.
	Multiplexer struct {
		plan     *sequencer.Plan
		hooks    HookRunner
		logs     *logging.Factory
		recorder metrics.Recorder
		policy   PrePolicy
		clock    clock.Clock

		state      State
		cycleStart time.Time
		completed  int
		lastModule string
		skipped    map[string]struct{}
	}
)

// ParsePrePolicy validates a policy name; the empty name selects PreContinue.
func ParsePrePolicy(s string) (PrePolicy, error) {
	switch PrePolicy(s) {
	case "", PreContinue:
		return PreContinue, nil
	case PreSkipBundle:
		return PreSkipBundle, nil
	default:
		return "", fmt.Errorf("unknown pre-hook failure policy %q", s)
	}
}

// String returns the state name.
func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Bundling:
		return "bundling"
	default:
		return "idle"
	}
}

// New creates a Multiplexer for one plan.
func New(opts Options) *Multiplexer {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	logs := opts.Logs
	if logs == nil {
		logs = logging.Discard()
	}
	policy := opts.PrePolicy
	if policy == "" {
		policy = PreContinue
	}
	return &Multiplexer{
		plan:       opts.Plan,
		hooks:      opts.Hooks,
		logs:       logs,
		recorder:   metrics.OrNoop(opts.Recorder),
		policy:     policy,
		clock:      c,
		cycleStart: opts.StartTime,
		lastModule: unknownModule,
		skipped:    make(map[string]struct{}),
	}
}

// Run handles events until the session's stream ends or ctx is cancelled.
func (m *Multiplexer) Run(ctx context.Context, s Session) error {
	events := s.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Handle(ctx, s, ev)
		}
	}
}

// State returns the current cycle state.
func (m *Multiplexer) State() State {
	return m.state
}

// Handle processes one event.
func (m *Multiplexer) Handle(ctx context.Context, s Session, ev bundler.Event) {
	switch ev.Code {
	case bundler.CodeStart:
		m.state = Started
		m.markStart()
	case bundler.CodeBundleStart:
		m.state = Bundling
		m.markStart()
		m.bundleStart(ctx, s, ev.PrimaryOutput())
	case bundler.CodeBundleEnd:
		m.state = Started
		m.bundleEnd(ctx, s, ev)
	case bundler.CodeError:
		m.bundleError(ev.Error)
	case bundler.CodeEnd:
		m.done()
		m.state = Idle
	}
}

func (m *Multiplexer) markStart() {
	if m.cycleStart.IsZero() {
		m.cycleStart = m.clock.Now()
	}
}

func (m *Multiplexer) owner(output string) (*workspace.Module, string) {
	if mod, ok := m.plan.Owner(output); ok {
		return mod, mod.Name
	}
	return nil, unknownModule
}

func (m *Multiplexer) bundleStart(ctx context.Context, s Session, output string) {
	mod, name := m.owner(output)
	m.lastModule = name
	// A failed build emits ERROR without BUNDLE_END, so a skip from an
	// earlier cycle may still be recorded.
	delete(m.skipped, output)
	if !m.plan.IsTrigger(output) {
		return
	}

	skip := false
	if mod != nil && m.hooks != nil {
		if err := m.hooks.Run(ctx, mod, hook.PhasePre, hook.DefaultMode(hook.PhasePre)); err != nil && m.policy == PreSkipBundle {
			skip = true
			m.skipped[output] = struct{}{}
			m.logs.For(name).Warn(logging.WarningStyle.Render("pre-hook failed, skipping " + filepath.Base(output)))
		}
	}
	if err := s.Ack(output, skip); err != nil {
		m.logs.For(logging.ContextBundler).Warn("acknowledge bundle", "output", output, "err", err)
	}
}

func (m *Multiplexer) bundleEnd(ctx context.Context, s Session, ev bundler.Event) {
	output := ev.PrimaryOutput()
	mod, name := m.owner(output)
	logger := m.logs.For(logging.ContextBundler)

	_, wasSkipped := m.skipped[output]
	delete(m.skipped, output)

	if m.plan.IsTrigger(output) && mod != nil && m.hooks != nil && !wasSkipped {
		_ = m.hooks.Run(ctx, mod, hook.PhasePost, hook.DefaultMode(hook.PhasePost))
	}

	elapsed := logging.MutedStyle.Render(strconv.FormatInt(ev.Duration, 10) + "ms")
	outcome := metrics.OutcomeSuccess
	switch {
	case wasSkipped:
		outcome = metrics.OutcomeSkipped
		logger.Print(fmt.Sprintf("skipped '%s' - %s", logging.WarningStyle.Render(filepath.Base(output)), elapsed))
	case exists(output):
		logger.Print(fmt.Sprintf("bundled '%s' - %s", logging.OutputStyle.Render(filepath.Base(output)), elapsed))
	default:
		outcome = metrics.OutcomeNotFound
		logger.Print(fmt.Sprintf("not found '%s' - %s", logging.ErrorStyle.Render(output), elapsed))
	}
	m.recorder.ObserveBundle(name, ev.Elapsed(), outcome)
	m.completed++

	if err := s.Release(output); err != nil {
		logger.Debug("release bundle result", "output", output, "err", err)
	}
}

func (m *Multiplexer) bundleError(err *bundler.BuildError) {
	name := m.lastModule
	logger := m.logs.For(logging.ErrorStyle.Render(name))
	m.recorder.IncBundleError(name)

	if err == nil {
		logger.Error("bundler reported an error without details")
		logger.Error(logging.ErrorStyle.Render(fmt.Sprintf("*** %s module bundle failed! ***", name)))
		return
	}
	if err.Code == "" {
		logger.Error(err.Message)
		return
	}

	file := err.File()
	if file == "" {
		file = name
	}
	where := ""
	if err.Loc != nil {
		where = fmt.Sprintf("line %d column %d of ", err.Loc.Line, err.Loc.Column)
	}
	logger.Error(fmt.Sprintf("%s in %s'%s'", logging.ErrorStyle.Render(err.Code), where, logging.OutputStyle.Render(file)))
	if err.Frame != "" {
		logger.Error(logging.ErrorStyle.Render(err.Frame))
	}
	logger.Error(logging.ErrorStyle.Render(fmt.Sprintf("*** %s module bundle failed! ***", name)))
}

func (m *Multiplexer) done() {
	results := "Done"
	if m.completed > 0 {
		plural := ""
		if m.completed > 1 {
			plural = "s"
		}
		results = fmt.Sprintf("Built %d module%s", m.completed, plural)
	}

	elapsed := ""
	if !m.cycleStart.IsZero() {
		d := m.clock.Since(m.cycleStart)
		secs := strconv.FormatFloat(float64(d.Milliseconds())/1000, 'f', -1, 64)
		elapsed = "in " + logging.SuccessStyle.Render(secs) + "s "
		m.recorder.ObserveCycle(d, m.completed)
	}
	m.logs.Base().Print(fmt.Sprintf("%s %s- watching...", results, elapsed))

	m.cycleStart = time.Time{}
	m.completed = 0
}

// Summary reports the end of a run that started no bundler session.
func Summary(logs *logging.Factory, c clock.Clock, start time.Time) {
	m := New(Options{Logs: logs, Clock: c, StartTime: start, Plan: &sequencer.Plan{}})
	m.done()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
