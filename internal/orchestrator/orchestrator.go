// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bleepbuild/bleep/internal/bundler"
	"github.com/bleepbuild/bleep/internal/clock"
	"github.com/bleepbuild/bleep/internal/config"
	"github.com/bleepbuild/bleep/internal/csswatch"
	"github.com/bleepbuild/bleep/internal/hook"
	"github.com/bleepbuild/bleep/internal/issue"
	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/metrics"
	"github.com/bleepbuild/bleep/internal/multiplexer"
	"github.com/bleepbuild/bleep/internal/runtime"
	"github.com/bleepbuild/bleep/internal/typecheck"
	"github.com/bleepbuild/bleep/internal/watch"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ErrBundlerExited is wrapped when the bundler stops while bleep still runs.
var ErrBundlerExited = errors.New("bundler exited")

type (
	// Options configures New.
	Options struct {
		// Config must have absolute directories (see config.Config.Resolve).
		Config   *config.Config
		Logs     *logging.Factory
		Recorder metrics.Recorder
		// Registry is served on Config.Metrics.Listen.
		Registry *prom.Registry
		Clock    clock.Clock
		// StartTime seeds the first cycle; zero means "when Run was called".
		StartTime time.Time
		// CacheDir receives the embedded bundler driver.
		CacheDir string
	}

	// Orchestrator runs one build: type-checker, CSS watcher, bundler
	// session and manifest watcher under a single errgroup.
	Orchestrator struct {
		cfg       *config.Config
		logs      *logging.Factory
		recorder  metrics.Recorder
		registry  *prom.Registry
		clock     clock.Clock
		startTime time.Time
		cacheDir  string

		names    []string
		current  atomic.Pointer[Snapshot]
		reloaded chan struct{}
	}
)

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	logs := opts.Logs
	if logs == nil {
		logs = logging.Discard()
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	reg := opts.Registry
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &Orchestrator{
		cfg:       opts.Config,
		logs:      logs,
		recorder:  metrics.OrNoop(opts.Recorder),
		registry:  reg,
		clock:     c,
		startTime: opts.StartTime,
		cacheDir:  opts.CacheDir,
		reloaded:  make(chan struct{}, 1),
	}
}

// Snapshot returns the snapshot the current bundler session was built from.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.current.Load()
}

// Run builds names in watch mode until ctx is cancelled or a watched tool
// fails fatally. Argument errors are returned before any subprocess starts.
func (o *Orchestrator) Run(ctx context.Context, names []string) error {
	if o.startTime.IsZero() {
		o.startTime = o.clock.Now()
	}
	o.names = names

	snap, err := LoadSnapshot(ctx, o.cfg, names)
	if err != nil {
		return err
	}
	o.current.Store(snap)

	hooks, policy, err := o.hookRunner()
	if err != nil {
		return err
	}
	defer hooks.Wait()

	command, err := o.bundlerCommand(snap)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var readyOnce sync.Once
	ready := make(chan struct{})
	markReady := func() { readyOnce.Do(func() { close(ready) }) }

	if o.cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, o.cfg.Metrics.Listen, o.registry, o.logs.For(logging.ContextMetrics))
		})
	}

	if o.cfg.CSS.Enabled {
		sup := csswatch.New(csswatch.Options{
			Command:        o.cfg.CSS.Command,
			Dir:            o.cfg.CSS.Dir,
			BenignExitCode: o.cfg.CSS.BenignExitCode,
			MaxRetries:     o.cfg.CSS.MaxRetries,
			RetryDelay:     o.cfg.CSS.RetryDelay,
			Logger:         o.logs.For(logging.ContextCSS),
			Recorder:       o.recorder,
			Clock:          o.clock,
		})
		g.Go(func() error {
			if err := sup.Run(gctx); err != nil {
				return fatal(err, "watch css", issue.CSSWatchFailedId)
			}
			return nil
		})
	}

	if o.cfg.Typecheck.Enabled {
		g.Go(func() error {
			err := typecheck.Watch(gctx, typecheck.Options{
				Command: o.cfg.Typecheck.Command,
				Dir:     o.cfg.TsconfigDir,
				Project: snap.ProjectFile,
				Check:   typecheck.MarkerCheck(o.cfg.Typecheck.SuccessMarker),
				Logger:  o.logs.For(logging.ContextTypecheck),
			}, markReady)
			if err != nil {
				return fatal(err, "type-check", issue.TypecheckFailedId)
			}
			return nil
		})
	} else {
		markReady()
	}

	g.Go(func() error {
		return o.superviseBundler(gctx, ready, hooks, policy, command)
	})

	if o.cfg.Watch.Manifests {
		w, err := watch.New(watch.Config{
			Patterns: o.cfg.Modules.Patterns,
			Debounce: o.cfg.Watch.Debounce,
			BaseDir:  o.cfg.UIDir,
			OnChange: o.reload,
			Logger:   o.logs.For(logging.ContextWatch),
		})
		if err != nil {
			return fmt.Errorf("watch manifests: %w", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	return g.Wait()
}

func (o *Orchestrator) hookRunner() (*hook.Runner, multiplexer.PrePolicy, error) {
	rt, err := runtime.New(runtime.Mode(o.cfg.Hooks.Runtime))
	if err != nil {
		return nil, "", err
	}
	if !rt.Available() {
		return nil, "", issue.NewErrorContext().
			WithOperation("prepare hooks").
			WithResource(rt.Name() + " runtime").
			WithIssue(issue.HookRuntimeUnavailableId).
			Wrap(runtime.ErrUnavailable).
			BuildError()
	}
	policy, err := multiplexer.ParsePrePolicy(string(o.cfg.Hooks.PreFailure))
	if err != nil {
		return nil, "", err
	}
	env, err := runtime.LoadEnvFile(o.cfg.Hooks.EnvFile, o.cfg.UIDir)
	if err != nil {
		return nil, "", err
	}
	// Generators after a failed one only produce work a skipped bundle
	// never uses.
	failFast := policy == multiplexer.PreSkipBundle
	return hook.NewRunner(hook.Options{
		Runtime:       rt,
		Env:           env,
		Logs:          o.logs,
		Recorder:      o.recorder,
		StopOnFailure: failFast,
	}), policy, nil
}

// bundlerCommand returns the configured bundler argv, or writes the embedded
// driver when a bundler is needed and none is configured.
func (o *Orchestrator) bundlerCommand(snap *Snapshot) ([]string, error) {
	if len(o.cfg.Bundler.Command) > 0 {
		return o.cfg.Bundler.Command, nil
	}
	if snap.Plan == nil && !o.cfg.Watch.Manifests {
		return nil, nil
	}
	dir := o.cacheDir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, config.AppName)
	}
	return bundler.DefaultCommand(dir)
}

// superviseBundler starts a bundler session once the type-checker is ready
// and restarts it with a fresh snapshot after every manifest reload.
func (o *Orchestrator) superviseBundler(ctx context.Context, ready <-chan struct{}, hooks *hook.Runner, policy multiplexer.PrePolicy, command []string) error {
	select {
	case <-ctx.Done():
		return nil
	case <-ready:
	}
	// The snapshot is read below; earlier reloads are already in it.
	select {
	case <-o.reloaded:
	default:
	}

	start := o.startTime
	for {
		snap := o.current.Load()
		if snap.Plan == nil {
			multiplexer.Summary(o.logs, o.clock, start)
			start = time.Time{}
			select {
			case <-ctx.Done():
				return nil
			case <-o.reloaded:
				continue
			}
		}

		if err := o.runSession(ctx, snap, hooks, policy, command, start); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		start = time.Time{}
	}
}

// runSession returns nil when the session ended because ctx was cancelled
// or the manifests changed.
func (o *Orchestrator) runSession(ctx context.Context, snap *Snapshot, hooks *hook.Runner, policy multiplexer.PrePolicy, command []string, start time.Time) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.logs.For(logging.ContextBundler).Debug("starting session", "bundles", snap.Plan.Len())

	s, err := bundler.Start(sctx, bundler.Options{
		Command: command,
		Dir:     o.cfg.UIDir,
		Configs: snap.Plan.Configs,
		Logger:  o.logs.For(logging.ContextBundler),
	})
	if err != nil {
		return fatal(err, "start bundler", issue.BundlerFailedId)
	}

	mux := multiplexer.New(multiplexer.Options{
		Plan:      snap.Plan,
		Hooks:     hooks,
		Logs:      o.logs,
		Recorder:  o.recorder,
		PrePolicy: policy,
		Clock:     o.clock,
		StartTime: start,
	})
	handled := make(chan struct{})
	go func() {
		defer close(handled)
		_ = mux.Run(sctx, s)
	}()

	stop := func() {
		cancel()
		<-s.Done()
		<-handled
	}

	select {
	case <-ctx.Done():
		stop()
		return nil
	case <-o.reloaded:
		o.logs.For(logging.ContextWatch).Info("manifests changed, restarting bundler")
		stop()
		return nil
	case <-handled:
		if ctx.Err() != nil {
			return nil
		}
		cause := s.Wait()
		if cause == nil {
			cause = ErrBundlerExited
		} else {
			cause = fmt.Errorf("%w: %w", ErrBundlerExited, cause)
		}
		return fatal(cause, "run bundler", issue.BundlerFailedId)
	}
}

// reload is the manifest watcher callback. A broken manifest keeps the
// running session alive; the error is only logged.
func (o *Orchestrator) reload(ctx context.Context, changed []string) error {
	logger := o.logs.For(logging.ContextWatch)
	logger.Debug("manifest change", "paths", changed)

	snap, err := LoadSnapshot(ctx, o.cfg, o.names)
	if err != nil {
		logger.Error(logging.ErrorStyle.Render("reload failed, keeping the previous build"), "err", err)
		return nil
	}
	o.current.Store(snap)
	o.logs.Slog().Debug("snapshot swapped", "modules", len(snap.Modules), "project", snap.ProjectFile)

	select {
	case o.reloaded <- struct{}{}:
	default:
	}
	return nil
}

func fatal(err error, operation string, id issue.Id) error {
	return issue.NewErrorContext().
		WithOperation(operation).
		WithIssue(id).
		Wrap(err).
		BuildError()
}
