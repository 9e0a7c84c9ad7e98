// SPDX-License-Identifier: MPL-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	goruntime "runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bleepbuild/bleep/internal/clock"
	"github.com/bleepbuild/bleep/internal/config"
	"github.com/bleepbuild/bleep/internal/dag"
	"github.com/bleepbuild/bleep/internal/issue"
	"github.com/bleepbuild/bleep/internal/logging"
	"github.com/bleepbuild/bleep/internal/runtime"
	"github.com/bleepbuild/bleep/internal/testutil"
	"github.com/bleepbuild/bleep/internal/workspace"
)

type fixture struct {
	root string
	ui   string
	out  string
	cfg  *config.Config
}

// newFixture lays out three modules: site depends on common and lib,
// lib depends on common. site and common have a tsconfig.json.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{root: root, ui: filepath.Join(root, "ui"), out: filepath.Join(root, "public", "compiled")}

	testutil.WriteManifest(t, filepath.Join(f.ui, "common"), map[string]any{
		"name":  "common",
		"build": map[string]any{"bundle": []any{map[string]any{"input": "src/common.ts"}}},
	})
	testutil.MustWriteFile(t, filepath.Join(f.ui, "common", "tsconfig.json"), "{}")

	testutil.WriteManifest(t, filepath.Join(f.ui, "lib"), map[string]any{
		"name":         "lib",
		"dependencies": map[string]any{"common": "*"},
		"build":        map[string]any{"bundle": []any{map[string]any{"input": "src/lib.js"}}},
	})

	testutil.WriteManifest(t, filepath.Join(f.ui, "site"), map[string]any{
		"name":         "site",
		"dependencies": map[string]any{"lib": "*", "common": "*", "jquery": "^3"},
		"build": map[string]any{
			"bundle": []any{map[string]any{"input": "src/site.ts"}},
			"pre":    []any{[]any{"touch", "pre.txt"}},
		},
	})
	testutil.MustWriteFile(t, filepath.Join(f.ui, "site", "tsconfig.json"), "{}")

	cfg := config.DefaultConfig()
	cfg.Typecheck.Enabled = false
	cfg.CSS.Enabled = false
	cfg.Watch.Manifests = false
	f.cfg = cfg.Resolve(root)
	return f
}

func names(mods []*workspace.Module) []string {
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Name
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func countLines(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	return strings.Count(string(data), "\n")
}

// fakeBundler emits one cycle for site.js and then idles until killed.
func fakeBundler(t *testing.T, f *fixture) string {
	t.Helper()
	output := filepath.Join(f.out, "site.js")
	body := fmt.Sprintf(`echo x >> %[1]q
echo '{"code":"START"}'
echo '{"code":"BUNDLE_START","output":["%[2]s"]}'
read ack
echo '{"code":"BUNDLE_END","output":["%[2]s"],"duration":7}'
read release
echo '{"code":"END"}'
while read line; do :; done`, filepath.Join(f.root, "starts"), output)
	return testutil.WriteScript(t, f.root, "bundler.sh", body)
}

func TestValidate_UnknownModule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := LoadResolver(t.Context(), f.cfg)
	if err != nil {
		t.Fatalf("LoadResolver() error = %v", err)
	}

	if err := Validate(res.Registry(), []string{"site", All}); err != nil {
		t.Errorf("Validate(known) error = %v", err)
	}

	err = Validate(res.Registry(), []string{"site", "nope", "ghost", "nope"})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("Validate() error = %v, want ErrUnknownModule", err)
	}
	var unknown *UnknownModuleError
	if !errors.As(err, &unknown) || !slices.Equal(unknown.Names, []string{"nope", "ghost"}) {
		t.Errorf("unknown names = %+v", unknown)
	}
	if got := issue.IssueOf(err); got == nil || got.Id() != issue.UnknownModuleId {
		t.Errorf("IssueOf() = %v, want UnknownModuleId", got)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error %v is not actionable", err)
	}
	if !slices.Contains(ae.Suggestions, "Known modules: common, lib, site") {
		t.Errorf("suggestions = %q", ae.Suggestions)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res, err := LoadResolver(t.Context(), f.cfg)
	if err != nil {
		t.Fatalf("LoadResolver() error = %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		want  []string
		typed []string // modules whose bundles were dropped
	}{
		{"named", []string{"site"}, []string{"common", "lib", "site"}, nil},
		{"dependency only", []string{"lib"}, []string{"common", "lib"}, nil},
		{"all keeps registry order", []string{"lib", All}, []string{"common", "lib", "site"}, nil},
		{"empty is type-check only", nil, []string{"common", "lib", "site"}, []string{"common", "site"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mods, err := Select(res, tt.args)
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got := names(mods); !slices.Equal(got, tt.want) {
				t.Fatalf("Select() = %v, want %v", got, tt.want)
			}
			for _, m := range mods {
				dropped := slices.Contains(tt.typed, m.Name)
				if dropped != (len(m.Bundles) == 0) {
					t.Errorf("%s: bundles = %d, dropped = %v", m.Name, len(m.Bundles), dropped)
				}
			}
		})
	}

	// The registry itself is never modified by the type-check-only selection.
	if site, _ := res.Registry().Get("site"); len(site.Bundles) != 1 {
		t.Error("Select mutated a registered module")
	}
}

func TestLoadSnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Typecheck.Enabled = true

	snap, err := LoadSnapshot(t.Context(), &cfg, []string{"site"})
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap.Plan == nil || snap.Plan.Len() != 3 {
		t.Fatalf("Plan = %+v, want 3 bundles", snap.Plan)
	}
	if !snap.Plan.IsTrigger(filepath.Join(f.out, "site.js")) {
		t.Error("site.js should be a trigger output")
	}
	if snap.ProjectFile != filepath.Join(f.ui, "bleep.tsconfig.json") {
		t.Errorf("ProjectFile = %q", snap.ProjectFile)
	}
	data, err := os.ReadFile(snap.ProjectFile)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	if !strings.Contains(string(data), filepath.Join(f.ui, "site")) || strings.Contains(string(data), filepath.Join(f.ui, "lib")) {
		t.Errorf("project references = %s", data)
	}
}

func TestLoadSnapshot_TypecheckOnlyHasNoPlan(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	// Without lib in the way, an empty selection owns no bundles at all.
	if err := os.RemoveAll(filepath.Join(f.ui, "lib")); err != nil {
		t.Fatal(err)
	}
	testutil.WriteManifest(t, filepath.Join(f.ui, "site"), map[string]any{
		"name":         "site",
		"dependencies": map[string]any{"common": "*"},
		"build":        map[string]any{"bundle": []any{map[string]any{"input": "src/site.ts"}}},
	})

	snap, err := LoadSnapshot(t.Context(), f.cfg, nil)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap.Plan != nil {
		t.Errorf("Plan = %+v, want nil", snap.Plan)
	}
	if got := names(snap.Modules); !slices.Equal(got, []string{"common", "site"}) {
		t.Errorf("Modules = %v", got)
	}
}

func TestLoadSnapshot_Errors(t *testing.T) {
	t.Parallel()

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		testutil.WriteManifest(t, filepath.Join(f.ui, "common"), map[string]any{
			"name":         "common",
			"dependencies": map[string]any{"site": "*"},
		})
		_, err := LoadSnapshot(t.Context(), f.cfg, []string{"site"})
		var cycle *dag.CycleError
		if !errors.As(err, &cycle) {
			t.Fatalf("error = %v, want *dag.CycleError", err)
		}
		if got := issue.IssueOf(err); got == nil || got.Id() != issue.DependencyCycleId {
			t.Errorf("IssueOf() = %v", got)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		testutil.WriteManifest(t, filepath.Join(f.ui, "copy"), map[string]any{"name": "lib"})
		_, err := LoadSnapshot(t.Context(), f.cfg, []string{"site"})
		if got := issue.IssueOf(err); got == nil || got.Id() != issue.DuplicateModuleId {
			t.Errorf("IssueOf(%v) = %v", err, got)
		}
	})

	t.Run("output conflict", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		testutil.WriteManifest(t, filepath.Join(f.ui, "lib"), map[string]any{
			"name":  "lib",
			"build": map[string]any{"bundle": []any{map[string]any{"input": "src/lib.js", "output": "site"}}},
		})
		_, err := LoadSnapshot(t.Context(), f.cfg, []string{All})
		if got := issue.IssueOf(err); got == nil || got.Id() != issue.OutputConflictId {
			t.Errorf("IssueOf(%v) = %v", err, got)
		}
	})

	t.Run("hook syntax under the virtual shell", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		testutil.WriteManifest(t, filepath.Join(f.ui, "lib"), map[string]any{
			"name":  "lib",
			"build": map[string]any{"post": []any{[]any{"echo", "'unterminated"}}},
		})

		if _, err := LoadSnapshot(t.Context(), f.cfg, []string{"lib"}); err != nil {
			t.Fatalf("native runtime must not parse hooks, got %v", err)
		}

		cfg := *f.cfg
		cfg.Hooks.Runtime = config.RuntimeVirtual
		_, err := LoadSnapshot(t.Context(), &cfg, []string{"lib"})
		if got := issue.IssueOf(err); got == nil || got.Id() != issue.ManifestInvalidId {
			t.Errorf("IssueOf(%v) = %v", err, got)
		}
		if err == nil || !strings.Contains(err.Error(), "lib") {
			t.Errorf("error %v does not name the module", err)
		}
	})
}

func TestRun_UnknownModuleStartsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}

	o := New(Options{Config: &cfg})
	err := o.Run(t.Context(), []string{"nope"})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("Run() error = %v, want ErrUnknownModule", err)
	}
	if n := countLines(filepath.Join(f.root, "starts")); n != 0 {
		t.Errorf("bundler started %d time(s)", n)
	}
}

func TestRun_NoShellForHooks(t *testing.T) {
	// Not parallel: replaces PATH.
	if goruntime.GOOS == "windows" {
		t.Skip("shell lookup differs on windows")
	}

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}
	t.Setenv("PATH", t.TempDir())

	err := New(Options{Config: &cfg}).Run(t.Context(), []string{"site"})
	if !errors.Is(err, runtime.ErrUnavailable) {
		t.Fatalf("Run() error = %v, want runtime.ErrUnavailable", err)
	}
	if got := issue.IssueOf(err); got == nil || got.Id() != issue.HookRuntimeUnavailableId {
		t.Errorf("IssueOf() = %v", got)
	}
	if n := countLines(filepath.Join(f.root, "starts")); n != 0 {
		t.Errorf("bundler started %d time(s)", n)
	}
}

func TestRun_BundleCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}

	var logs testutil.Buffer
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	fake := clock.NewFake(time.Time{})
	o := New(Options{
		Config:    &cfg,
		Logs:      logging.New(&logs, logging.Options{}),
		Clock:     fake,
		StartTime: fake.Now(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx, []string{"site"}) }()

	waitFor(t, "cycle summary", func() bool { return logs.Contains("Built 1 module in") })

	if _, err := os.Stat(filepath.Join(f.ui, "site", "pre.txt")); err != nil {
		t.Errorf("pre-hook did not run before the summary: %v", err)
	}
	if !logs.Contains("not found '" + filepath.Join(f.out, "site.js") + "'") {
		t.Errorf("missing bundle line in:\n%s", logs.String())
	}
	if o.Snapshot() == nil || o.Snapshot().Plan.Len() != 3 {
		t.Errorf("Snapshot() = %+v", o.Snapshot())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BundlerExitIsFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{testutil.WriteScript(t, f.root, "crash.sh", `echo '{"code":"START"}'
exit 3`)}

	err := New(Options{Config: &cfg}).Run(t.Context(), []string{"site"})
	if !errors.Is(err, ErrBundlerExited) {
		t.Fatalf("Run() error = %v, want ErrBundlerExited", err)
	}
	if got := issue.IssueOf(err); got == nil || got.Id() != issue.BundlerFailedId {
		t.Errorf("IssueOf() = %v", got)
	}
}

func TestRun_WaitsForTypecheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}
	cfg.Typecheck.Enabled = true
	gate := filepath.Join(f.root, "gate")
	cfg.Typecheck.Command = []string{testutil.WriteScript(t, f.root, "tsc.sh", fmt.Sprintf(`echo "Starting compilation in watch mode..."
while [ ! -f %q ]; do sleep 0.05; done
echo "Found 0 errors. Watching for file changes."
exec sleep 60`, gate))}

	var logs testutil.Buffer
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errCh := make(chan error, 1)
	o := New(Options{Config: &cfg, Logs: logging.New(&logs, logging.Options{})})
	go func() { errCh <- o.Run(ctx, []string{"site"}) }()

	waitFor(t, "tsc output", func() bool { return logs.Contains("Starting compilation") })
	time.Sleep(100 * time.Millisecond)
	if n := countLines(filepath.Join(f.root, "starts")); n != 0 {
		t.Fatalf("bundler started before the type-checker was ready")
	}

	testutil.MustWriteFile(t, gate, "")
	waitFor(t, "bundler start", func() bool { return countLines(filepath.Join(f.root, "starts")) == 1 })
	if !logs.Contains("tsc build success. Begin watching...") {
		t.Errorf("missing readiness line in:\n%s", logs.String())
	}
	if logs.Contains("Found 0 errors.") {
		t.Error("first success marker should be replaced, not forwarded")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_ManifestChangeRestartsBundler(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}
	cfg.Watch.Manifests = true
	cfg.Watch.Debounce = 50 * time.Millisecond

	var logs testutil.Buffer
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errCh := make(chan error, 1)
	o := New(Options{Config: &cfg, Logs: logging.New(&logs, logging.Options{})})
	go func() { errCh <- o.Run(ctx, []string{"site"}) }()

	starts := filepath.Join(f.root, "starts")
	waitFor(t, "first session", func() bool { return logs.Contains("Built 1 module") })
	first := o.Snapshot()

	testutil.WriteManifest(t, filepath.Join(f.ui, "lib"), map[string]any{
		"name":         "lib",
		"dependencies": map[string]any{"common": "*"},
		"build": map[string]any{"bundle": []any{
			map[string]any{"input": "src/lib.js"},
			map[string]any{"input": "src/extra.js", "output": "lib.extra"},
		}},
	})

	waitFor(t, "second session", func() bool { return countLines(starts) >= 2 })
	second := o.Snapshot()
	if second == first {
		t.Fatal("snapshot was not replaced")
	}
	if second.Plan.Len() != 4 {
		t.Errorf("new plan has %d bundles, want 4", second.Plan.Len())
	}
	if first.Plan.Len() != 3 {
		t.Errorf("old snapshot changed: %d bundles", first.Plan.Len())
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestRun_BrokenManifestKeepsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := *f.cfg
	cfg.Bundler.Command = []string{fakeBundler(t, f)}
	cfg.Watch.Manifests = true
	cfg.Watch.Debounce = 50 * time.Millisecond

	var logs testutil.Buffer
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errCh := make(chan error, 1)
	o := New(Options{Config: &cfg, Logs: logging.New(&logs, logging.Options{})})
	go func() { errCh <- o.Run(ctx, []string{"site"}) }()

	waitFor(t, "first session", func() bool { return logs.Contains("Built 1 module") })
	first := o.Snapshot()

	testutil.MustWriteFile(t, filepath.Join(f.ui, "lib", "package.json"), `{"name": 42}`)
	waitFor(t, "reload error", func() bool { return logs.Contains("reload failed") })

	if o.Snapshot() != first {
		t.Error("a broken manifest replaced the snapshot")
	}
	if n := countLines(filepath.Join(f.root, "starts")); n != 1 {
		t.Errorf("bundler started %d times, want 1", n)
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
