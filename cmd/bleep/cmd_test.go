// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bleepbuild/bleep/internal/config"
	"github.com/bleepbuild/bleep/internal/orchestrator"
	"github.com/bleepbuild/bleep/internal/testutil"
)

type harness struct {
	dir    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{dir: t.TempDir()}
	ui := filepath.Join(h.dir, "ui")
	testutil.WriteManifest(t, filepath.Join(ui, "common"), map[string]any{"name": "common"})
	testutil.WriteManifest(t, filepath.Join(ui, "site"), map[string]any{
		"name":         "site",
		"dependencies": map[string]any{"common": "*", "jquery": "^3"},
		"build":        map[string]any{"alias": "web", "bundle": []any{map[string]any{"input": "src/site.ts"}}},
	})
	testutil.MustWriteFile(t, filepath.Join(ui, "site", "tsconfig.json"), "{}")
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	app, err := NewApp(Dependencies{Stdout: &h.stdout, Stderr: &h.stderr, Dir: h.dir})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)
	return root.ExecuteContext(t.Context())
}

func TestDeps(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "deps", "site"); err != nil {
		t.Fatalf("deps error = %v\n%s", err, h.stderr.String())
	}
	if got, want := h.stdout.String(), "common\nsite\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestDeps_UnknownModule(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run(t, "deps", "site", "nope")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitArgument {
		t.Fatalf("error = %v, want exit code %d", err, ExitArgument)
	}
	if !errors.Is(err, orchestrator.ErrUnknownModule) {
		t.Errorf("error %v does not wrap ErrUnknownModule", err)
	}
	if !strings.Contains(h.stderr.String(), "Argument error: ") || !strings.Contains(h.stderr.String(), "'nope'") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
	if h.stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", h.stdout.String())
	}
}

func TestBuild_UnknownModuleIsArgumentError(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run(t, "build", "--no-css", "--no-typecheck", "--no-watch", "ghost")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitArgument {
		t.Fatalf("error = %v, want argument error", err)
	}
	if _, statErr := os.Stat(filepath.Join(h.dir, "ui", "bleep.tsconfig.json")); statErr == nil {
		t.Error("project file written despite the argument error")
	}
}

func TestBuild_InvalidFlag(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.run(t, "build", "--pre-failure", "abort", "site")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitArgument {
		t.Fatalf("error = %v, want argument error", err)
	}
	if !errors.Is(err, config.ErrInvalidPreFailurePolicy) {
		t.Errorf("error %v does not wrap ErrInvalidPreFailurePolicy", err)
	}
}

func TestModules(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "modules"); err != nil {
		t.Fatalf("modules error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("stdout = %q", h.stdout.String())
	}
	if !strings.HasPrefix(lines[0], "common common") {
		t.Errorf("line 0 = %q", lines[0])
	}
	for _, want := range []string{"site (web) site", " ts", "site.js*", "deps: common, jquery"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("line 1 = %q, missing %q", lines[1], want)
		}
	}
}

func TestConfig_InitPathShow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.run(t, "config", "path"); err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "(using defaults)") {
		t.Errorf("path before init = %q", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run(t, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	cfgPath := filepath.Join(h.dir, config.FileName())
	if !strings.Contains(h.stdout.String(), "Created") {
		t.Errorf("init output = %q", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run(t, "config", "init"); err != nil {
		t.Fatalf("second config init error = %v", err)
	}
	if !strings.Contains(h.stdout.String(), "already exists") {
		t.Errorf("second init output = %q", h.stdout.String())
	}

	h.stdout.Reset()
	if err := h.run(t, "config", "path"); err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if strings.TrimSpace(h.stdout.String()) != cfgPath {
		t.Errorf("path after init = %q, want %q", h.stdout.String(), cfgPath)
	}

	h.stdout.Reset()
	if err := h.run(t, "config", "show"); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"Current Configuration", cfgPath, `pre_failure: "continue"`, filepath.Join(h.dir, "ui")} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("show output missing %q:\n%s", want, h.stdout.String())
		}
	}
}

func TestConfig_ShowInvalidFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	testutil.MustWriteFile(t, filepath.Join(h.dir, config.FileName()), `hooks: pre_failure: "abort"`)

	err := h.run(t, "config", "show")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitFailure {
		t.Fatalf("error = %v, want exit code %d", err, ExitFailure)
	}
	if h.stderr.Len() == 0 {
		t.Error("expected the config issue on stderr")
	}
}
