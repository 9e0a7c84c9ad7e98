// SPDX-License-Identifier: MPL-2.0

package process

import (
	"context"
	"errors"
	"io"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"
)

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *lines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.got)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun_SplitsLines(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var out, errOut lines
	code, err := Run(t.Context(), Command{
		Argv:   []string{"sh", "-c", "echo one; echo two; echo oops >&2"},
		Stdout: out.add,
		Stderr: errOut.add,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d, want 0", code)
	}
	if got := out.all(); !slices.Equal(got, []string{"one", "two"}) {
		t.Errorf("stdout = %q", got)
	}
	if got := errOut.all(); !slices.Equal(got, []string{"oops"}) {
		t.Errorf("stderr = %q", got)
	}
}

func TestRun_ExitCode(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	code, err := Run(t.Context(), Command{Argv: []string{"sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 3 {
		t.Errorf("code = %d, want 3", code)
	}

	exitErr := AsExitError("gulp", code)
	var target *ExitError
	if !errors.As(exitErr, &target) || target.Code != 3 {
		t.Errorf("AsExitError() = %v", exitErr)
	}
	if AsExitError("gulp", 0) != nil {
		t.Error("AsExitError(0) must be nil")
	}
}

func TestStart_Stdin(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var out lines
	p, err := Start(t.Context(), Command{
		Argv:   []string{"sh", "-c", "read line; echo got:$line"},
		Stdin:  true,
		Stdout: out.add,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := io.WriteString(p.Stdin(), "hello\n"); err != nil {
		t.Fatalf("write stdin: %v", err)
	}
	if _, err := p.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if got := out.all(); !slices.Equal(got, []string{"got:hello"}) {
		t.Errorf("stdout = %q", got)
	}
}

func TestStart_Cancel(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(t.Context())
	p, err := Start(ctx, Command{Argv: []string{"sh", "-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process was not terminated")
	}
	if _, err := p.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestStart_Errors(t *testing.T) {
	t.Parallel()

	if _, err := Start(t.Context(), Command{}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("empty argv error = %v", err)
	}
	if _, err := Start(t.Context(), Command{Argv: []string{"/nonexistent/bleep-tool"}}); err == nil {
		t.Error("expected error for missing program")
	}
}
