// SPDX-License-Identifier: MPL-2.0

// Package process runs the long-lived external tools (type-checker, CSS
// watcher, bundler) with their output split into lines and routed to
// loggers. Cancelling the context terminates the whole process group.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxLineSize bounds a single output line. Bundler JSON events with large
// code frames stay well below this.
const maxLineSize = 1 << 20

// waitDelay is how long Wait waits for the group to exit after cancellation
// before closing pipes forcibly.
const waitDelay = 5 * time.Second

// ErrEmptyCommand is returned when a Command has no program.
var ErrEmptyCommand = errors.New("empty command")

type (
	// LineFunc receives one line of output without its trailing newline.
	LineFunc func(line string)

	// Command describes a subprocess.
	Command struct {
		// Name labels the process in errors.
		Name string
		// Argv is the program followed by its arguments.
		Argv []string
		Dir  string
		// Env is appended to the current environment.
		Env []string
		// Stdin opens a pipe to the process; otherwise stdin is empty.
		Stdin  bool
		Stdout LineFunc
		Stderr LineFunc
	}

	// Process is a started Command.
	Process struct {
		name  string
		cmd   *exec.Cmd
		stdin io.WriteCloser
		pumps sync.WaitGroup
		done  chan struct{}
		code  int
		err   error
	}

	// ExitError reports a non-zero exit.
	ExitError struct {
		Name string
		Code int
	}
)

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Name, e.Code)
}

// Start launches c. The process is killed when ctx is cancelled.
func Start(ctx context.Context, c Command) (*Process, error) {
	if len(c.Argv) == 0 || c.Argv[0] == "" {
		return nil, ErrEmptyCommand
	}
	name := c.Name
	if name == "" {
		name = c.Argv[0]
	}

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	configureGroup(cmd)
	cmd.WaitDelay = waitDelay

	p := &Process{name: name, cmd: cmd, done: make(chan struct{})}

	if c.Stdin {
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("%s: stdin pipe: %w", name, err)
		}
		p.stdin = w
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stdout pipe: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%s: stderr pipe: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p.pumps.Add(2)
	go p.pump(stdout, c.Stdout)
	go p.pump(stderr, c.Stderr)
	go p.wait(ctx)

	return p, nil
}

// Run starts c and waits for it.
func Run(ctx context.Context, c Command) (int, error) {
	p, err := Start(ctx, c)
	if err != nil {
		return -1, err
	}
	return p.Wait()
}

// Stdin returns the write end of the stdin pipe, or nil when the Command did
// not request one.
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Done is closed once the process has exited and its output is drained.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the process exits. It returns the exit code and, when
// the context was cancelled, the context's error. A non-zero exit is not an
// error by itself.
func (p *Process) Wait() (int, error) {
	<-p.done
	return p.code, p.err
}

// pump must finish before cmd.Wait, which closes the read ends.
func (p *Process) pump(r io.Reader, fn LineFunc) {
	defer p.pumps.Done()
	if fn == nil {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		fn(strings.TrimRight(sc.Text(), "\r"))
	}
	// Drain whatever follows an oversized line so the child never blocks.
	_, _ = io.Copy(io.Discard, r)
}

func (p *Process) wait(ctx context.Context) {
	defer close(p.done)

	p.pumps.Wait()
	err := p.cmd.Wait()
	p.code = p.cmd.ProcessState.ExitCode()

	if ctxErr := ctx.Err(); ctxErr != nil {
		p.err = ctxErr
		return
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = fmt.Errorf("%s: %w", p.name, err)
	}
}

// AsExitError converts a non-zero code into an *ExitError; zero yields nil.
func AsExitError(name string, code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Name: name, Code: code}
}
