// SPDX-License-Identifier: MPL-2.0

// Package bundler drives the bundler watch subprocess. Bundle configurations
// go out as a JSON file passed with --config; lifecycle events come back as
// JSON lines on stdout; acknowledgements and result releases go in as JSON
// lines on stdin.
package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bleepbuild/bleep/internal/process"
	"github.com/bleepbuild/bleep/internal/sequencer"

	"github.com/charmbracelet/log"
)

const eventBuffer = 64

// ErrClosed is returned when writing to a session whose process has exited.
var ErrClosed = errors.New("bundler session closed")

type (
	// Options configures Start.
	Options struct {
		// Command is the bundler argv; "--config <file>" is appended.
		Command []string
		Dir     string
		Env     []string
		Configs []sequencer.BundleConfig
		Logger  *log.Logger
	}

	// Session is a running bundler.
	Session struct {
		proc       *process.Process
		events     chan Event
		logger     *log.Logger
		configPath string

		mu    sync.Mutex
		stdin io.WriteCloser
		enc   *json.Encoder
	}
)

// Start writes the configuration file and launches the bundler. The process
// is terminated when ctx is cancelled.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if len(opts.Command) == 0 {
		return nil, process.ErrEmptyCommand
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	configPath, err := writeConfig(opts.Configs)
	if err != nil {
		return nil, err
	}

	s := &Session{
		events:     make(chan Event, eventBuffer),
		logger:     logger,
		configPath: configPath,
	}

	argv := append(append([]string(nil), opts.Command...), "--config", configPath)
	proc, err := process.Start(ctx, process.Command{
		Name:   "bundler",
		Argv:   argv,
		Dir:    opts.Dir,
		Env:    opts.Env,
		Stdin:  true,
		Stdout: s.decodeLine(ctx),
		Stderr: func(line string) {
			if line != "" {
				logger.Warn(line)
			}
		},
	})
	if err != nil {
		_ = os.Remove(configPath)
		return nil, err
	}
	s.proc = proc
	s.stdin = proc.Stdin()
	s.enc = json.NewEncoder(s.stdin)

	go func() {
		<-proc.Done()
		_ = os.Remove(configPath)
		close(s.events)
	}()

	return s, nil
}

// Events delivers decoded events in order. It is closed when the process
// exits.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Ack lets the bundler proceed with output. With skip set the bundler
// builds but writes nothing.
func (s *Session) Ack(output string, skip bool) error {
	return s.send(ack{Ack: output, Skip: skip})
}

// Release tells the bundler the result of output is no longer needed.
func (s *Session) Release(output string) error {
	return s.send(release{Close: output})
}

// Done is closed once the bundler exited.
func (s *Session) Done() <-chan struct{} {
	return s.proc.Done()
}

// Wait blocks until the bundler exits. A non-zero exit is reported as a
// *process.ExitError.
func (s *Session) Wait() error {
	code, err := s.proc.Wait()
	if err != nil {
		return err
	}
	return process.AsExitError("bundler", code)
}

func (s *Session) send(msg any) error {
	select {
	case <-s.proc.Done():
		return ErrClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(msg); err != nil {
		return fmt.Errorf("write to bundler: %w", err)
	}
	return nil
}

// decodeLine turns JSON event lines into Events and logs everything else.
func (s *Session) decodeLine(ctx context.Context) process.LineFunc {
	return func(line string) {
		ev, ok := parseEvent(line)
		if !ok {
			if line != "" {
				s.logger.Print(line)
			}
			return
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
		}
	}
}

func parseEvent(line string) (Event, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal([]byte(trimmed), &ev); err != nil || !ev.Code.Valid() {
		return Event{}, false
	}
	return ev, true
}

func writeConfig(configs []sequencer.BundleConfig) (string, error) {
	f, err := os.CreateTemp("", "bleep-bundler-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create bundler config: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(configs); err != nil {
		_ = f.Close()           // Best-effort close on error path
		_ = os.Remove(f.Name()) // Best-effort cleanup on error path
		return "", fmt.Errorf("failed to write bundler config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name()) // Best-effort cleanup on error path
		return "", fmt.Errorf("failed to close bundler config: %w", err)
	}
	return f.Name(), nil
}
