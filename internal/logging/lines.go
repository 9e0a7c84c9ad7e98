// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"bytes"
	"strings"
	"sync"
)

// LineSplitter is an io.Writer that calls fn once per complete line. Call
// Flush after the writer is done to emit a trailing partial line.
type LineSplitter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	fn  func(string)
}

// NewLineSplitter returns a LineSplitter feeding fn.
func NewLineSplitter(fn func(string)) *LineSplitter {
	return &LineSplitter{fn: fn}
}

func (s *LineSplitter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	for {
		i := bytes.IndexByte(s.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(s.buf.Next(i + 1))
		s.fn(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (s *LineSplitter) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf.Len() > 0 {
		s.fn(strings.TrimRight(s.buf.String(), "\r"))
		s.buf.Reset()
	}
}
