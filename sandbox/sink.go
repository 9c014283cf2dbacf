package sandbox

import (
	"bytes"
	"sync"
)

const truncatedNotice = "\n... [output truncated]"

// Sink is a per-call output buffer bound into a runtime in place of the
// process streams. Writes beyond the limit are dropped and flagged.
type Sink struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewSink creates a sink; limit <= 0 means unbounded.
func NewSink(limit int) *Sink {
	return &Sink{limit: limit}
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 {
		room := s.limit - s.buf.Len()
		if room <= 0 {
			s.truncated = true
			return len(p), nil
		}
		if len(p) > room {
			s.buf.Write(p[:room])
			s.truncated = true
			return len(p), nil
		}
	}
	s.buf.Write(p)
	return len(p), nil
}

// WriteLine writes s followed by a newline.
func (s *Sink) WriteLine(line string) {
	_, _ = s.Write([]byte(line + "\n"))
}

// String returns the captured text.
func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.truncated {
		return s.buf.String() + truncatedNotice
	}
	return s.buf.String()
}

// Truncated reports whether output was dropped.
func (s *Sink) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.truncated
}
