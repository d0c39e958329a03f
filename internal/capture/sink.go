package capture

import (
	"os"
	"path/filepath"
	"sync"
)

// Sink is the shared at-most-once persistence record for one
// document-acquisition episode. Every capture channel — the passive
// interceptor, each active strategy, the harvester — funnels its bytes
// through TrySave; whichever arrives first writes the file, all later
// arrivals are no-ops. A new Sink is created per episode and never reset.
type Sink struct {
	mu    sync.Mutex
	saved bool
	path  string
}

// NewSink returns an empty, unsaved Sink.
func NewSink() *Sink {
	return &Sink{}
}

// TrySave atomically claims the sink and writes data to dest. It returns
// true only for the single caller that performed the write. If the write
// itself fails the sink stays unsaved so another channel can retry.
// The check-and-set and the file write happen under one lock, so concurrent
// callers can never produce two files or a torn flag.
func (s *Sink) TrySave(data []byte, dest string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saved {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return false
	}
	s.saved = true
	s.path = dest
	return true
}

// Saved reports whether a capture channel has already persisted the document.
func (s *Sink) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Path returns the destination the winning channel wrote to, or "" if the
// document has not been saved.
func (s *Sink) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}
