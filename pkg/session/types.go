// Package session tracks live reasoning streams in memory and reaps
// the ones their producers abandoned.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

var (
	// ErrStreamNotFound indicates the stream ID is unknown (or already
	// destroyed and removed)
	ErrStreamNotFound = errors.New("stream not found")

	// ErrStreamExists indicates a stream with this ID is already
	// registered
	ErrStreamExists = errors.New("stream already exists")
)

// Stream pairs an engine with the bookkeeping the reaper needs.
type Stream struct {
	ID        string
	Engine    *reasoning.Engine
	CreatedAt time.Time

	mu           sync.Mutex
	lastActivity time.Time
}

// Touch records producer activity (chunks, phase changes).
func (s *Stream) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent producer activity.
func (s *Stream) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Info is a read-only snapshot of a stream for listings.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
