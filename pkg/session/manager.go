package session

import (
	"sync"
	"time"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// Manager holds the process's live streams. All methods are safe for
// concurrent use.
type Manager struct {
	streams map[string]*Stream
	mu      sync.RWMutex
}

// NewManager creates an empty stream manager.
func NewManager() *Manager {
	return &Manager{
		streams: make(map[string]*Stream),
	}
}

// Register adds a stream for an already-constructed engine. The caller
// chooses the ID (it doubles as the engine's request ID).
func (m *Manager) Register(id string, engine *reasoning.Engine) (*Stream, error) {
	now := time.Now()
	stream := &Stream{
		ID:           id,
		Engine:       engine,
		CreatedAt:    now,
		lastActivity: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.streams[id]; exists {
		return nil, ErrStreamExists
	}
	m.streams[id] = stream
	return stream, nil
}

// Get retrieves a stream by ID.
func (m *Manager) Get(id string) (*Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stream, ok := m.streams[id]
	if !ok {
		return nil, ErrStreamNotFound
	}
	return stream, nil
}

// Remove deletes a stream from the registry. The caller is responsible
// for destroying the engine.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.streams, id)
	m.mu.Unlock()
}

// List returns a snapshot of all registered streams.
func (m *Manager) List() []Info {
	m.mu.RLock()
	streams := make([]*Stream, 0, len(m.streams))
	for _, s := range m.streams {
		streams = append(streams, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(streams))
	for _, s := range streams {
		infos = append(infos, Info{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity(),
		})
	}
	return infos
}

// Count returns the number of registered streams.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}

// idleSince returns streams whose last activity is before the cutoff.
func (m *Manager) idleSince(cutoff time.Time) []*Stream {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var idle []*Stream
	for _, s := range m.streams {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	return idle
}
