package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

func newTestEngine(t *testing.T, id string) *reasoning.Engine {
	t.Helper()
	engine, err := reasoning.NewEngine(reasoning.Options{
		RequestID: id,
		Sink:      func(reasoning.Event) {},
	})
	require.NoError(t, err)
	t.Cleanup(engine.Destroy)
	return engine
}

func TestRegisterAndGet(t *testing.T) {
	m := NewManager()

	stream, err := m.Register("req-1", newTestEngine(t, "req-1"))
	require.NoError(t, err)
	assert.Equal(t, "req-1", stream.ID)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get("req-1")
	require.NoError(t, err)
	assert.Same(t, stream, got)
}

func TestRegisterDuplicate(t *testing.T) {
	m := NewManager()

	_, err := m.Register("req-1", newTestEngine(t, "req-1"))
	require.NoError(t, err)

	_, err = m.Register("req-1", newTestEngine(t, "req-1"))
	assert.ErrorIs(t, err, ErrStreamExists)
	assert.Equal(t, 1, m.Count())
}

func TestGetUnknown(t *testing.T) {
	m := NewManager()

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestRemove(t *testing.T) {
	m := NewManager()

	_, err := m.Register("req-1", newTestEngine(t, "req-1"))
	require.NoError(t, err)

	m.Remove("req-1")
	assert.Equal(t, 0, m.Count())

	_, err = m.Get("req-1")
	assert.ErrorIs(t, err, ErrStreamNotFound)

	// Removing again is a no-op
	m.Remove("req-1")
}

func TestListAndTouch(t *testing.T) {
	m := NewManager()

	stream, err := m.Register("req-1", newTestEngine(t, "req-1"))
	require.NoError(t, err)

	before := stream.LastActivity()
	time.Sleep(5 * time.Millisecond)
	stream.Touch()
	assert.True(t, stream.LastActivity().After(before))

	infos := m.List()
	require.Len(t, infos, 1)
	assert.Equal(t, "req-1", infos[0].ID)
	assert.Equal(t, stream.LastActivity(), infos[0].LastActivity)
}

func TestReaperDestroysIdleStreams(t *testing.T) {
	m := NewManager()

	idle, err := m.Register("idle", newTestEngine(t, "idle"))
	require.NoError(t, err)
	active, err := m.Register("active", newTestEngine(t, "active"))
	require.NoError(t, err)

	// Backdate the idle stream past the TTL
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-time.Minute)
	idle.mu.Unlock()

	var reaped []string
	r := NewReaper(m, 30*time.Second, 10*time.Millisecond, func(s *Stream) {
		reaped = append(reaped, s.ID)
	})
	r.Start(context.Background())
	defer r.Stop()

	require.Eventually(t, func() bool {
		_, err := m.Get("idle")
		return err != nil
	}, time.Second, 5*time.Millisecond)
	r.Stop()

	assert.Equal(t, []string{"idle"}, reaped)
	assert.True(t, idle.Engine.GetState().Destroyed)

	_, err = m.Get("active")
	assert.NoError(t, err)
	assert.False(t, active.Engine.GetState().Destroyed)
}

func TestReaperStartStopIdempotent(t *testing.T) {
	r := NewReaper(NewManager(), time.Minute, time.Minute, nil)

	// Stop before start is a no-op
	r.Stop()

	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
}
