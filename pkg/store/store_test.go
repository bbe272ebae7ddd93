package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeEvent(requestID, message string, at time.Time) reasoning.Event {
	return reasoning.Event{
		Type:    reasoning.EventTypeStatus,
		Message: message,
		Phase:   reasoning.PhaseAnalyzing,
		Metadata: reasoning.EventMetadata{
			RequestID: requestID,
			Timestamp: at.Format(time.RFC3339Nano),
			Source:    reasoning.SourceFallback,
		},
	}
}

func TestSaveAndListEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id1, err := s.SaveEvent(ctx, makeEvent("req-1", "Analyzing your request...", now))
	require.NoError(t, err)
	id2, err := s.SaveEvent(ctx, makeEvent("req-1", "Planning the approach...", now))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, makeEvent("req-2", "Analyzing your request...", now))
	require.NoError(t, err)

	assert.Greater(t, id2, id1)

	events, err := s.ListEvents(ctx, "req-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, id1, events[0].ID)
	assert.Equal(t, "Analyzing your request...", events[0].Event.Message)
	assert.Equal(t, reasoning.EventTypeStatus, events[0].Event.Type)
	assert.Equal(t, reasoning.PhaseAnalyzing, events[0].Event.Phase)
	assert.Equal(t, "req-1", events[0].Event.Metadata.RequestID)
	assert.Equal(t, reasoning.SourceFallback, events[0].Event.Metadata.Source)
}

func TestListEventsSinceSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id1, err := s.SaveEvent(ctx, makeEvent("req-1", "first", now))
	require.NoError(t, err)
	id2, err := s.SaveEvent(ctx, makeEvent("req-1", "second", now))
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "req-1", id1, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id2, events[0].ID)
	assert.Equal(t, "second", events[0].Event.Message)

	events, err = s.ListEvents(ctx, "req-1", id2, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListEventsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := s.SaveEvent(ctx, makeEvent("req-1", "msg", now))
		require.NoError(t, err)
	}

	events, err := s.ListEvents(ctx, "req-1", 0, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPruneBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	_, err := s.SaveEvent(ctx, makeEvent("req-1", "stale", old))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, makeEvent("req-1", "fresh", recent))
	require.NoError(t, err)

	pruned, err := s.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	events, err := s.ListEvents(ctx, "req-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Event.Message)
}

func TestDeleteStream(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := s.SaveEvent(ctx, makeEvent("req-1", "a", now))
	require.NoError(t, err)
	_, err = s.SaveEvent(ctx, makeEvent("req-2", "b", now))
	require.NoError(t, err)

	require.NoError(t, s.DeleteStream(ctx, "req-1"))

	events, err := s.ListEvents(ctx, "req-1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = s.ListEvents(ctx, "req-2", 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
