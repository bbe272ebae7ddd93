package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/statuspulse/statuspulse/pkg/events"
)

// catchupBatch caps how many persisted events a single reconnect
// replays.
const catchupBatch = 500

// StreamEvents handles GET /api/v1/streams/:id/events — an SSE stream.
// Persisted events past ?since_seq are replayed first, then live
// events follow until the stream ends or the client disconnects. Each
// SSE frame carries the event's sequence number in its id field, so a
// reconnecting client can resume with since_seq set to the last id it
// saw.
func (s *Server) StreamEvents(c *gin.Context) {
	sinceSeq := int64(0)
	if raw := c.Query("since_seq"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, errors.New("since_seq must be a non-negative integer"))
			return
		}
		sinceSeq = parsed
	}

	requestID := c.Param("id")
	_, err := s.manager.Get(requestID)
	streamLive := err == nil

	// Subscribe before the catchup query so nothing published in
	// between is lost; duplicates are filtered by sequence number.
	var (
		ch     <-chan events.Envelope
		cancel func()
	)
	if streamLive {
		ch, cancel = s.broadcaster.Subscribe(requestID)
		defer cancel()
	}

	catchup, err := s.store.ListEvents(c.Request.Context(), requestID, sinceSeq, catchupBatch)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !streamLive && len(catchup) == 0 {
		respondError(c, http.StatusNotFound, errors.New("stream not found"))
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	lastID := sinceSeq
	for _, stored := range catchup {
		if err := writeSSE(c, events.Envelope{ID: stored.ID, Event: stored.Event}); err != nil {
			return
		}
		lastID = stored.ID
	}

	if ch == nil {
		// Stream already ended; catchup is all there is
		writeSSEEnd(c)
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case env, ok := <-ch:
			if !ok {
				// Stream finalized, deleted, or reaped
				writeSSEEnd(c)
				return
			}
			if env.ID != 0 && env.ID <= lastID {
				continue
			}
			if err := writeSSE(c, env); err != nil {
				return
			}
			if env.ID > lastID {
				lastID = env.ID
			}
		}
	}
}

func writeSSE(c *gin.Context, env events.Envelope) error {
	data, err := json.Marshal(env.Event)
	if err != nil {
		slog.Error("Failed to marshal event", "event_id", env.ID, "error", err)
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n",
		env.ID, env.Event.Type, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func writeSSEEnd(c *gin.Context) {
	fmt.Fprint(c.Writer, "event: end\ndata: {}\n\n")
	c.Writer.Flush()
}
