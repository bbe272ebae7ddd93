package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
	"github.com/statuspulse/statuspulse/pkg/session"
)

// CreateStreamRequest creates a new reasoning stream. All fields are
// optional; zero values inherit the server's configuration.
type CreateStreamRequest struct {
	// ID lets the producer bring its own request ID. Generated when
	// empty.
	ID string `json:"id"`

	// Per-stream engine tunables (milliseconds where applicable).
	MinBufferChars      int `json:"min_buffer_chars"`
	MaxWaitMs           int `json:"max_wait_ms"`
	MinUpdateIntervalMs int `json:"min_update_interval_ms"`
	IdleHeartbeatMs     int `json:"idle_heartbeat_ms"`
}

// CreateStreamResponse is returned by POST /api/v1/streams.
type CreateStreamResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// PushChunkRequest carries one reasoning text delta.
type PushChunkRequest struct {
	Text string `json:"text" binding:"required"`
}

// SetPhaseRequest forces the stream into an explicit phase.
type SetPhaseRequest struct {
	Phase string `json:"phase" binding:"required"`
}

// FinalizeRequest completes a stream.
type FinalizeRequest struct {
	Artifact string `json:"artifact"`
}

// CreateStream handles POST /api/v1/streams.
func (s *Server) CreateStream(c *gin.Context) {
	var req CreateStreamRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	cfg := s.engineCfg
	if req.MinBufferChars > 0 {
		cfg.MinBufferChars = req.MinBufferChars
	}
	if req.MaxWaitMs > 0 {
		cfg.MaxWait = time.Duration(req.MaxWaitMs) * time.Millisecond
	}
	if req.MinUpdateIntervalMs > 0 {
		cfg.MinUpdateInterval = time.Duration(req.MinUpdateIntervalMs) * time.Millisecond
	}
	if req.IdleHeartbeatMs > 0 {
		cfg.IdleHeartbeat = time.Duration(req.IdleHeartbeatMs) * time.Millisecond
	}

	engine, err := reasoning.NewEngine(reasoning.Options{
		RequestID: id,
		Sink:      s.sinkFor(id),
		Config:    cfg,
		Phases:    s.phases,
		Client:    s.client,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	stream, err := s.manager.Register(id, engine)
	if err != nil {
		engine.Destroy()
		if errors.Is(err, session.ErrStreamExists) {
			respondError(c, http.StatusConflict, err)
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	engine.Start()
	slog.Info("Stream created", "stream_id", id)

	c.JSON(http.StatusCreated, CreateStreamResponse{
		ID:        stream.ID,
		CreatedAt: stream.CreatedAt,
	})
}

// ListStreams handles GET /api/v1/streams.
func (s *Server) ListStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": s.manager.List()})
}

// GetStreamState handles GET /api/v1/streams/:id/state.
func (s *Server) GetStreamState(c *gin.Context) {
	stream, ok := s.lookupStream(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, stream.Engine.GetState())
}

// PushChunk handles POST /api/v1/streams/:id/chunks.
func (s *Server) PushChunk(c *gin.Context) {
	stream, ok := s.lookupStream(c)
	if !ok {
		return
	}

	var req PushChunkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	stream.Touch()
	stream.Engine.ProcessReasoningChunk(req.Text)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// SetStreamPhase handles PUT /api/v1/streams/:id/phase.
func (s *Server) SetStreamPhase(c *gin.Context) {
	stream, ok := s.lookupStream(c)
	if !ok {
		return
	}

	var req SetPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	phase := reasoning.ThinkingPhase(req.Phase)
	if !phase.IsValid() {
		respondError(c, http.StatusBadRequest, reasoning.ErrInvalidPhase)
		return
	}

	stream.Touch()
	stream.Engine.SetPhase(phase)
	c.JSON(http.StatusOK, gin.H{"phase": phase})
}

// FinalizeStream handles POST /api/v1/streams/:id/finalize. The engine
// emits its final summary synchronously; by the time the stream is
// detached, subscribers have already received it.
func (s *Server) FinalizeStream(c *gin.Context) {
	stream, ok := s.lookupStream(c)
	if !ok {
		return
	}

	var req FinalizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	stream.Engine.Finalize(req.Artifact)
	s.manager.Remove(stream.ID)
	s.broadcaster.CloseStream(stream.ID)
	slog.Info("Stream finalized", "stream_id", stream.ID)

	c.JSON(http.StatusOK, gin.H{"status": "finalized"})
}

// DeleteStream handles DELETE /api/v1/streams/:id. Unlike finalize,
// deletion emits nothing and discards persisted history.
func (s *Server) DeleteStream(c *gin.Context) {
	stream, ok := s.lookupStream(c)
	if !ok {
		return
	}

	stream.Engine.Destroy()
	s.manager.Remove(stream.ID)
	s.broadcaster.CloseStream(stream.ID)
	if err := s.store.DeleteStream(c.Request.Context(), stream.ID); err != nil {
		slog.Error("Failed to delete stream events", "stream_id", stream.ID, "error", err)
	}
	slog.Info("Stream deleted", "stream_id", stream.ID)

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// lookupStream fetches the stream for :id, writing a 404 when absent.
func (s *Server) lookupStream(c *gin.Context) (*session.Stream, bool) {
	stream, err := s.manager.Get(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return nil, false
	}
	return stream, true
}
