// Package api exposes reasoning streams over HTTP: producers push
// chunks and lifecycle changes, consumers follow the resulting status
// events over SSE.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/statuspulse/statuspulse/pkg/config"
	"github.com/statuspulse/statuspulse/pkg/events"
	"github.com/statuspulse/statuspulse/pkg/reasoning"
	"github.com/statuspulse/statuspulse/pkg/session"
	"github.com/statuspulse/statuspulse/pkg/store"
	"github.com/statuspulse/statuspulse/pkg/version"
)

// saveTimeout bounds the store write performed inside an engine's
// event sink.
const saveTimeout = 5 * time.Second

// Server wires the stream manager, event store, and broadcaster behind
// the HTTP API.
type Server struct {
	cfg *config.ServerConfig

	manager     *session.Manager
	broadcaster *events.Broadcaster
	store       *store.Store

	// Engine construction inputs shared by every stream
	engineCfg reasoning.Config
	phases    reasoning.PhaseConfigMap
	client    reasoning.StatusClient // nil = fallback-only

	httpSrv *http.Server
}

// NewServer creates the API server. client may be nil, in which case
// every stream runs fallback-only.
func NewServer(
	cfg *config.Config,
	manager *session.Manager,
	broadcaster *events.Broadcaster,
	eventStore *store.Store,
	client reasoning.StatusClient,
) *Server {
	return &Server{
		cfg:         cfg.Server,
		manager:     manager,
		broadcaster: broadcaster,
		store:       eventStore,
		engineCfg:   cfg.Reasoning,
		phases:      cfg.Phases,
		client:      client,
	}
}

// Routes builds the gin engine with all routes and middleware.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.Use(clientRateLimit(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

	router.GET("/healthz", s.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/streams", s.CreateStream)
		v1.GET("/streams", s.ListStreams)
		v1.GET("/streams/:id/state", s.GetStreamState)
		v1.GET("/streams/:id/events", s.StreamEvents)
		v1.POST("/streams/:id/chunks", s.PushChunk)
		v1.PUT("/streams/:id/phase", s.SetStreamPhase)
		v1.POST("/streams/:id/finalize", s.FinalizeStream)
		v1.DELETE("/streams/:id", s.DeleteStream)
	}

	return router
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("Shutting down HTTP server", "timeout", s.cfg.ShutdownTimeout)
	return s.httpSrv.Shutdown(shutdownCtx)
}

// Health handles GET /healthz.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"streams": s.manager.Count(),
		"version": version.Full(),
	})
}

// sinkFor builds the engine event sink for a stream: persist first to
// get a sequence number, then fan out to live subscribers.
func (s *Server) sinkFor(requestID string) reasoning.Sink {
	return func(ev reasoning.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()

		id, err := s.store.SaveEvent(ctx, ev)
		if err != nil {
			slog.Error("Failed to persist event, delivering live only",
				"stream_id", requestID, "event_type", ev.Type, "error", err)
		}
		s.broadcaster.Publish(requestID, events.Envelope{ID: id, Event: ev})
	}
}

// HandleReap is wired as the reaper's callback: it tells subscribers
// the stream died and detaches them. The reaper has already destroyed
// the engine and removed the stream from the manager.
func (s *Server) HandleReap(stream *session.Stream) {
	ev := reasoning.Event{
		Type:    reasoning.EventTypeError,
		Message: "Stream expired due to inactivity.",
		Phase:   stream.Engine.GetState().CurrentPhase,
		Metadata: reasoning.EventMetadata{
			RequestID: stream.ID,
			Timestamp: time.Now().Format(time.RFC3339Nano),
			Source:    reasoning.SourceFallback,
		},
	}
	s.sinkFor(stream.ID)(ev)
	s.broadcaster.CloseStream(stream.ID)
}
