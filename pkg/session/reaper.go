package session

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically destroys streams whose producers have gone
// silent for longer than the TTL. Finalize and DELETE remove streams
// promptly; the reaper is the backstop for producers that never call
// either.
type Reaper struct {
	manager  *Manager
	ttl      time.Duration
	interval time.Duration
	onReap   func(*Stream)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper creates a reaper over the manager. onReap, if non-nil, is
// called for each reaped stream after its engine is destroyed — the
// delivery layer uses it to notify and detach subscribers.
func NewReaper(manager *Manager, ttl, interval time.Duration, onReap func(*Stream)) *Reaper {
	return &Reaper{
		manager:  manager,
		ttl:      ttl,
		interval: interval,
		onReap:   onReap,
	}
}

// Start launches the background reap loop.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)

	slog.Info("Stream reaper started", "ttl", r.ttl, "interval", r.interval)
}

// Stop signals the reap loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	slog.Info("Stream reaper stopped")
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapIdle()
		}
	}
}

func (r *Reaper) reapIdle() {
	idle := r.manager.idleSince(time.Now().Add(-r.ttl))
	for _, stream := range idle {
		slog.Info("Reaping idle stream",
			"stream_id", stream.ID,
			"idle_for", time.Since(stream.LastActivity()).Round(time.Second))

		r.manager.Remove(stream.ID)
		stream.Engine.Destroy()
		if r.onReap != nil {
			r.onReap(stream)
		}
	}
}
