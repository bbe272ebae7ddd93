// Package reasoning implements the hybrid reasoning-status engine: a
// per-request state machine that buffers incremental reasoning text,
// asks an LLM to summarize it into short status lines, degrades to
// rotating fallback phrases when the LLM is slow or unavailable,
// rate-limits emissions to avoid UI flicker, and keeps the stream alive
// with idle heartbeats.
//
// One engine instance serves exactly one generation request. All state
// mutation is serialized through the engine's mutex; timers and LLM
// callbacks re-enter through the same lock, so there is never concurrent
// entry into the flush path for one instance.
package reasoning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// StatusClient turns reasoning text into short human-readable status
// strings. Implementations wrap a remote call with a hard timeout.
// Defined here on the consumer side so any backend — hosted API, local
// heuristic, test double — can plug in.
type StatusClient interface {
	// GenerateStatus produces a 5–10 word present-continuous status
	// line for a chunk of reasoning text.
	GenerateStatus(ctx context.Context, reasoningText string, phase ThinkingPhase, requestID string) (string, error)

	// GenerateFinalSummary produces an 8–15 word past-tense completion
	// summary from the full reasoning history.
	GenerateFinalSummary(ctx context.Context, reasoningHistory, artifactDescription, requestID string) (string, error)

	// Describe reports the provider and model tags stamped into event
	// metadata for LLM-sourced emissions.
	Describe() (provider, model string)
}

// Options configures a new Engine. RequestID and Sink are required;
// everything else has working defaults. A nil Client puts the engine in
// fallback-only mode.
type Options struct {
	RequestID string
	Sink      Sink
	Config    Config         // zero fields filled from DefaultConfig
	Phases    PhaseConfigMap // per-phase overrides merged over defaults
	Client    StatusClient   // nil = fallback-only
	Clock     Clock          // nil = real clock
}

// Engine is the reasoning-status orchestrator. Lifecycle:
// constructed → Start → (ProcessReasoningChunk / SetPhase / heartbeats,
// any interleaving) → Finalize or Destroy. Destroyed is terminal: every
// mutating method on a destroyed engine is a silent no-op, which keeps
// the API forgiving under racy shutdown sequences.
type Engine struct {
	requestID string
	cfg       Config
	phases    PhaseConfigMap
	sink      Sink
	client    StatusClient
	clock     Clock
	log       *slog.Logger

	mu             sync.Mutex
	currentPhase   ThinkingPhase
	buffer         strings.Builder
	history        strings.Builder
	bank           *messageBank
	breaker        *circuitBreaker
	pendingCalls   int
	lastEmitTime   time.Time
	lastFlushTime  time.Time
	lastChunkTime  time.Time
	lastEventTime  time.Time
	flushTimer     Timer
	heartbeatTimer Timer
	started        bool
	destroyed      bool
}

// NewEngine validates options and returns a ready engine. Configuration
// problems (missing request ID or sink, empty fallback message list)
// fail here, loudly — they indicate a broken deployment.
func NewEngine(opts Options) (*Engine, error) {
	if opts.RequestID == "" {
		return nil, ErrMissingRequestID
	}
	if opts.Sink == nil {
		return nil, ErrMissingSink
	}

	phases := mergePhaseConfig(opts.Phases)
	if err := validatePhaseConfig(phases); err != nil {
		return nil, err
	}

	cfg := opts.Config.withDefaults()
	clock := opts.Clock
	if clock == nil {
		clock = NewRealClock()
	}

	e := &Engine{
		requestID:    opts.RequestID,
		cfg:          cfg,
		phases:       phases,
		sink:         opts.Sink,
		client:       opts.Client,
		clock:        clock,
		log:          slog.With("request_id", opts.RequestID),
		currentPhase: PhaseAnalyzing,
		bank:         newMessageBank(phases),
		breaker:      newCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerReset),
	}
	now := clock.Now()
	e.lastChunkTime = now
	e.lastFlushTime = now
	return e, nil
}

// Start emits the initial fallback status and begins the heartbeat
// timer. Calling Start on a destroyed engine is a no-op with a warning.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed {
		e.log.Warn("Start called on destroyed engine")
		return
	}
	if e.started {
		return
	}
	e.started = true

	e.emitLocked(EventTypeStatus, e.bank.Next(e.currentPhase), SourceFallback, false)
	e.scheduleHeartbeatLocked()
}

// ProcessReasoningChunk appends a chunk of streamed reasoning text,
// re-detects the phase, and flushes when enough content or time has
// accumulated. No-op after destroy.
func (e *Engine) ProcessReasoningChunk(chunk string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || chunk == "" {
		return
	}

	now := e.clock.Now()
	e.buffer.WriteString(chunk)
	e.history.WriteString(chunk)
	e.lastChunkTime = now

	if detected := DetectPhase(e.buffer.String(), e.currentPhase); detected != e.currentPhase {
		e.log.Info("Phase transition detected",
			"from", e.currentPhase, "to", detected)
		e.currentPhase = detected
	}

	shouldFlush := e.buffer.Len() >= e.cfg.MinBufferChars ||
		(e.buffer.Len() > 0 && now.Sub(e.lastFlushTime) > e.cfg.MaxWait)
	if shouldFlush {
		e.flushLocked()
		return
	}
	if e.flushTimer == nil {
		e.flushTimer = e.clock.AfterFunc(e.cfg.MaxWait, e.onFlushTimer)
	}
}

// SetPhase force-sets the current phase from an explicit external
// signal and immediately emits a fallback status for it, bypassing the
// anti-flicker gate. No-op if destroyed, unknown, or unchanged.
func (e *Engine) SetPhase(phase ThinkingPhase) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.destroyed || !phase.IsValid() || phase == e.currentPhase {
		return
	}
	e.currentPhase = phase
	e.emitLocked(EventTypeStatus, e.bank.Next(phase), SourceFallback, e.breaker.IsOpen())
}

// Finalize flushes remaining buffered text, emits exactly one
// reasoning_final event — LLM-generated when possible, templated
// fallback otherwise — and destroys the engine. One-shot and terminal;
// no-op after destroy.
func (e *Engine) Finalize(artifactDescription string) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}

	if e.buffer.Len() > 0 {
		e.flushLocked()
	}

	history := e.history.String()
	useLLM := e.client != nil && !e.breaker.IsOpen() && history != ""
	e.mu.Unlock()

	var summary string
	var llmErr error
	if useLLM {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.FinalSummaryTimeout())
		summary, llmErr = e.client.GenerateFinalSummary(ctx, history, artifactDescription, e.requestID)
		cancel()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		// Lost a race with Destroy while the summary call was in
		// flight; the result is discarded.
		return
	}

	if useLLM {
		if llmErr != nil {
			// Clock read after the summary call returns, so the breaker
			// cooldown starts when the failure actually happened.
			e.breaker.RecordFailure(e.clock.Now())
			e.log.Warn("Final summary generation failed, using fallback", "error", llmErr)
		} else {
			e.breaker.RecordSuccess()
		}
	}

	if useLLM && llmErr == nil && summary != "" {
		e.emitLocked(EventTypeFinal, summary, SourceLLM, false)
	} else {
		e.emitLocked(EventTypeFinal, finalFallbackMessage(artifactDescription), SourceFallback, e.breaker.IsOpen())
	}
	e.destroyLocked()
}

// Destroy cancels all pending timers and makes the engine permanently
// inert. Safe to call multiple times and from any state. In-flight LLM
// calls are not cancelled; their late results are discarded.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyLocked()
}

// State is a read-only snapshot of engine internals for diagnostics and
// tests.
type State struct {
	RequestID      string        `json:"request_id"`
	CurrentPhase   ThinkingPhase `json:"current_phase"`
	BufferLen      int           `json:"buffer_len"`
	HistoryLen     int           `json:"history_len"`
	PendingCalls   int           `json:"pending_calls"`
	LastEmitTime   time.Time     `json:"last_emit_time"`
	LastChunkTime  time.Time     `json:"last_chunk_time"`
	Started        bool          `json:"started"`
	Destroyed      bool          `json:"destroyed"`
	CircuitBreaker BreakerState  `json:"circuit_breaker"`
}

// GetState returns a snapshot of the engine's internal state. The
// snapshot is a copy; mutating it has no effect on the engine.
func (e *Engine) GetState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		RequestID:      e.requestID,
		CurrentPhase:   e.currentPhase,
		BufferLen:      e.buffer.Len(),
		HistoryLen:     e.history.Len(),
		PendingCalls:   e.pendingCalls,
		LastEmitTime:   e.lastEmitTime,
		LastChunkTime:  e.lastChunkTime,
		Started:        e.started,
		Destroyed:      e.destroyed,
		CircuitBreaker: e.breaker.snapshot(),
	}
}

// --- Internal: flush path ---

// onFlushTimer is the deferred-flush callback scheduled by
// ProcessReasoningChunk when a chunk arrives below the size threshold.
func (e *Engine) onFlushTimer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.flushTimer = nil
	if e.buffer.Len() == 0 {
		return
	}
	e.flushLocked()
}

// flushLocked consumes the buffer to produce one status event. Gates, in
// order: anti-flicker (reschedule, keep buffer), admission control (too
// many in-flight calls → fallback), circuit breaker (open and cooling →
// fallback; open and cooled → one probe). Caller must hold e.mu.
func (e *Engine) flushLocked() {
	if e.flushTimer != nil {
		e.flushTimer.Stop()
		e.flushTimer = nil
	}

	now := e.clock.Now()
	e.lastFlushTime = now

	// Anti-flicker gate: too soon after the last emission. The buffer
	// keeps accumulating until the gate opens.
	if !e.lastEmitTime.IsZero() {
		if since := now.Sub(e.lastEmitTime); since < e.cfg.MinUpdateInterval {
			e.flushTimer = e.clock.AfterFunc(e.cfg.MinUpdateInterval-since, e.onFlushTimer)
			return
		}
	}

	// Admission control: never queue unbounded LLM calls.
	if e.pendingCalls >= e.cfg.MaxPendingCalls {
		e.log.Debug("Max pending LLM calls reached, emitting fallback",
			"pending", e.pendingCalls)
		e.buffer.Reset()
		e.emitLocked(EventTypeStatus, e.bank.Next(e.currentPhase), SourceFallback, e.breaker.IsOpen())
		return
	}

	// Circuit-breaker gate: open and still cooling down → fallback.
	// Open but past the cooldown → let one probe through below.
	if e.client == nil || !e.breaker.AllowProbe(now) {
		e.buffer.Reset()
		e.emitLocked(EventTypeStatus, e.bank.Next(e.currentPhase), SourceFallback, e.breaker.IsOpen())
		return
	}

	text := e.buffer.String()
	e.buffer.Reset()
	e.pendingCalls++
	phase := e.currentPhase

	// The call itself runs outside the lock. Up to MaxPendingCalls may
	// be in flight; completions re-enter through the mutex and may land
	// out of submission order — accepted for throughput, no reordering.
	go e.dispatchStatus(text, phase)
}

// dispatchStatus performs one GenerateStatus call and emits the result
// (or a fallback) once it completes.
func (e *Engine) dispatchStatus(text string, phase ThinkingPhase) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.StatusTimeout)
	status, err := e.client.GenerateStatus(ctx, text, phase, e.requestID)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.pendingCalls--
	if e.destroyed {
		// A late completion must not revive a dead engine's output.
		return
	}

	now := e.clock.Now()
	if err != nil || status == "" {
		e.breaker.RecordFailure(now)
		if err != nil {
			e.log.Warn("Status generation failed, emitting fallback",
				"phase", phase, "error", err)
		}
		e.emitLocked(EventTypeStatus, e.bank.Next(e.currentPhase), SourceFallback, e.breaker.IsOpen())
		return
	}

	e.breaker.RecordSuccess()
	e.emitLocked(EventTypeStatus, status, SourceLLM, false)
}

// --- Internal: heartbeat ---

func (e *Engine) scheduleHeartbeatLocked() {
	e.heartbeatTimer = e.clock.AfterFunc(e.cfg.IdleHeartbeat, e.onHeartbeat)
}

// onHeartbeat emits a keepalive when no chunk has arrived for a full
// idle interval. Heartbeats repeat the current phase's first fallback
// message without rotating the bank and are exempt from the
// anti-flicker gate.
func (e *Engine) onHeartbeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	if e.clock.Now().Sub(e.lastChunkTime) >= e.cfg.IdleHeartbeat {
		e.emitLocked(EventTypeHeartbeat, e.bank.Peek(e.currentPhase), SourceFallback, e.breaker.IsOpen())
	}
	e.scheduleHeartbeatLocked()
}

// --- Internal: emission ---

// emitLocked stamps metadata and delivers one event to the sink. The
// timestamp never decreases across events from this engine even if the
// clock is coarse. A panicking sink is contained — a misbehaving
// consumer must never corrupt engine state. Caller must hold e.mu.
func (e *Engine) emitLocked(t EventType, message string, source Source, breakerOpen bool) {
	now := e.clock.Now()
	if now.Before(e.lastEventTime) {
		now = e.lastEventTime
	}
	e.lastEventTime = now
	e.lastEmitTime = now

	meta := EventMetadata{
		RequestID:          e.requestID,
		Timestamp:          now.Format(time.RFC3339Nano),
		Source:             source,
		CircuitBreakerOpen: breakerOpen,
	}
	if source == SourceLLM && e.client != nil {
		meta.Provider, meta.Model = e.client.Describe()
	}

	ev := Event{Type: t, Message: message, Phase: e.currentPhase, Metadata: meta}

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("Event sink panicked", "event_type", t, "panic", fmt.Sprint(r))
		}
	}()
	e.sink(ev)
}

// destroyLocked flips the terminal flag and cancels pending timers.
// Idempotent. Caller must hold e.mu.
func (e *Engine) destroyLocked() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	if e.flushTimer != nil {
		e.flushTimer.Stop()
		e.flushTimer = nil
	}
	if e.heartbeatTimer != nil {
		e.heartbeatTimer.Stop()
		e.heartbeatTimer = nil
	}
}

func finalFallbackMessage(artifactDescription string) string {
	if artifactDescription == "" {
		return "Created your artifact."
	}
	return fmt.Sprintf("Created %s.", artifactDescription)
}
