package reasoning

import "time"

// circuitBreaker tracks consecutive LLM failures for one engine. After
// threshold consecutive failures it opens, forcing fallback-only status
// generation. Once the cooldown has elapsed, a single probe call is
// allowed through per flush (half-open); a probe success closes the
// breaker.
//
// A failed probe does NOT refresh openedAt: the cooldown stays anchored
// to the original open time, so once it has elapsed every subsequent
// flush is probe-eligible until a probe succeeds. This mirrors the
// observed production behavior and keeps recovery fast once the upstream
// heals, at the cost of one extra call per flush while it is still down.
type circuitBreaker struct {
	threshold           int
	cooldown            time.Duration
	consecutiveFailures int
	open                bool
	openedAt            time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, cooldown: cooldown}
}

// RecordSuccess resets the failure count and closes the breaker if open.
func (cb *circuitBreaker) RecordSuccess() {
	cb.consecutiveFailures = 0
	cb.open = false
	cb.openedAt = time.Time{}
}

// RecordFailure counts a failure and opens the breaker when the
// threshold is reached.
func (cb *circuitBreaker) RecordFailure(now time.Time) {
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.threshold && !cb.open {
		cb.open = true
		cb.openedAt = now
	}
}

// IsOpen reports whether the breaker is currently open.
func (cb *circuitBreaker) IsOpen() bool { return cb.open }

// AllowProbe reports whether an open breaker should let one half-open
// probe call through. Always true when the breaker is closed.
func (cb *circuitBreaker) AllowProbe(now time.Time) bool {
	if !cb.open {
		return true
	}
	return now.Sub(cb.openedAt) >= cb.cooldown
}

// snapshot returns a copy of the breaker state for diagnostics.
func (cb *circuitBreaker) snapshot() BreakerState {
	s := BreakerState{
		ConsecutiveFailures: cb.consecutiveFailures,
		IsOpen:              cb.open,
	}
	if cb.open {
		t := cb.openedAt
		s.OpenedAt = &t
	}
	return s
}

// BreakerState is a read-only view of the circuit breaker.
type BreakerState struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	IsOpen              bool       `json:"is_open"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
}
