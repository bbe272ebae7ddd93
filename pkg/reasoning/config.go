package reasoning

import (
	"fmt"
	"time"
)

// Config holds the engine's immutable tunables. A zero value for any
// field means "use the default" — callers override only the fields they
// care about and pass the rest through withDefaults.
type Config struct {
	// MinBufferChars is the buffered-text size that triggers an
	// immediate flush attempt.
	MinBufferChars int

	// MaxWait bounds how long buffered text may sit before a flush is
	// attempted regardless of size.
	MaxWait time.Duration

	// MinUpdateInterval is the anti-flicker gate: minimum spacing
	// between consecutive buffered status emissions.
	MinUpdateInterval time.Duration

	// StatusTimeout is the hard wall-clock timeout for one
	// GenerateStatus call. Final summaries get 1.5× this value.
	StatusTimeout time.Duration

	// MaxPendingCalls caps concurrently in-flight LLM calls. Flushes
	// beyond the cap fall back without queueing.
	MaxPendingCalls int

	// BreakerThreshold is the consecutive-failure count that opens the
	// circuit breaker.
	BreakerThreshold int

	// BreakerReset is the cooldown after which an open breaker allows a
	// half-open probe call.
	BreakerReset time.Duration

	// IdleHeartbeat is the inactivity interval after which a keepalive
	// status is emitted.
	IdleHeartbeat time.Duration
}

// Built-in defaults, matched to what a human can comfortably read in a
// status line that keeps changing.
const (
	DefaultMinBufferChars    = 150
	DefaultMaxWait           = 3 * time.Second
	DefaultMinUpdateInterval = 1500 * time.Millisecond
	DefaultStatusTimeout     = 2 * time.Second
	DefaultMaxPendingCalls   = 3
	DefaultBreakerThreshold  = 3
	DefaultBreakerReset      = 30 * time.Second
	DefaultIdleHeartbeat     = 8 * time.Second
)

// DefaultConfig returns the built-in engine tunables.
func DefaultConfig() Config {
	return Config{
		MinBufferChars:    DefaultMinBufferChars,
		MaxWait:           DefaultMaxWait,
		MinUpdateInterval: DefaultMinUpdateInterval,
		StatusTimeout:     DefaultStatusTimeout,
		MaxPendingCalls:   DefaultMaxPendingCalls,
		BreakerThreshold:  DefaultBreakerThreshold,
		BreakerReset:      DefaultBreakerReset,
		IdleHeartbeat:     DefaultIdleHeartbeat,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinBufferChars <= 0 {
		c.MinBufferChars = d.MinBufferChars
	}
	if c.MaxWait <= 0 {
		c.MaxWait = d.MaxWait
	}
	if c.MinUpdateInterval <= 0 {
		c.MinUpdateInterval = d.MinUpdateInterval
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	if c.MaxPendingCalls <= 0 {
		c.MaxPendingCalls = d.MaxPendingCalls
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = d.BreakerReset
	}
	if c.IdleHeartbeat <= 0 {
		c.IdleHeartbeat = d.IdleHeartbeat
	}
	return c
}

// FinalSummaryTimeout is the wall-clock budget for a GenerateFinalSummary
// call: 1.5× the status timeout.
func (c Config) FinalSummaryTimeout() time.Duration {
	return c.StatusTimeout + c.StatusTimeout/2
}

// PhaseConfig describes how one phase presents itself: a display name,
// the rotating fallback messages used when semantic generation is skipped
// or fails, and an advisory typical duration (never used for scheduling).
type PhaseConfig struct {
	DisplayName     string
	Messages        []string
	TypicalDuration time.Duration
}

// PhaseConfigMap maps each phase to its presentation config.
type PhaseConfigMap map[ThinkingPhase]PhaseConfig

// DefaultPhaseConfig returns the built-in per-phase display names and
// fallback message rotations.
func DefaultPhaseConfig() PhaseConfigMap {
	return PhaseConfigMap{
		PhaseAnalyzing: {
			DisplayName: "Analyzing",
			Messages: []string{
				"Analyzing your request...",
				"Reading through the details...",
				"Understanding what you need...",
			},
			TypicalDuration: 4 * time.Second,
		},
		PhasePlanning: {
			DisplayName: "Planning",
			Messages: []string{
				"Planning the approach...",
				"Sketching out the structure...",
				"Deciding how to put this together...",
			},
			TypicalDuration: 6 * time.Second,
		},
		PhaseImplementing: {
			DisplayName: "Implementing",
			Messages: []string{
				"Building the main pieces...",
				"Writing the core logic...",
				"Putting the components together...",
			},
			TypicalDuration: 20 * time.Second,
		},
		PhaseStyling: {
			DisplayName: "Styling",
			Messages: []string{
				"Refining the look and feel...",
				"Adjusting layout and colors...",
				"Polishing the visuals...",
			},
			TypicalDuration: 8 * time.Second,
		},
		PhaseFinalizing: {
			DisplayName: "Finalizing",
			Messages: []string{
				"Wrapping things up...",
				"Finishing the last details...",
				"Almost there...",
			},
			TypicalDuration: 4 * time.Second,
		},
	}
}

// mergePhaseConfig overlays per-phase overrides onto the defaults.
// An override replaces only the fields it sets; an explicitly empty
// message list is preserved so validation can reject it loudly instead
// of silently restoring defaults.
func mergePhaseConfig(overrides PhaseConfigMap) PhaseConfigMap {
	merged := DefaultPhaseConfig()
	for phase, override := range overrides {
		base := merged[phase]
		if override.DisplayName != "" {
			base.DisplayName = override.DisplayName
		}
		if override.Messages != nil {
			base.Messages = override.Messages
		}
		if override.TypicalDuration > 0 {
			base.TypicalDuration = override.TypicalDuration
		}
		merged[phase] = base
	}
	return merged
}

// validatePhaseConfig rejects broken phase maps at construction time.
// An empty message list is a deployment error, not a runtime condition.
func validatePhaseConfig(phases PhaseConfigMap) error {
	for _, phase := range Phases {
		cfg, ok := phases[phase]
		if !ok {
			return fmt.Errorf("%w: phase %q has no configuration", ErrInvalidPhaseConfig, phase)
		}
		if len(cfg.Messages) == 0 {
			return fmt.Errorf("%w: phase %q has an empty fallback message list", ErrInvalidPhaseConfig, phase)
		}
	}
	return nil
}
