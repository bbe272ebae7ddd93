package reasoning

import "errors"

var (
	// ErrMissingRequestID indicates an engine was constructed without a
	// request ID.
	ErrMissingRequestID = errors.New("request ID is required")

	// ErrMissingSink indicates an engine was constructed without an
	// event sink.
	ErrMissingSink = errors.New("event sink is required")

	// ErrInvalidPhaseConfig indicates a broken phase configuration,
	// e.g. an empty fallback message list. Surfaced at construction
	// time — this is a deployment error, never a runtime condition.
	ErrInvalidPhaseConfig = errors.New("invalid phase configuration")

	// ErrInvalidPhase indicates an unknown ThinkingPhase value.
	ErrInvalidPhase = errors.New("unknown thinking phase")
)
