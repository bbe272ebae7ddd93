package reasoning

// messageBank rotates through each phase's fallback messages. Rotation is
// deterministic: messages[index % len] then increment, tracked per phase.
// The bank never errors at call time — empty message lists are rejected
// when the engine is constructed.
type messageBank struct {
	phases  PhaseConfigMap
	indexes map[ThinkingPhase]int
}

func newMessageBank(phases PhaseConfigMap) *messageBank {
	return &messageBank{
		phases:  phases,
		indexes: make(map[ThinkingPhase]int, len(phases)),
	}
}

// Next returns the current message for phase and advances the rotation.
func (b *messageBank) Next(phase ThinkingPhase) string {
	msgs := b.phases[phase].Messages
	idx := b.indexes[phase]
	b.indexes[phase] = idx + 1
	return msgs[idx%len(msgs)]
}

// Peek returns the first message for phase without advancing the
// rotation. Heartbeats use this: a keepalive is a repeat, not a new
// status.
func (b *messageBank) Peek(phase ThinkingPhase) string {
	return b.phases[phase].Messages[0]
}
