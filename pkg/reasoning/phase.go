package reasoning

import "strings"

// ThinkingPhase is a coarse classification of what stage of artifact
// generation is currently underway. Declaration order matters: it is the
// conceptual progression (research → done) and the deterministic
// tie-break order for phase detection.
type ThinkingPhase string

const (
	PhaseAnalyzing    ThinkingPhase = "analyzing"
	PhasePlanning     ThinkingPhase = "planning"
	PhaseImplementing ThinkingPhase = "implementing"
	PhaseStyling      ThinkingPhase = "styling"
	PhaseFinalizing   ThinkingPhase = "finalizing"
)

// Phases lists all phases in declaration order.
var Phases = []ThinkingPhase{
	PhaseAnalyzing,
	PhasePlanning,
	PhaseImplementing,
	PhaseStyling,
	PhaseFinalizing,
}

// IsValid reports whether p is one of the five known phases.
func (p ThinkingPhase) IsValid() bool {
	switch p {
	case PhaseAnalyzing, PhasePlanning, PhaseImplementing, PhaseStyling, PhaseFinalizing:
		return true
	}
	return false
}

// phaseSwitchThreshold is the minimum keyword score required to switch
// away from the current phase. A single stray keyword must not flip the
// phase back and forth while text streams in.
const phaseSwitchThreshold = 2

// phaseKeywords maps each phase to the substrings scored during detection.
// Inflected forms are listed alongside their stems so that e.g. "building"
// scores both "build" and "building".
var phaseKeywords = map[ThinkingPhase][]string{
	PhaseAnalyzing: {
		"analyz", "understand", "look at", "looking at", "examin",
		"review the request", "requirement", "what the user",
		"figure out", "breaking down",
	},
	PhasePlanning: {
		"plan", "planning", "approach", "outline", "structur",
		"organiz", "decid", "strategy", "step by step", "first i",
	},
	PhaseImplementing: {
		"implement", "implementing", "build", "building", "creat",
		"creating", "writ", "writing", "add the", "adding",
		"function", "component", "logic",
	},
	PhaseStyling: {
		"styl", "styling", "css", "color", "font", "layout",
		"spacing", "theme", "visual", "responsive", "animation",
	},
	PhaseFinalizing: {
		"finaliz", "finishing", "wrap up", "wrapping up", "complet",
		"polish", "clean up", "cleaning up", "last touch", "double-check",
	},
}

// DetectPhase scores accumulated reasoning text against each phase's
// keyword list and returns the phase that should be current. The detector
// only switches away from current when the best-scoring phase reaches
// phaseSwitchThreshold; ties at or above the threshold resolve to the
// first phase in declaration order.
func DetectPhase(text string, current ThinkingPhase) ThinkingPhase {
	if text == "" {
		return current
	}
	lowered := strings.ToLower(text)

	best := current
	bestScore := 0
	for _, phase := range Phases {
		score := 0
		for _, kw := range phaseKeywords[phase] {
			score += strings.Count(lowered, kw)
		}
		if score > bestScore {
			best = phase
			bestScore = score
		}
	}

	if best != current && bestScore < phaseSwitchThreshold {
		return current
	}
	return best
}
