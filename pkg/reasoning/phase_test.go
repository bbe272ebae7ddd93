package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPhase(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		current ThinkingPhase
		want    ThinkingPhase
	}{
		{
			name:    "empty text keeps current",
			text:    "",
			current: PhasePlanning,
			want:    PhasePlanning,
		},
		{
			name:    "no keywords keeps current",
			text:    "the quick brown fox jumps over everything",
			current: PhaseAnalyzing,
			want:    PhaseAnalyzing,
		},
		{
			name:    "single keyword does not switch",
			text:    "css",
			current: PhaseAnalyzing,
			want:    PhaseAnalyzing,
		},
		{
			name:    "two keywords switch",
			text:    "adjusting the css and picking a color",
			current: PhaseAnalyzing,
			want:    PhaseStyling,
		},
		{
			name:    "inflected form scores its stem too",
			text:    "building the widget now",
			current: PhaseAnalyzing,
			want:    PhaseImplementing,
		},
		{
			name:    "case insensitive",
			text:    "CSS and COLOR choices",
			current: PhaseAnalyzing,
			want:    PhaseStyling,
		},
		{
			name:    "current phase wins below threshold",
			text:    "maybe a function",
			current: PhasePlanning,
			want:    PhasePlanning,
		},
		{
			name:    "richer text picks the dominant phase",
			text:    "now writing the function logic and adding the component pieces",
			current: PhasePlanning,
			want:    PhaseImplementing,
		},
		{
			name:    "progresses toward finalizing",
			text:    "wrapping up, just a final polish and clean up pass",
			current: PhaseImplementing,
			want:    PhaseFinalizing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPhase(tt.text, tt.current))
		})
	}
}

func TestDetectPhaseTieBreaksByDeclarationOrder(t *testing.T) {
	// "plan" scores planning twice ("plan" + "planning" both match
	// "planning"), "css color" scores styling twice; planning comes
	// first in declaration order
	text := "planning the css color"
	assert.Equal(t, PhasePlanning, DetectPhase(text, PhaseFinalizing))
}

func TestPhaseIsValid(t *testing.T) {
	for _, p := range Phases {
		assert.True(t, p.IsValid(), string(p))
	}
	assert.False(t, ThinkingPhase("daydreaming").IsValid())
	assert.False(t, ThinkingPhase("").IsValid())
}
