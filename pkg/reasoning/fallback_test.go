package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageBankRotation(t *testing.T) {
	phases := PhaseConfigMap{
		PhaseAnalyzing: {Messages: []string{"one", "two", "three"}},
	}
	bank := newMessageBank(phases)

	assert.Equal(t, "one", bank.Next(PhaseAnalyzing))
	assert.Equal(t, "two", bank.Next(PhaseAnalyzing))
	assert.Equal(t, "three", bank.Next(PhaseAnalyzing))
	assert.Equal(t, "one", bank.Next(PhaseAnalyzing), "rotation wraps around")
}

func TestMessageBankPerPhaseIndexes(t *testing.T) {
	phases := PhaseConfigMap{
		PhaseAnalyzing: {Messages: []string{"a1", "a2"}},
		PhasePlanning:  {Messages: []string{"p1", "p2"}},
	}
	bank := newMessageBank(phases)

	assert.Equal(t, "a1", bank.Next(PhaseAnalyzing))
	assert.Equal(t, "p1", bank.Next(PhasePlanning), "phases rotate independently")
	assert.Equal(t, "a2", bank.Next(PhaseAnalyzing))
}

func TestMessageBankPeek(t *testing.T) {
	phases := PhaseConfigMap{
		PhaseAnalyzing: {Messages: []string{"first", "second"}},
	}
	bank := newMessageBank(phases)

	assert.Equal(t, "first", bank.Peek(PhaseAnalyzing))
	assert.Equal(t, "first", bank.Peek(PhaseAnalyzing), "peek never advances")
	assert.Equal(t, "first", bank.Next(PhaseAnalyzing))
	assert.Equal(t, "first", bank.Peek(PhaseAnalyzing), "peek ignores rotation state")
}
