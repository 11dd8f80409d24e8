package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
)

func TestCalculateConfidence(t *testing.T) {
	rec := &domain.SignalRecord{
		EmotionalResonance: domain.EmotionalResonance{Intensity: 0.5, Certainty: 0.8},
		SymbolicLanguage:   domain.SymbolicLanguage{SymbolicDensity: 5},
		ArchetypeBlend:     domain.ArchetypeBlend{Primary: "Weaver", Confidence: 0.6},
		NarrativePosition:  domain.NarrativePosition{JourneyConfidence: 3, StageConfidence: 2},
	}

	got := engine.CalculateConfidence(rec, 0.5)

	assert.InDelta(t, 0.6, got.Archetype, 1e-9)
	assert.InDelta(t, 0.5, got.Symbol, 1e-9)
	assert.InDelta(t, 0.8, got.Emotion, 1e-9)
	assert.InDelta(t, 0.5, got.Narrative, 1e-9)
	assert.InDelta(t, 0.5, got.Historical, 1e-9)
	assert.InDelta(t, 0.61, got.Overall, 1e-9)
}

func TestCalculateConfidenceSaturates(t *testing.T) {
	rec := &domain.SignalRecord{
		EmotionalResonance: domain.EmotionalResonance{Intensity: 3, Certainty: 1},
		SymbolicLanguage:   domain.SymbolicLanguage{SymbolicDensity: 250},
		ArchetypeBlend:     domain.ArchetypeBlend{Confidence: 1},
		NarrativePosition:  domain.NarrativePosition{JourneyConfidence: 9, StageConfidence: 7},
	}

	got := engine.CalculateConfidence(rec, 1)

	assert.Equal(t, domain.ConfidenceScores{
		Overall: 1, Archetype: 1, Symbol: 1, Emotion: 1, Narrative: 1, Historical: 1,
	}, got)
}

func TestCalculateConfidenceNilRecord(t *testing.T) {
	got := engine.CalculateConfidence(nil, engine.DefaultHistoricalStability)

	assert.Equal(t, domain.ConfidenceScores{Historical: 0.5}, got)
}
