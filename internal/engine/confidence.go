package engine

import (
	"math"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// DefaultHistoricalStability is used when there is too little history to
// measure archetype consistency.
const DefaultHistoricalStability = 0.5

const (
	weightArchetype  = 0.35
	weightSymbol     = 0.25
	weightEmotion    = 0.25
	weightNarrative  = 0.10
	weightHistorical = 0.05
)

// CalculateConfidence scores how much to trust a SignalRecord.
func CalculateConfidence(rec *domain.SignalRecord, historicalStability float64) domain.ConfidenceScores {
	if rec == nil {
		return domain.ConfidenceScores{Historical: round(clamp01(historicalStability), 3)}
	}

	archetypeConf := clamp01(rec.ArchetypeBlend.Confidence)
	symbolConf := math.Min(rec.SymbolicLanguage.SymbolicDensity/10, 1)
	emotionConf := math.Min(rec.EmotionalResonance.Intensity*rec.EmotionalResonance.Certainty*2, 1)
	narrative := rec.NarrativePosition
	narrativeConf := math.Min((narrative.JourneyConfidence+narrative.StageConfidence)/10, 1)
	historical := clamp01(historicalStability)

	overall := archetypeConf*weightArchetype +
		symbolConf*weightSymbol +
		emotionConf*weightEmotion +
		narrativeConf*weightNarrative +
		historical*weightHistorical

	return domain.ConfidenceScores{
		Overall:    round(clamp01(overall), 3),
		Archetype:  round(archetypeConf, 3),
		Symbol:     round(clamp01(symbolConf), 3),
		Emotion:    round(clamp01(emotionConf), 3),
		Narrative:  round(clamp01(narrativeConf), 3),
		Historical: round(historical, 3),
	}
}
