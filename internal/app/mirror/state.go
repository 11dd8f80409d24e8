package mirror

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
)

// DefaultMomentSignificance is used for moments whose change carries no
// significance of its own.
const DefaultMomentSignificance = 0.5

// HistoricalMotifs counts how often each motif appeared across signals.
func HistoricalMotifs(signals []*domain.SignalRecord) domain.MotifHistory {
	history := domain.MotifHistory{}
	for _, rec := range signals {
		if rec == nil {
			continue
		}
		for _, motif := range rec.MotifLoops.CurrentMotifs {
			stat := history[motif]
			stat.Count++
			if rec.Timestamp.After(stat.LastSeen) {
				stat.LastSeen = rec.Timestamp
			}
			history[motif] = stat
		}
	}
	return history
}

// HistoricalStability is the share of signals agreeing with the most common
// primary archetype.
func HistoricalStability(signals []*domain.SignalRecord) float64 {
	if len(signals) < 2 {
		return engine.DefaultHistoricalStability
	}

	counts := map[string]int{}
	best := 0
	for _, rec := range signals {
		if rec == nil || rec.ArchetypeBlend.Primary == "" {
			continue
		}
		counts[rec.ArchetypeBlend.Primary]++
		best = max(best, counts[rec.ArchetypeBlend.Primary])
	}
	if best == 0 {
		return engine.DefaultHistoricalStability
	}
	return float64(best) / float64(len(signals))
}

// SymbolicSignature derives the profile signature from a message's symbol
// categories. Categories without a signature element are ignored.
func SymbolicSignature(symbolic domain.SymbolicLanguage) domain.SymbolicSignature {
	var sig domain.SymbolicSignature
	for category, symbols := range symbolic.SymbolCategories {
		weight := math.Min(float64(len(symbols))*0.2, 1)
		switch category {
		case "threshold_symbols":
			sig.Threshold = weight
		case "light_symbols":
			sig.Light = weight
		case "water_symbols":
			sig.Echo = weight
		case "transformation_symbols":
			sig.Fire = weight
		case "creation_symbols":
			sig.Weave = weight
		}
	}
	return sig
}

// NextProfile folds one analyzed turn into the user's profile. prev may be
// nil on cold start and is never modified.
func NextProfile(
	userID domain.UserID,
	prev *domain.UserArchetypeProfile,
	rec *domain.SignalRecord,
	scores domain.ConfidenceScores,
	change domain.ChangeResult,
	now time.Time,
) *domain.UserArchetypeProfile {
	next := &domain.UserArchetypeProfile{
		UserID: userID,
		CurrentArchetypeStack: domain.ArchetypeStack{
			Primary:         rec.ArchetypeBlend.Primary,
			Secondary:       rec.ArchetypeBlend.Secondary,
			ConfidenceScore: scores.Overall,
			StabilityScore:  scores.Historical,
		},
		SymbolicSignature: SymbolicSignature(rec.SymbolicLanguage),
		EmotionalResonance: domain.ProfileResonance{
			Valence:   rec.EmotionalResonance.Valence,
			Arousal:   rec.EmotionalResonance.Arousal,
			Certainty: scores.Emotion,
		},
		ArchetypeEvolution: []domain.EvolutionEntry{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if prev != nil {
		next.ArchetypeEvolution = slices.Clone(prev.ArchetypeEvolution)
		next.QuizData = prev.QuizData
		if !prev.CreatedAt.IsZero() {
			next.CreatedAt = prev.CreatedAt
		}
	}

	if c, ok := change.PrimaryChange(); ok && change.ChangeDetected {
		next.ArchetypeEvolution = AppendEvolution(next.ArchetypeEvolution, domain.EvolutionEntry{
			Timestamp:        now,
			PrimaryArchetype: rec.ArchetypeBlend.Primary,
			Confidence:       scores.Overall,
			TriggerEvent:     string(c.Type),
		})
	}
	return next
}

// AppendEvolution appends entry and drops the oldest entries beyond
// domain.MaxEvolutionEntries.
func AppendEvolution(evolution []domain.EvolutionEntry, entry domain.EvolutionEntry) []domain.EvolutionEntry {
	evolution = append(evolution, entry)
	if n := len(evolution); n > domain.MaxEvolutionEntries {
		evolution = slices.Clone(evolution[n-domain.MaxEvolutionEntries:])
	}
	return evolution
}

// NewMirrorMoment builds the moment for the first change flagged as a mirror
// moment in a triggered result.
func NewMirrorMoment(userID domain.UserID, change domain.ChangeResult, now time.Time) (*domain.MirrorMoment, bool) {
	if !change.MirrorMomentTriggered {
		return nil, false
	}
	c, ok := change.MirrorMomentChange()
	if !ok {
		return nil, false
	}

	significance := c.Significance
	if significance == 0 {
		significance = DefaultMomentSignificance
	}

	return &domain.MirrorMoment{
		ID:                newMomentID(now),
		UserID:            userID,
		TriggeredAt:       now,
		MomentType:        c.Type,
		FromState:         c.FromArchetype,
		ToState:           c.ToArchetype,
		SignificanceScore: significance,
		Description:       c.Message,
		SuggestedPractice: c.SuggestedPractice,
	}, true
}

func newMomentID(now time.Time) domain.MomentID {
	return domain.MomentID(fmt.Sprintf("moment_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8]))
}

func newQuizID(now time.Time) string {
	return fmt.Sprintf("quiz_%s_%s", now.UTC().Format("20060102_150405"), uuid.NewString()[:8])
}
