package engine

import (
	"math"
	"slices"
	"sort"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// Blend weights sum to 1, so no archetype can score above 1.
const (
	symbolWeight   = 0.4
	emotionWeight  = 0.3
	languageWeight = 0.3

	secondaryThreshold = 0.2
	tertiaryThreshold  = 0.15
)

type archetypeScore struct {
	name    string
	score   float64
	details domain.MatchDetails
}

func (e *Extractor) detectBlend(lower string, emotional domain.EmotionalResonance, symbolic domain.SymbolicLanguage) domain.ArchetypeBlend {
	archetypes := e.catalog.Archetypes()
	scores := make([]archetypeScore, 0, len(archetypes))

	for _, a := range archetypes {
		s := archetypeScore{name: a.Name}

		if len(a.Symbols) > 0 {
			matched := []string{}
			for _, sym := range a.Symbols {
				if slices.Contains(symbolic.ExtractedSymbols, sym) {
					matched = append(matched, sym)
				}
			}
			s.score += float64(len(matched)) / float64(len(a.Symbols)) * symbolWeight
			s.details.Symbols = &domain.SymbolMatch{Matches: len(matched), Matched: matched}
		}

		if len(a.Emotions) > 0 {
			weight := 0.0
			matched := []string{}
			for _, em := range a.Emotions {
				if w, ok := emotional.DetectedEmotions[em]; ok {
					weight += w
					matched = append(matched, em)
				}
			}
			s.score += math.Min(weight/float64(len(a.Emotions)), 1) * emotionWeight
			s.details.Emotions = &domain.EmotionMatch{Score: round(weight, 3), Matched: matched}
		}

		if len(a.LanguagePatterns) > 0 {
			hits := 0
			for _, re := range a.LanguagePatterns {
				hits += countMatches(re, lower)
			}
			s.score += math.Min(float64(hits)/float64(len(a.LanguagePatterns)), 1) * languageWeight
			s.details.Language = &domain.LanguageMatch{Matches: hits}
		}

		s.score = round(s.score, 3)
		scores = append(scores, s)
	}

	blendScores := make(map[string]float64, len(scores))
	for _, s := range scores {
		blendScores[s.name] = s.score
	}

	// Stable: equal scores keep catalog order.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	blend := domain.ArchetypeBlend{
		Primary:     domain.UnknownArchetype,
		BlendScores: blendScores,
	}
	if len(scores) == 0 || scores[0].score <= 0 {
		return blend
	}

	blend.Primary = scores[0].name
	blend.Confidence = scores[0].score
	blend.MatchDetails = scores[0].details
	if len(scores) > 1 && scores[1].score > secondaryThreshold {
		blend.Secondary = scores[1].name
	}
	if len(scores) > 2 && scores[2].score > tertiaryThreshold {
		blend.Tertiary = scores[2].name
	}
	return blend
}
