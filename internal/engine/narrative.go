package engine

import (
	"regexp"
	"slices"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

const (
	unknownPosition = "unknown"

	TrendProgressing      = "progressing"
	TrendRegressing       = "regressing"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"

	progressionWindow = 5
)

type namedPattern struct {
	name    string
	pattern *regexp.Regexp
}

var heroJourneyPhases = []namedPattern{
	{"ordinary_world", regexp.MustCompile(`\b(normal|routine|everyday|usual|regular|stable|comfortable)\b`)},
	{"call_to_adventure", regexp.MustCompile(`\b(call|calling|invitation|opportunity|chance|beginning|stirring|awakening)\b`)},
	{"refusal_of_call", regexp.MustCompile(`\b(hesitat|resist|afraid|doubt|uncertain|not ready|avoiding|denial)\b`)},
	{"meeting_mentor", regexp.MustCompile(`\b(guide|teacher|mentor|wisdom|guidance|help|support|advice)\b`)},
	{"crossing_threshold", regexp.MustCompile(`\b(step|cross|enter|begin|start|commit|decide|leap|threshold)\b`)},
	{"tests_allies_enemies", regexp.MustCompile(`\b(challenge|test|friend|enemy|obstacle|support|help|ally|opponent)\b`)},
	{"approach_inmost_cave", regexp.MustCompile(`\b(deep|core|heart|center|fear|confront|face|prepare|gather)\b`)},
	{"ordeal", regexp.MustCompile(`\b(crisis|death|loss|breakdown|rock bottom|darkest|trial|suffering)\b`)},
	{"reward", regexp.MustCompile(`\b(gift|treasure|wisdom|insight|breakthrough|victory|achievement|realization)\b`)},
	{"road_back", regexp.MustCompile(`\b(return|integrate|apply|share|teach|give back|journey home)\b`)},
	{"resurrection", regexp.MustCompile(`\b(rebirth|transform|new|different|reborn|emerge|phoenix|renewal)\b`)},
	{"return_with_elixir", regexp.MustCompile(`\b(wisdom|healing|help others|serve|mastery|gift|medicine|teaching)\b`)},
}

// stageOrder is both the stage declaration order and the progression ordinal.
var stageOrder = []namedPattern{
	{"beginning", regexp.MustCompile(`\b(start|begin|new|first|initial|opening|origin|inception|dawn)\b`)},
	{"middle", regexp.MustCompile(`\b(middle|during|process|journey|path|struggle|work|development|unfolding)\b`)},
	{"climax", regexp.MustCompile(`\b(climax|peak|crisis|turning point|breakthrough|moment|crescendo|culmination)\b`)},
	{"resolution", regexp.MustCompile(`\b(end|finish|complete|resolve|closure|peace|done|conclusion|fulfillment)\b`)},
}

var transformationIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\b(transform|change|shift|evolve|grow|become|emerge|metamorphosis)\b`),
	regexp.MustCompile(`\b(different|new|rebirth|phoenix|butterfly|chrysalis|caterpillar)\b`),
	regexp.MustCompile(`\b(breakthrough|awakening|realization|enlightenment|epiphany)\b`),
}

// bestMatch returns the pattern with the most hits; ties keep the first declared.
func bestMatch(patterns []namedPattern, lower string) (string, int) {
	name, best := unknownPosition, 0
	for _, p := range patterns {
		if n := countMatches(p.pattern, lower); n > best {
			name, best = p.name, n
		}
	}
	return name, best
}

func analyzeNarrative(lower string, history []*domain.SignalRecord) domain.NarrativePosition {
	phase, phaseHits := bestMatch(heroJourneyPhases, lower)
	stage, stageHits := bestMatch(stageOrder, lower)

	marker := false
	for _, re := range transformationIndicators {
		if re.MatchString(lower) {
			marker = true
			break
		}
	}

	return domain.NarrativePosition{
		Stage:                stage,
		HeroJourneyPhase:     phase,
		TransformationMarker: marker,
		JourneyConfidence:    float64(phaseHits),
		StageConfidence:      float64(stageHits),
		ProgressionAnalysis:  analyzeProgression(history),
	}
}

// analyzeProgression compares the oldest and newest known stage among the
// most recent turns. history is most recent first.
func analyzeProgression(history []*domain.SignalRecord) domain.ProgressionAnalysis {
	if len(history) == 0 {
		return domain.ProgressionAnalysis{}
	}
	if len(history) < 2 {
		return domain.ProgressionAnalysis{Trend: TrendInsufficientData}
	}

	window := history[:min(len(history), progressionWindow)]
	recent := make([]string, 0, len(window))
	for i := len(window) - 1; i >= 0; i-- {
		stage := unknownPosition
		if window[i] != nil && window[i].NarrativePosition.Stage != "" {
			stage = window[i].NarrativePosition.Stage
		}
		recent = append(recent, stage)
	}

	var ordinals []int
	distribution := make(map[string]int, len(stageOrder))
	for _, s := range stageOrder {
		distribution[s.name] = 0
	}
	for _, stage := range recent {
		idx := slices.IndexFunc(stageOrder, func(p namedPattern) bool { return p.name == stage })
		if idx < 0 {
			continue
		}
		ordinals = append(ordinals, idx)
		distribution[stage]++
	}

	trend := TrendStable
	if len(ordinals) >= 2 {
		first, last := ordinals[0], ordinals[len(ordinals)-1]
		switch {
		case last > first:
			trend = TrendProgressing
		case last < first:
			trend = TrendRegressing
		}
	}

	return domain.ProgressionAnalysis{
		Trend:             trend,
		RecentStages:      recent,
		StageDistribution: distribution,
	}
}
