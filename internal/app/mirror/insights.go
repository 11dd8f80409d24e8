package mirror

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

const (
	insightSignalsLimit  = 20
	insightMomentsLimit  = 5
	recentEvolutionShown = 3
	trendWindow          = 5
	topSymbols           = 5
	loopSignalsWindow    = 3

	stabilityIntegrationThreshold = 0.7

	OpportunityArchetypeIntegration = "Archetype integration work"
	OpportunityLoopResolution       = "Pattern loop resolution"
)

type Insights struct {
	ArchetypeJourney ArchetypeJourney `json:"archetype_journey"`
	SignalPatterns   SignalPatterns   `json:"signal_patterns"`
	GrowthIndicators GrowthIndicators `json:"growth_indicators"`
}

type ArchetypeJourney struct {
	CurrentPrimary  string                  `json:"current_primary,omitempty"`
	Stability       float64                 `json:"stability"`
	RecentEvolution []domain.EvolutionEntry `json:"recent_evolution"`
}

type SignalPatterns struct {
	EmotionalTrend       EmotionalTrend   `json:"emotional_trend"`
	SymbolicThemes       []SymbolCount    `json:"symbolic_themes"`
	NarrativeProgression NarrativeSummary `json:"narrative_progression"`
}

type EmotionalTrend struct {
	Trend          string  `json:"trend"`
	ValenceChange  float64 `json:"valence_change"`
	CurrentValence float64 `json:"current_valence"`
}

type SymbolCount struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

type NarrativeSummary struct {
	CurrentStage string   `json:"current_stage"`
	RecentStages []string `json:"recent_stages"`
	Progression  string   `json:"progression"`
}

type GrowthIndicators struct {
	RecentBreakthroughs      int      `json:"recent_breakthroughs"`
	PatternTransformations   int      `json:"pattern_transformations"`
	IntegrationOpportunities []string `json:"integration_opportunities"`
}

// Insights summarizes a user's recent journey from their profile, last
// signals and last Mirror Moments.
func (s *Service) Insights(ctx context.Context, userID domain.UserID) (*Insights, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		log.Error("failed to load profile for insights", "error", err)
		return nil, fmt.Errorf("get profile: %w", err)
	}
	signals, err := s.signals.GetRecentSignals(ctx, userID, insightSignalsLimit)
	if err != nil {
		log.Error("failed to load signals for insights", "error", err)
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	moments, err := s.moments.ListMirrorMoments(ctx, userID, insightMomentsLimit, false)
	if err != nil {
		log.Error("failed to load moments for insights", "error", err)
		return nil, fmt.Errorf("list mirror moments: %w", err)
	}

	return BuildInsights(profile, signals, moments), nil
}

// BuildInsights is the pure half of Insights. signals and moments are most
// recent first.
func BuildInsights(profile *domain.UserArchetypeProfile, signals []*domain.SignalRecord, moments []*domain.MirrorMoment) *Insights {
	out := &Insights{
		ArchetypeJourney: ArchetypeJourney{RecentEvolution: []domain.EvolutionEntry{}},
		SignalPatterns: SignalPatterns{
			EmotionalTrend:       emotionalTrend(signals),
			SymbolicThemes:       dominantSymbols(signals),
			NarrativeProgression: narrativeSummary(signals),
		},
		GrowthIndicators: GrowthIndicators{
			IntegrationOpportunities: integrationOpportunities(profile, signals),
		},
	}

	if profile != nil {
		out.ArchetypeJourney.CurrentPrimary = profile.CurrentArchetypeStack.Primary
		out.ArchetypeJourney.Stability = profile.CurrentArchetypeStack.StabilityScore
		evo := profile.ArchetypeEvolution
		out.ArchetypeJourney.RecentEvolution = slices.Clone(evo[max(len(evo)-recentEvolutionShown, 0):])
	}

	for _, m := range moments {
		switch m.MomentType {
		case domain.ChangeBreakthroughMoment:
			out.GrowthIndicators.RecentBreakthroughs++
		case domain.ChangeLoopTransformation:
			out.GrowthIndicators.PatternTransformations++
		}
	}
	return out
}

func emotionalTrend(signals []*domain.SignalRecord) EmotionalTrend {
	if len(signals) == 0 {
		return EmotionalTrend{Trend: "neutral"}
	}

	window := signals[:min(len(signals), trendWindow)]
	newest := window[0].EmotionalResonance.Valence
	oldest := window[len(window)-1].EmotionalResonance.Valence

	trend := EmotionalTrend{Trend: "stable", CurrentValence: newest}
	if len(window) < 2 {
		return trend
	}

	trend.ValenceChange = math.Round((newest-oldest)*1000) / 1000
	switch {
	case newest > oldest:
		trend.Trend = "improving"
	case newest < oldest:
		trend.Trend = "declining"
	}
	return trend
}

func dominantSymbols(signals []*domain.SignalRecord) []SymbolCount {
	counts := []SymbolCount{}
	index := map[string]int{}
	for _, rec := range signals {
		for _, sym := range rec.SymbolicLanguage.ExtractedSymbols {
			i, ok := index[sym]
			if !ok {
				i = len(counts)
				index[sym] = i
				counts = append(counts, SymbolCount{Symbol: sym})
			}
			counts[i].Count++
		}
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts[:min(len(counts), topSymbols)]
}

func narrativeSummary(signals []*domain.SignalRecord) NarrativeSummary {
	if len(signals) == 0 {
		return NarrativeSummary{CurrentStage: "unknown", RecentStages: []string{}, Progression: "unknown"}
	}

	stages := []string{}
	distinct := map[string]bool{}
	for _, rec := range signals[:min(len(signals), trendWindow)] {
		stage := rec.NarrativePosition.Stage
		if stage == "" {
			stage = "unknown"
		}
		stages = append(stages, stage)
		distinct[stage] = true
	}

	progression := "stable"
	if len(distinct) > 1 {
		progression = "forward"
	}
	return NarrativeSummary{CurrentStage: stages[0], RecentStages: stages, Progression: progression}
}

func integrationOpportunities(profile *domain.UserArchetypeProfile, signals []*domain.SignalRecord) []string {
	out := []string{}
	if profile != nil && profile.CurrentArchetypeStack.StabilityScore < stabilityIntegrationThreshold {
		out = append(out, OpportunityArchetypeIntegration)
	}

	loops := map[string]bool{}
	for _, rec := range signals[:min(len(signals), loopSignalsWindow)] {
		for _, l := range rec.MotifLoops.ActiveLoops {
			loops[l] = true
		}
	}
	if len(loops) > 2 {
		out = append(out, OpportunityLoopResolution)
	}
	return out
}

// PatternLoop is one motif's recurrence across the user's recent signals.
type PatternLoop struct {
	Motif     string    `json:"motif"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Strength  float64   `json:"strength"`
	Active    bool      `json:"active"`
}

// PatternLoops reports motif recurrence over the last 20 signals, strongest
// first.
func (s *Service) PatternLoops(ctx context.Context, userID domain.UserID, activeOnly bool) ([]PatternLoop, error) {
	signals, err := s.signals.GetRecentSignals(ctx, userID, insightSignalsLimit)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	return BuildPatternLoops(signals, activeOnly), nil
}

func BuildPatternLoops(signals []*domain.SignalRecord, activeOnly bool) []PatternLoop {
	byMotif := map[string]*PatternLoop{}
	for _, rec := range signals {
		for _, motif := range rec.MotifLoops.CurrentMotifs {
			pl, ok := byMotif[motif]
			if !ok {
				pl = &PatternLoop{Motif: motif, FirstSeen: rec.Timestamp, LastSeen: rec.Timestamp}
				byMotif[motif] = pl
			}
			pl.Count++
			if rec.Timestamp.Before(pl.FirstSeen) {
				pl.FirstSeen = rec.Timestamp
			}
			if rec.Timestamp.After(pl.LastSeen) {
				pl.LastSeen = rec.Timestamp
			}
		}
	}

	out := []PatternLoop{}
	for _, pl := range byMotif {
		pl.Strength = engine.LoopStrength(pl.Count)
		pl.Active = pl.Count >= engine.LoopThreshold
		if activeOnly && !pl.Active {
			continue
		}
		out = append(out, *pl)
	}
	rank := motifRank()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		ri, rj := rankOf(rank, out[i].Motif), rankOf(rank, out[j].Motif)
		if ri != rj {
			return ri < rj
		}
		return out[i].Motif < out[j].Motif
	})
	return out
}

// motifRank orders equally frequent loops by the engine's motif table; motifs
// it does not know sort after them.
func motifRank() map[string]int {
	names := engine.MotifNames()
	rank := make(map[string]int, len(names))
	for i, name := range names {
		rank[name] = i
	}
	return rank
}

func rankOf(rank map[string]int, motif string) int {
	if r, ok := rank[motif]; ok {
		return r
	}
	return len(rank)
}
