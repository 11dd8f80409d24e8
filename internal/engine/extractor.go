// Package engine turns a message into the five archetype signals, scores
// them, and compares them against a user's previous state. Everything here is
// pure: no I/O, no shared mutable state, safe for concurrent use.
package engine

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// Extractor is the signal extraction engine.
type Extractor struct {
	catalog *archetype.Catalog
	now     func() time.Time
}

type ExtractorOption func(*Extractor)

// WithClock overrides the clock used to stamp SignalRecord.Timestamp.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) { e.now = now }
}

func NewExtractor(catalog *archetype.Catalog, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		catalog: catalog,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze extracts all five signals from message. history is most recent
// first and only feeds narrative progression; cs may be nil.
func (e *Extractor) Analyze(message string, history []*domain.SignalRecord, cs *domain.ContextSignals) *domain.SignalRecord {
	lower := strings.ToLower(message)
	words := len(strings.Fields(message))

	emotional := analyzeEmotion(lower, words)
	symbolic := e.extractSymbolic(lower, words)
	blend := e.detectBlend(lower, emotional, symbolic)
	narrative := analyzeNarrative(lower, history)

	var historical domain.MotifHistory
	if cs != nil {
		historical = cs.HistoricalMotifs
	}
	motifs := detectMotifLoops(lower, historical)

	return &domain.SignalRecord{
		EmotionalResonance: emotional,
		SymbolicLanguage:   symbolic,
		ArchetypeBlend:     blend,
		NarrativePosition:  narrative,
		MotifLoops:         motifs,
		PrimaryArchetype:   blend.Primary,
		ConfidenceScore:    blend.Confidence,
		Timestamp:          e.now().UTC(),
	}
}

func countMatches(re *regexp.Regexp, s string) int {
	return len(re.FindAllStringIndex(s, -1))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
