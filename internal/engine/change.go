package engine

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
)

const (
	DirectionStrengthening = "strengthening"
	DirectionDestabilizing = "destabilizing"

	fallbackPractice     = "Reflective journaling and integration"
	loopPractice         = "Integration and celebration practice"
	breakthroughPractice = "Integration and grounding practice"
)

// DetectorConfig holds the change detection thresholds.
type DetectorConfig struct {
	// ShiftConfidenceThreshold is the blend confidence a new primary must
	// exceed before an archetype shift is reported.
	ShiftConfidenceThreshold float64
	// MirrorSignificanceThreshold is the significance an archetype shift must
	// exceed to count as a mirror moment.
	MirrorSignificanceThreshold float64
	// DefaultShiftSignificance applies to transitions missing from the
	// relationship table.
	DefaultShiftSignificance float64
	ConfidenceShiftThreshold float64
	MirrorConfidenceDelta    float64
	BreakthroughPhases       []string
}

func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ShiftConfidenceThreshold:    0.5,
		MirrorSignificanceThreshold: 0.7,
		DefaultShiftSignificance:    0.7,
		ConfidenceShiftThreshold:    0.3,
		MirrorConfidenceDelta:       0.5,
		BreakthroughPhases:          []string{"reward", "resurrection", "return_with_elixir"},
	}
}

// ChangeDetector compares a fresh SignalRecord with the user's stored state.
type ChangeDetector struct {
	catalog *archetype.Catalog
	config  DetectorConfig
}

func NewChangeDetector(catalog *archetype.Catalog, config ...DetectorConfig) *ChangeDetector {
	cfg := DefaultDetectorConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &ChangeDetector{catalog: catalog, config: cfg}
}

// Detect runs every change rule against current. Without a previous profile
// it short-circuits with ReasonNoPreviousData.
func (d *ChangeDetector) Detect(current *domain.SignalRecord, prev *domain.UserArchetypeProfile, prevSignals []*domain.SignalRecord) domain.ChangeResult {
	if prev == nil {
		return domain.ChangeResult{Reason: domain.ReasonNoPreviousData}
	}
	if current == nil {
		return domain.ChangeResult{Changes: []domain.Change{}}
	}

	changes := []domain.Change{}
	for _, rule := range []func() (domain.Change, bool){
		func() (domain.Change, bool) { return d.archetypeShift(current, prev) },
		func() (domain.Change, bool) { return d.confidenceShift(current, prev) },
		func() (domain.Change, bool) { return d.loopTransformation(current, prevSignals) },
		func() (domain.Change, bool) { return d.breakthrough(current) },
	} {
		if c, ok := rule(); ok {
			changes = append(changes, c)
		}
	}

	res := domain.ChangeResult{
		ChangeDetected: len(changes) > 0,
		Changes:        changes,
	}
	for _, c := range changes {
		if c.IsMirrorMoment {
			res.MirrorMomentTriggered = true
			break
		}
	}
	return res
}

func (d *ChangeDetector) archetypeShift(current *domain.SignalRecord, prev *domain.UserArchetypeProfile) (domain.Change, bool) {
	from := prev.CurrentArchetypeStack.Primary
	to := current.ArchetypeBlend.Primary
	conf := current.ArchetypeBlend.Confidence

	if from == "" || from == to || conf <= d.config.ShiftConfidenceThreshold {
		return domain.Change{}, false
	}

	significance := d.ShiftSignificance(from, to)
	practice := d.catalog.IntegrationPractice(to)
	if practice == "" {
		practice = fallbackPractice
	}

	return domain.Change{
		Type:              domain.ChangeArchetypeShift,
		IsMirrorMoment:    significance > d.config.MirrorSignificanceThreshold,
		Message:           fmt.Sprintf("Movement from %s to %s detected", from, to),
		SuggestedPractice: practice,
		FromArchetype:     from,
		ToArchetype:       to,
		Confidence:        conf,
		Significance:      significance,
	}, true
}

// ShiftSignificance looks the transition up in either direction, falling back
// to DefaultShiftSignificance.
func (d *ChangeDetector) ShiftSignificance(from, to string) float64 {
	if s, ok := d.catalog.Significance(from, to); ok && s > 0 {
		return s
	}
	return d.config.DefaultShiftSignificance
}

func (d *ChangeDetector) confidenceShift(current *domain.SignalRecord, prev *domain.UserArchetypeProfile) (domain.Change, bool) {
	prevConf := prev.CurrentArchetypeStack.ConfidenceScore
	currConf := current.ArchetypeBlend.Confidence
	delta := math.Abs(currConf - prevConf)

	if delta <= d.config.ConfidenceShiftThreshold {
		return domain.Change{}, false
	}

	direction := DirectionDestabilizing
	if currConf > prevConf {
		direction = DirectionStrengthening
	}

	return domain.Change{
		Type:              domain.ChangeConfidenceShift,
		IsMirrorMoment:    delta > d.config.MirrorConfidenceDelta,
		Message:           fmt.Sprintf("Archetype confidence %s: %.2f change", direction, delta),
		Direction:         direction,
		Delta:             delta,
		CurrentConfidence: currConf,
	}, true
}

func (d *ChangeDetector) loopTransformation(current *domain.SignalRecord, prevSignals []*domain.SignalRecord) (domain.Change, bool) {
	broken := current.MotifLoops.BrokenLoops
	if len(prevSignals) == 0 || len(broken) == 0 {
		return domain.Change{}, false
	}

	return domain.Change{
		Type:              domain.ChangeLoopTransformation,
		IsMirrorMoment:    true,
		Message:           "Pattern loop(s) transformed: " + strings.Join(broken, ", "),
		SuggestedPractice: loopPractice,
		BrokenLoops:       slices.Clone(broken),
	}, true
}

func (d *ChangeDetector) breakthrough(current *domain.SignalRecord) (domain.Change, bool) {
	narrative := current.NarrativePosition
	if !narrative.TransformationMarker || !slices.Contains(d.config.BreakthroughPhases, narrative.HeroJourneyPhase) {
		return domain.Change{}, false
	}

	return domain.Change{
		Type:              domain.ChangeBreakthroughMoment,
		IsMirrorMoment:    true,
		Message:           "Breakthrough moment detected - transformation is integrating",
		SuggestedPractice: breakthroughPractice,
		JourneyPhase:      narrative.HeroJourneyPhase,
	}, true
}
