package engine_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
)

func profileWith(primary string, confidence float64) *domain.UserArchetypeProfile {
	return &domain.UserArchetypeProfile{
		UserID: "user-1",
		CurrentArchetypeStack: domain.ArchetypeStack{
			Primary:         primary,
			ConfidenceScore: confidence,
		},
	}
}

func signalWith(primary string, confidence float64) *domain.SignalRecord {
	return &domain.SignalRecord{
		ArchetypeBlend:   domain.ArchetypeBlend{Primary: primary, Confidence: confidence},
		PrimaryArchetype: primary,
		ConfidenceScore:  confidence,
		MotifLoops:       domain.MotifLoops{BrokenLoops: []string{}},
	}
}

func changeTypes(res domain.ChangeResult) []domain.ChangeType {
	out := []domain.ChangeType{}
	for _, c := range res.Changes {
		out = append(out, c.Type)
	}
	return out
}

func TestDetectWithoutProfile(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())

	res := d.Detect(signalWith("Seeker", 0.9), nil, nil)

	assert.False(t, res.ChangeDetected)
	assert.Equal(t, domain.ReasonNoPreviousData, res.Reason)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"change_detected":false,"reason":"no_previous_data"}`, string(raw))
}

func TestDetectArchetypeShift(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())

	res := d.Detect(signalWith("Flamebearer", 0.8), profileWith("Guardian", 0), nil)

	require.True(t, res.ChangeDetected)
	require.Equal(t, []domain.ChangeType{domain.ChangeArchetypeShift, domain.ChangeConfidenceShift}, changeTypes(res))

	shift := res.Changes[0]
	assert.Equal(t, "Guardian", shift.FromArchetype)
	assert.Equal(t, "Flamebearer", shift.ToArchetype)
	assert.Equal(t, 0.8, shift.Confidence)
	assert.Equal(t, 0.7, shift.Significance)
	assert.False(t, shift.IsMirrorMoment)
	assert.Equal(t, "Movement from Guardian to Flamebearer detected", shift.Message)
	assert.Equal(t, "Creative expression and authentic truth-telling", shift.SuggestedPractice)

	// the 0.8 jump in confidence is itself a mirror moment
	assert.True(t, res.Changes[1].IsMirrorMoment)
	assert.True(t, res.MirrorMomentTriggered)
}

func TestDetectArchetypeShiftSignificance(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())

	tests := []struct {
		name       string
		from, to   string
		want       float64
		wantMirror bool
	}{
		{name: "direct pair", from: "Guardian", to: "Visionary Rebel", want: 0.9, wantMirror: true},
		{name: "reverse pair", from: "Visionary Rebel", to: "Guardian", want: 0.9, wantMirror: true},
		{name: "low significance", from: "Seeker", to: "Mystic Channel", want: 0.3},
		{name: "unmapped", from: "Seeker", to: "Exiled Lover", want: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := d.Detect(signalWith(tt.to, 0.6), profileWith(tt.from, 0.5), nil)

			require.Len(t, res.Changes, 1)
			c := res.Changes[0]
			assert.Equal(t, domain.ChangeArchetypeShift, c.Type)
			assert.Equal(t, tt.want, c.Significance)
			assert.Equal(t, tt.wantMirror, c.IsMirrorMoment)
			assert.Equal(t, tt.wantMirror, res.MirrorMomentTriggered)
		})
	}
}

func TestDetectShiftNeedsConfidence(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())

	res := d.Detect(signalWith("Weaver", 0.5), profileWith("Seeker", 0.5), nil)

	assert.False(t, res.ChangeDetected)
	assert.Empty(t, res.Changes)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"change_detected":false,"changes":[],"mirror_moment_triggered":false}`, string(raw))
}

func TestDetectConfidenceShift(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())

	res := d.Detect(signalWith("Seeker", 0.5), profileWith("Seeker", 0.9), nil)

	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, domain.ChangeConfidenceShift, c.Type)
	assert.Equal(t, engine.DirectionDestabilizing, c.Direction)
	assert.InDelta(t, 0.4, c.Delta, 1e-9)
	assert.Equal(t, 0.5, c.CurrentConfidence)
	assert.Equal(t, "Archetype confidence destabilizing: 0.40 change", c.Message)
	assert.False(t, c.IsMirrorMoment)
	assert.False(t, res.MirrorMomentTriggered)
}

func TestDetectLoopTransformation(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())
	current := signalWith("Seeker", 0.4)
	current.MotifLoops.BrokenLoops = []string{"control", "scarcity"}
	prev := profileWith("Seeker", 0.4)

	res := d.Detect(current, prev, nil)
	assert.False(t, res.ChangeDetected, "needs previous signals")

	res = d.Detect(current, prev, []*domain.SignalRecord{signalWith("Seeker", 0.4)})
	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, domain.ChangeLoopTransformation, c.Type)
	assert.Equal(t, []string{"control", "scarcity"}, c.BrokenLoops)
	assert.Equal(t, "Pattern loop(s) transformed: control, scarcity", c.Message)
	assert.True(t, c.IsMirrorMoment)
	assert.True(t, res.MirrorMomentTriggered)
}

func TestDetectBreakthrough(t *testing.T) {
	d := engine.NewChangeDetector(archetype.Default())
	prev := profileWith("Seeker", 0.4)

	for _, phase := range []string{"reward", "resurrection", "return_with_elixir"} {
		current := signalWith("Seeker", 0.4)
		current.NarrativePosition = domain.NarrativePosition{HeroJourneyPhase: phase, TransformationMarker: true}

		res := d.Detect(current, prev, nil)

		require.Len(t, res.Changes, 1, phase)
		assert.Equal(t, domain.ChangeBreakthroughMoment, res.Changes[0].Type)
		assert.Equal(t, phase, res.Changes[0].JourneyPhase)
		assert.True(t, res.MirrorMomentTriggered)
	}

	current := signalWith("Seeker", 0.4)
	current.NarrativePosition = domain.NarrativePosition{HeroJourneyPhase: "ordeal", TransformationMarker: true}
	assert.False(t, d.Detect(current, prev, nil).ChangeDetected)

	current.NarrativePosition = domain.NarrativePosition{HeroJourneyPhase: "reward"}
	assert.False(t, d.Detect(current, prev, nil).ChangeDetected)
}

func TestDetectFromExtractedSignals(t *testing.T) {
	ex := newExtractor(t)
	d := engine.NewChangeDetector(archetype.Default())

	rec := ex.Analyze("I had a breakthrough, a real insight and a gift", nil, nil)
	require.Equal(t, "reward", rec.NarrativePosition.HeroJourneyPhase)
	require.True(t, rec.NarrativePosition.TransformationMarker)

	res := d.Detect(rec, profileWith(rec.PrimaryArchetype, rec.ConfidenceScore), nil)

	assert.Equal(t, []domain.ChangeType{domain.ChangeBreakthroughMoment}, changeTypes(res))
}

func TestDetectCustomConfig(t *testing.T) {
	cfg := engine.DefaultDetectorConfig()
	cfg.DefaultShiftSignificance = 0.95
	d := engine.NewChangeDetector(archetype.Default(), cfg)

	res := d.Detect(signalWith("Flamebearer", 0.6), profileWith("Guardian", 0.5), nil)

	require.Len(t, res.Changes, 1)
	assert.Equal(t, 0.95, res.Changes[0].Significance)
	assert.True(t, res.MirrorMomentTriggered)
	assert.Equal(t, 0.95, d.ShiftSignificance("Guardian", "Flamebearer"))
}
