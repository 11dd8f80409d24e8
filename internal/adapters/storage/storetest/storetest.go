// Package storetest holds the behavior every storage adapter must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

var base = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleProfile(userID domain.UserID) *domain.UserArchetypeProfile {
	return &domain.UserArchetypeProfile{
		UserID: userID,
		CurrentArchetypeStack: domain.ArchetypeStack{
			Primary:         "Seeker",
			Secondary:       "Mystic Channel",
			ConfidenceScore: 0.42,
			StabilityScore:  0.5,
		},
		SymbolicSignature:  domain.SymbolicSignature{Threshold: 0.4, Weave: 0.2},
		EmotionalResonance: domain.ProfileResonance{Valence: 0.5, Arousal: 0.1, Certainty: 0.3},
		ArchetypeEvolution: []domain.EvolutionEntry{
			{Timestamp: base, PrimaryArchetype: "Guardian", Confidence: 0.85, TriggerEvent: "initial_quiz"},
			{Timestamp: base.Add(time.Hour), PrimaryArchetype: "Seeker", Confidence: 0.42, TriggerEvent: "archetype_shift"},
		},
		QuizData: &domain.QuizData{
			ID:               "quiz_1",
			InitialArchetype: "Guardian",
			Version:          "1.0",
			CompletedAt:      base,
			Answers:          []domain.QuizAnswer{{QuestionID: "q1", Answer: "a", Archetype: "Guardian"}},
		},
		CreatedAt: base,
		UpdatedAt: base.Add(time.Hour),
	}
}

func sampleSignal(primary, stage string, at time.Time) *domain.SignalRecord {
	return &domain.SignalRecord{
		EmotionalResonance: domain.EmotionalResonance{
			Valence:          0.5,
			DominantEmotion:  "hope",
			DetectedEmotions: map[string]float64{"hope": 1.3},
		},
		SymbolicLanguage: domain.SymbolicLanguage{
			ExtractedSymbols: []string{"door"},
			SymbolCategories: map[string][]string{"threshold_symbols": {"door"}},
			MetaphorTypes:    []string{},
			SymbolicDensity:  12.5,
			SymbolicPhrases:  []string{},
		},
		ArchetypeBlend: domain.ArchetypeBlend{
			Primary:     primary,
			Confidence:  0.4,
			BlendScores: map[string]float64{primary: 0.4},
		},
		NarrativePosition: domain.NarrativePosition{Stage: stage, HeroJourneyPhase: "unknown"},
		MotifLoops: domain.MotifLoops{
			CurrentMotifs:    []string{"control"},
			ActiveLoops:      []string{},
			NewLoopsDetected: []string{"control"},
			BrokenLoops:      []string{},
			LoopStrengths:    map[string]float64{},
		},
		PrimaryArchetype: primary,
		ConfidenceScore:  0.4,
		Timestamp:        at,
	}
}

func sampleMoment(id domain.MomentID, userID domain.UserID, at time.Time) *domain.MirrorMoment {
	return &domain.MirrorMoment{
		ID:                id,
		UserID:            userID,
		TriggeredAt:       at,
		MomentType:        domain.ChangeArchetypeShift,
		FromState:         "Guardian",
		ToState:           "Visionary Rebel",
		SignificanceScore: 0.9,
		Description:       "Movement from Guardian to Visionary Rebel detected",
		SuggestedPractice: "Creative rebellion and freedom visualization",
	}
}

// RunProfileStore checks cold-start reads and save/overwrite round trips.
func RunProfileStore(t *testing.T, store domain.ProfileStore) {
	t.Helper()
	ctx := context.Background()

	got, err := store.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	want := sampleProfile("user-1")
	require.NoError(t, store.SaveProfile(ctx, want))

	got, err = store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.CurrentArchetypeStack, got.CurrentArchetypeStack)
	assert.Equal(t, want.SymbolicSignature, got.SymbolicSignature)
	assert.Equal(t, want.EmotionalResonance, got.EmotionalResonance)
	require.Len(t, got.ArchetypeEvolution, 2)
	assert.Equal(t, "archetype_shift", got.ArchetypeEvolution[1].TriggerEvent)
	assert.True(t, want.ArchetypeEvolution[1].Timestamp.Equal(got.ArchetypeEvolution[1].Timestamp))
	require.NotNil(t, got.QuizData)
	assert.Equal(t, "Guardian", got.QuizData.InitialArchetype)

	updated := sampleProfile("user-1")
	updated.CurrentArchetypeStack.Primary = "Weaver"
	require.NoError(t, store.SaveProfile(ctx, updated))

	got, err = store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Weaver", got.CurrentArchetypeStack.Primary)
}

// RunSignalStore checks ordering, limits and per-user isolation.
func RunSignalStore(t *testing.T, store domain.SignalStore) {
	t.Helper()
	ctx := context.Background()

	got, err := store.GetRecentSignals(ctx, "nobody", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	stages := []string{"beginning", "middle", "climax", "resolution"}
	for i, stage := range stages {
		rec := sampleSignal("Seeker", stage, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.AppendSignal(ctx, "user-1", rec))
	}
	require.NoError(t, store.AppendSignal(ctx, "user-2", sampleSignal("Guardian", "middle", base)))

	got, err = store.GetRecentSignals(ctx, "user-1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "resolution", got[0].NarrativePosition.Stage)
	assert.Equal(t, "climax", got[1].NarrativePosition.Stage)
	assert.Equal(t, "middle", got[2].NarrativePosition.Stage)
	assert.Equal(t, []string{"door"}, got[0].SymbolicLanguage.ExtractedSymbols)
	assert.Equal(t, []string{"control"}, got[0].MotifLoops.CurrentMotifs)
	assert.True(t, base.Add(3*time.Minute).Equal(got[0].Timestamp))

	got, err = store.GetRecentSignals(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = store.GetRecentSignals(ctx, "user-2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Guardian", got[0].PrimaryArchetype)
}

// RunMomentStore checks listing order, filters and acknowledgement.
func RunMomentStore(t *testing.T, store domain.MomentStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveMirrorMoment(ctx, sampleMoment("m1", "user-1", base)))
	require.NoError(t, store.SaveMirrorMoment(ctx, sampleMoment("m2", "user-1", base.Add(time.Minute))))
	require.NoError(t, store.SaveMirrorMoment(ctx, sampleMoment("m3", "user-1", base.Add(2*time.Minute))))
	require.NoError(t, store.SaveMirrorMoment(ctx, sampleMoment("other", "user-2", base)))

	got, err := store.ListMirrorMoments(ctx, "user-1", 2, false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.MomentID("m3"), got[0].ID)
	assert.Equal(t, domain.MomentID("m2"), got[1].ID)
	assert.Equal(t, domain.ChangeArchetypeShift, got[0].MomentType)
	assert.Equal(t, 0.9, got[0].SignificanceScore)
	assert.False(t, got[0].Acknowledged)

	ackAt := base.Add(time.Hour)
	require.NoError(t, store.AcknowledgeMirrorMoment(ctx, "user-1", "m2", ackAt))
	assert.ErrorIs(t, store.AcknowledgeMirrorMoment(ctx, "user-1", "m2", ackAt), domain.ErrNotFound)
	assert.ErrorIs(t, store.AcknowledgeMirrorMoment(ctx, "user-1", "missing", ackAt), domain.ErrNotFound)
	assert.ErrorIs(t, store.AcknowledgeMirrorMoment(ctx, "user-2", "m1", ackAt), domain.ErrNotFound)

	got, err = store.ListMirrorMoments(ctx, "user-1", 10, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.MomentID("m2"), got[0].ID)
	assert.True(t, got[0].Acknowledged)
	require.NotNil(t, got[0].AcknowledgedAt)
	assert.True(t, ackAt.Equal(*got[0].AcknowledgedAt))

	got, err = store.ListMirrorMoments(ctx, "nobody", 10, false)
	require.NoError(t, err)
	assert.Empty(t, got)
}
