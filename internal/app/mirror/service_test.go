package mirror_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/PabloGalante/mirror-agent/internal/adapters/llm"
	"github.com/PabloGalante/mirror-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/mirror-agent/internal/app/mirror"
	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const seekerMessage = "I'm searching for truth and meaning in life, seeking the light beyond darkness."

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc      *mirror.Service
	profiles *memory.ProfileStore
	signals  *memory.SignalStore
	moments  *memory.MomentStore
}

func newHarness(t *testing.T, opts ...mirror.Option) *harness {
	t.Helper()

	h := &harness{
		profiles: memory.NewProfileStore(),
		signals:  memory.NewSignalStore(),
		moments:  memory.NewMomentStore(),
	}
	opts = append([]mirror.Option{mirror.WithClock(func() time.Time { return base })}, opts...)
	h.svc = mirror.NewService(archetype.Default(), llm.NewMockLLM(), h.profiles, h.signals, h.moments, opts...)
	return h
}

// shiftOnlyConfig makes any primary change fire an archetype shift and keeps
// confidence shifts out of the way.
func shiftOnlyConfig() engine.DetectorConfig {
	cfg := engine.DefaultDetectorConfig()
	cfg.ShiftConfidenceThreshold = 0
	cfg.ConfidenceShiftThreshold = 1
	return cfg
}

func TestProcessTurnColdStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", SessionID: "s1", Message: seekerMessage})
	require.NoError(t, err)

	assert.Equal(t, "Seeker", out.ArchetypeAnalysis.PrimaryArchetype)
	assert.True(t, strings.HasPrefix(out.Response, "I sense the Seeker stirring in you"), out.Response)
	assert.False(t, out.ChangeDetection.ChangeDetected)
	assert.NotNil(t, out.ChangeDetection.Changes)
	assert.Empty(t, out.SuggestedPractice)
	assert.Nil(t, out.MirrorMoment)
	assert.Equal(t, domain.SessionID("s1"), out.SessionMetadata.SessionID)
	assert.Equal(t, mirror.AnalysisVersion, out.SessionMetadata.AnalysisVersion)
	assert.Equal(t, base, out.SessionMetadata.Timestamp)
	require.NotNil(t, out.Signals)
	assert.Equal(t, out.ConfidenceBreakdown.Historical, engine.DefaultHistoricalStability)

	profile, err := h.profiles.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Seeker", profile.CurrentArchetypeStack.Primary)
	assert.Equal(t, out.ConfidenceBreakdown.Overall, profile.CurrentArchetypeStack.ConfidenceScore)
	assert.Empty(t, profile.ArchetypeEvolution)
	assert.Equal(t, base, profile.CreatedAt)

	recs, err := h.signals.GetRecentSignals(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestProcessTurnDetectsShiftFromQuizProfile(t *testing.T) {
	h := newHarness(t, mirror.WithDetectorConfig(shiftOnlyConfig()))
	ctx := context.Background()

	_, err := h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{UserID: "u1", Archetype: "Guardian"})
	require.NoError(t, err)

	out, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
	require.NoError(t, err)

	require.True(t, out.ChangeDetection.ChangeDetected)
	require.Len(t, out.ChangeDetection.Changes, 1)
	c := out.ChangeDetection.Changes[0]
	assert.Equal(t, domain.ChangeArchetypeShift, c.Type)
	assert.Equal(t, "Movement from Guardian to Seeker detected", c.Message)
	assert.Equal(t, 0.7, c.Significance)
	assert.False(t, out.ChangeDetection.MirrorMoment)
	assert.Equal(t, "Contemplative journaling with symbolic exploration", out.SuggestedPractice)
	assert.Contains(t, out.Response, "Something has shifted in you. Movement from Guardian to Seeker detected")

	profile, err := h.profiles.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, profile.ArchetypeEvolution, 2)
	assert.Equal(t, "initial_quiz", profile.ArchetypeEvolution[0].TriggerEvent)
	assert.Equal(t, "archetype_shift", profile.ArchetypeEvolution[1].TriggerEvent)
	assert.Equal(t, "Seeker", profile.ArchetypeEvolution[1].PrimaryArchetype)
	require.NotNil(t, profile.QuizData, "quiz data survives turns")
	assert.Equal(t, "Guardian", profile.QuizData.InitialArchetype)

	got, err := h.moments.ListMirrorMoments(ctx, "u1", 10, false)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestProcessTurnSavesMirrorMoment(t *testing.T) {
	cfg := shiftOnlyConfig()
	cfg.MirrorSignificanceThreshold = 0.5
	h := newHarness(t, mirror.WithDetectorConfig(cfg))
	ctx := context.Background()

	_, err := h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{UserID: "u1", Archetype: "Guardian"})
	require.NoError(t, err)

	out, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
	require.NoError(t, err)
	require.True(t, out.ChangeDetection.MirrorMoment)
	require.NotNil(t, out.MirrorMoment)

	got, err := h.moments.ListMirrorMoments(ctx, "u1", 10, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	m := got[0]
	assert.Equal(t, out.MirrorMoment.ID, m.ID)
	assert.True(t, strings.HasPrefix(string(m.ID), "moment_20260301_120000_"), m.ID)
	assert.Equal(t, domain.ChangeArchetypeShift, m.MomentType)
	assert.Equal(t, "Guardian", m.FromState)
	assert.Equal(t, "Seeker", m.ToState)
	assert.Equal(t, 0.7, m.SignificanceScore)
	assert.False(t, m.Acknowledged)
}

func TestProcessTurnWarmUsesHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for range 3 {
		_, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: "I always lack time"})
		require.NoError(t, err)
	}
	out, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: "I always lack time"})
	require.NoError(t, err)

	assert.Equal(t, []string{"scarcity"}, out.ArchetypeAnalysis.ActiveLoops)
	assert.Equal(t, map[string]float64{"scarcity": 0.3}, out.Signals.MotifLoops.LoopStrengths)
}

func TestProcessTurnValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ProcessTurn(context.Background(), mirror.TurnInput{Message: "hello"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProcessTurnEngineFailure(t *testing.T) {
	profiles := memory.NewProfileStore()
	signals := memory.NewSignalStore()
	svc := mirror.NewService(nil, nil, profiles, signals, memory.NewMomentStore())

	_, err := svc.ProcessTurn(context.Background(), mirror.TurnInput{UserID: "u1", Message: seekerMessage})
	require.ErrorIs(t, err, domain.ErrAnalysisFailed)

	p, err := profiles.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, p, "nothing is saved when analysis fails")
	recs, err := signals.GetRecentSignals(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

type failingProfiles struct {
	*memory.ProfileStore
	getErr  error
	saveErr error
}

func (f *failingProfiles) GetProfile(ctx context.Context, id domain.UserID) (*domain.UserArchetypeProfile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.ProfileStore.GetProfile(ctx, id)
}

func (f *failingProfiles) SaveProfile(ctx context.Context, p *domain.UserArchetypeProfile) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.ProfileStore.SaveProfile(ctx, p)
}

func TestProcessTurnStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("read failure degrades to cold start", func(t *testing.T) {
		profiles := &failingProfiles{ProfileStore: memory.NewProfileStore(), getErr: errors.New("boom")}
		svc := mirror.NewService(archetype.Default(), nil, profiles, memory.NewSignalStore(), memory.NewMomentStore())

		out, err := svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
		require.NoError(t, err)
		assert.False(t, out.ChangeDetection.ChangeDetected)
	})

	t.Run("save failure fails the turn", func(t *testing.T) {
		profiles := &failingProfiles{ProfileStore: memory.NewProfileStore(), saveErr: errors.New("disk full")}
		svc := mirror.NewService(archetype.Default(), nil, profiles, memory.NewSignalStore(), memory.NewMomentStore())

		_, err := svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("cancelled context aborts the fetch", func(t *testing.T) {
		profiles := &failingProfiles{ProfileStore: memory.NewProfileStore(), getErr: context.Canceled}
		svc := mirror.NewService(archetype.Default(), nil, profiles, memory.NewSignalStore(), memory.NewMomentStore())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.ProcessTurn(cctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProcessTurnConcurrentSameUser(t *testing.T) {
	h := newHarness(t, mirror.WithDetectorConfig(shiftOnlyConfig()))
	ctx := context.Background()

	_, err := h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{UserID: "u1", Archetype: "Guardian"})
	require.NoError(t, err)

	const turns = 8
	messages := []string{seekerMessage, "I tend and nurture and shelter the ones I care for."}

	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := range turns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: messages[i%2]})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	recs, err := h.signals.GetRecentSignals(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, turns)

	// Each turn saw the profile written by the previous one, so every
	// primary change became exactly one evolution entry.
	profile, err := h.profiles.GetProfile(ctx, "u1")
	require.NoError(t, err)
	prev := "Guardian"
	shifts := 0
	for i := len(recs) - 1; i >= 0; i-- {
		if p := recs[i].ArchetypeBlend.Primary; p != prev {
			shifts++
			prev = p
		}
	}
	assert.Len(t, profile.ArchetypeEvolution, 1+shifts)
}

func TestAnalyzeIsStateless(t *testing.T) {
	h := newHarness(t)

	rec, scores, err := h.svc.Analyze(seekerMessage, nil)
	require.NoError(t, err)

	assert.Equal(t, "Seeker", rec.PrimaryArchetype)
	assert.Greater(t, scores.Overall, 0.0)
	p, err := h.profiles.GetProfile(context.Background(), "anyone")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAnalyzeRecoversEnginePanic(t *testing.T) {
	svc := mirror.NewService(nil, nil, nil, nil, nil)

	rec, _, err := svc.Analyze(seekerMessage, nil)

	require.ErrorIs(t, err, domain.ErrAnalysisFailed)
	assert.Nil(t, rec)
}

func TestProfileAndRecentSignals(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Profile(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recs, err := h.svc.RecentSignals(ctx, "u1", 0)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	for range 12 {
		_, err := h.svc.ProcessTurn(ctx, mirror.TurnInput{UserID: "u1", Message: seekerMessage})
		require.NoError(t, err)
	}

	recs, err = h.svc.RecentSignals(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 10, "default limit")

	p, err := h.svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Seeker", p.CurrentArchetypeStack.Primary)
}

func TestCreateInitialProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{UserID: "u1", Archetype: "Dragon"})
	assert.ErrorIs(t, err, domain.ErrUnknownArchetype)

	_, err = h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{Archetype: "Seeker"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	answers := make([]domain.QuizAnswer, 7)
	for i := range answers {
		answers[i] = domain.QuizAnswer{QuestionID: fmt.Sprintf("q%d", i+1), Answer: "a"}
	}
	completed := base.Add(-time.Hour)

	p, err := h.svc.CreateInitialProfile(ctx, mirror.InitialProfileInput{
		UserID:      "u1",
		Archetype:   "Weaver",
		Answers:     answers,
		CompletedAt: completed,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ArchetypeStack{Primary: "Weaver", ConfidenceScore: 0.85, StabilityScore: 0.8}, p.CurrentArchetypeStack)
	assert.Equal(t, 0.7, p.EmotionalResonance.Certainty)
	require.Len(t, p.ArchetypeEvolution, 1)
	assert.Equal(t, domain.EvolutionEntry{
		Timestamp:        completed,
		PrimaryArchetype: "Weaver",
		Confidence:       0.85,
		TriggerEvent:     "initial_quiz",
	}, p.ArchetypeEvolution[0])
	require.NotNil(t, p.QuizData)
	assert.Len(t, p.QuizData.Answers, 5)
	assert.Equal(t, "q5", p.QuizData.Answers[4].QuestionID)
	assert.Equal(t, "1.0", p.QuizData.Version)
	assert.True(t, strings.HasPrefix(p.QuizData.ID, "quiz_20260301_120000_"), p.QuizData.ID)

	stored, err := h.svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Weaver", stored.CurrentArchetypeStack.Primary)
}
