// Package mirror runs a conversation turn through the archetype engine and
// keeps the user's profile, signal history and Mirror Moments up to date.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PabloGalante/mirror-agent/internal/archetype"
	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/engine"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

const (
	AnalysisVersion = "1.0"

	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 20

	defaultSignalsLimit = 10
	maxSignalsLimit     = 100
)

// FallbackResponse is shown when a turn could not be analyzed.
const FallbackResponse = "I'm experiencing some difficulty connecting to the deeper patterns right now. Could you share that again?"

type Service struct {
	catalog   *archetype.Catalog
	extractor *engine.Extractor
	detector  *engine.ChangeDetector
	responder *Responder

	profiles domain.ProfileStore
	signals  domain.SignalStore
	moments  domain.MomentStore

	now          func() time.Time
	historyLimit int
	detectorCfg  engine.DetectorConfig
	locks        *userLocks
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHistoryLimit sets how many previous signals feed each turn. Values are
// clamped to [1, MaxHistoryLimit].
func WithHistoryLimit(n int) Option {
	return func(s *Service) { s.historyLimit = min(max(n, 1), MaxHistoryLimit) }
}

func WithDetectorConfig(cfg engine.DetectorConfig) Option {
	return func(s *Service) { s.detectorCfg = cfg }
}

func NewService(
	catalog *archetype.Catalog,
	llm domain.LLMClient,
	profiles domain.ProfileStore,
	signals domain.SignalStore,
	moments domain.MomentStore,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:      catalog,
		profiles:     profiles,
		signals:      signals,
		moments:      moments,
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
		detectorCfg:  engine.DefaultDetectorConfig(),
		locks:        newUserLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.extractor = engine.NewExtractor(catalog, engine.WithClock(s.now))
	s.detector = engine.NewChangeDetector(catalog, s.detectorCfg)
	s.responder = NewResponder(catalog, llm)
	return s
}

type TurnInput struct {
	UserID    domain.UserID
	SessionID domain.SessionID
	Message   string
	UserName  string
	// Enhanced asks the LLM for the reply instead of the archetype template.
	Enhanced bool
}

type ArchetypeAnalysis struct {
	PrimaryArchetype   string                    `json:"primary_archetype"`
	SecondaryArchetype string                    `json:"secondary_archetype,omitempty"`
	ConfidenceScore    float64                   `json:"confidence_score"`
	SymbolicElements   []string                  `json:"symbolic_elements"`
	EmotionalMarkers   domain.EmotionalResonance `json:"emotional_markers"`
	NarrativePosition  domain.NarrativePosition  `json:"narrative_position"`
	ActiveLoops        []string                  `json:"active_loops"`
}

type ChangeDetection struct {
	ChangeDetected bool            `json:"change_detected"`
	MirrorMoment   bool            `json:"mirror_moment"`
	Changes        []domain.Change `json:"changes"`
}

type SessionMetadata struct {
	SessionID       domain.SessionID `json:"session_id,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
	AnalysisVersion string           `json:"analysis_version"`
}

type TurnOutput struct {
	Response            string                  `json:"response"`
	ArchetypeAnalysis   ArchetypeAnalysis       `json:"archetype_analysis"`
	ChangeDetection     ChangeDetection         `json:"change_detection"`
	SuggestedPractice   string                  `json:"suggested_practice,omitempty"`
	ConfidenceBreakdown domain.ConfidenceScores `json:"confidence_breakdown"`
	SessionMetadata     SessionMetadata         `json:"session_metadata"`
	Signals             *domain.SignalRecord    `json:"signals"`
	MirrorMoment        *domain.MirrorMoment    `json:"mirror_moment_record,omitempty"`
}

// turnAnalysis is the pure part of a turn.
type turnAnalysis struct {
	record  *domain.SignalRecord
	scores  domain.ConfidenceScores
	change  domain.ChangeResult
	profile *domain.UserArchetypeProfile
	moment  *domain.MirrorMoment
}

// ProcessTurn analyzes one message, persists the signal record, the updated
// profile and any Mirror Moment, and renders the reply. Turns for the same
// user run one at a time.
func (s *Service) ProcessTurn(ctx context.Context, in TurnInput) (*TurnOutput, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"session_id", in.SessionID,
	)
	log.Info("processing mirror turn")

	unlock := s.locks.lock(in.UserID)
	defer unlock()

	prevProfile, prevSignals, err := s.loadState(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	ta, err := s.analyze(in, prevProfile, prevSignals, now)
	if err != nil {
		log.Error("turn analysis failed", "error", err)
		return nil, err
	}

	if err := s.signals.AppendSignal(ctx, in.UserID, ta.record); err != nil {
		log.Error("failed to append signal", "error", err)
		return nil, fmt.Errorf("append signal: %w", err)
	}
	if err := s.profiles.SaveProfile(ctx, ta.profile); err != nil {
		log.Error("failed to save profile", "error", err)
		return nil, fmt.Errorf("save profile: %w", err)
	}
	if ta.moment != nil {
		if err := s.moments.SaveMirrorMoment(ctx, ta.moment); err != nil {
			log.Error("failed to save mirror moment", "error", err)
			return nil, fmt.Errorf("save mirror moment: %w", err)
		}
		log.Info("mirror moment triggered", "moment_id", ta.moment.ID, "moment_type", ta.moment.MomentType)
	}

	var response string
	if in.Enhanced {
		rc := s.responder.ReflectionContext(in, ta.record, ta.change)
		response = s.responder.Enhanced(ctx, in.Message, rc, ta.record, ta.change)
	} else {
		response = s.responder.Template(ta.record, ta.change)
	}

	out := &TurnOutput{
		Response: response,
		ArchetypeAnalysis: ArchetypeAnalysis{
			PrimaryArchetype:   ta.record.ArchetypeBlend.Primary,
			SecondaryArchetype: ta.record.ArchetypeBlend.Secondary,
			ConfidenceScore:    ta.scores.Overall,
			SymbolicElements:   ta.record.SymbolicLanguage.ExtractedSymbols,
			EmotionalMarkers:   ta.record.EmotionalResonance,
			NarrativePosition:  ta.record.NarrativePosition,
			ActiveLoops:        ta.record.MotifLoops.ActiveLoops,
		},
		ChangeDetection: ChangeDetection{
			ChangeDetected: ta.change.ChangeDetected,
			MirrorMoment:   ta.change.MirrorMomentTriggered,
			Changes:        ta.change.Changes,
		},
		ConfidenceBreakdown: ta.scores,
		SessionMetadata: SessionMetadata{
			SessionID:       in.SessionID,
			Timestamp:       now.UTC(),
			AnalysisVersion: AnalysisVersion,
		},
		Signals:      ta.record,
		MirrorMoment: ta.moment,
	}
	if out.ChangeDetection.Changes == nil {
		out.ChangeDetection.Changes = []domain.Change{}
	}
	if c, ok := ta.change.PrimaryChange(); ok {
		out.SuggestedPractice = c.SuggestedPractice
	}

	log.Info("mirror turn completed",
		"primary_archetype", out.ArchetypeAnalysis.PrimaryArchetype,
		"confidence", ta.scores.Overall,
		"change_detected", ta.change.ChangeDetected,
	)
	return out, nil
}

// Analyze runs the engine on message without reading or writing any store.
// A panic inside the engine is reported as domain.ErrAnalysisFailed.
func (s *Service) Analyze(message string, history []*domain.SignalRecord) (rec *domain.SignalRecord, scores domain.ConfidenceScores, err error) {
	defer recoverAnalysis("", &err)

	rec = s.extractor.Analyze(message, history, &domain.ContextSignals{HistoricalMotifs: HistoricalMotifs(history)})
	return rec, engine.CalculateConfidence(rec, HistoricalStability(history)), nil
}

// loadState fetches the previous profile and recent signals concurrently.
// Store failures degrade to a cold start; only cancellation aborts the turn.
func (s *Service) loadState(ctx context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, []*domain.SignalRecord, error) {
	log := observability.LoggerFromContext(ctx).With("user_id", userID)

	var (
		profile *domain.UserArchetypeProfile
		signals []*domain.SignalRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.GetProfile(gctx, userID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn("failed to load profile, treating as cold start", "error", err)
			return nil
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		recs, err := s.signals.GetRecentSignals(gctx, userID, s.historyLimit)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn("failed to load recent signals", "error", err)
			return nil
		}
		signals = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return profile, signals, nil
}

// analyze runs the pure core. A panic inside it is reported as
// domain.ErrAnalysisFailed.
func (s *Service) analyze(
	in TurnInput,
	prevProfile *domain.UserArchetypeProfile,
	prevSignals []*domain.SignalRecord,
	now time.Time,
) (ta turnAnalysis, err error) {
	defer recoverAnalysis(in.UserID, &err)

	cs := &domain.ContextSignals{HistoricalMotifs: HistoricalMotifs(prevSignals)}
	ta.record = s.extractor.Analyze(in.Message, prevSignals, cs)
	ta.scores = engine.CalculateConfidence(ta.record, HistoricalStability(prevSignals))
	ta.change = s.detector.Detect(ta.record, prevProfile, prevSignals)
	ta.profile = NextProfile(in.UserID, prevProfile, ta.record, ta.scores, ta.change, now)
	if m, ok := NewMirrorMoment(in.UserID, ta.change, now); ok {
		ta.moment = m
	}
	return ta, nil
}

// recoverAnalysis must be deferred directly so recover sees the panic.
func recoverAnalysis(userID domain.UserID, err *error) {
	if r := recover(); r != nil {
		observability.WithFields("user_id", userID).Error("panic in archetype engine",
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*err = fmt.Errorf("%w: %v", domain.ErrAnalysisFailed, r)
	}
}

// Profile returns the stored profile or domain.ErrNotFound.
func (s *Service) Profile(ctx context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// RecentSignals returns the user's latest signal records, most recent first.
func (s *Service) RecentSignals(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SignalRecord, error) {
	if limit <= 0 {
		limit = defaultSignalsLimit
	}
	limit = min(limit, maxSignalsLimit)

	recs, err := s.signals.GetRecentSignals(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	if recs == nil {
		recs = []*domain.SignalRecord{}
	}
	return recs, nil
}

type InitialProfileInput struct {
	UserID      domain.UserID
	Archetype   string
	Answers     []domain.QuizAnswer
	CompletedAt time.Time
	Version     string
}

const (
	initialConfidence = 0.85
	initialStability  = 0.8
	initialCertainty  = 0.7
	storedQuizAnswers = 5
	initialTrigger    = "initial_quiz"
	defaultQuizVer    = "1.0"
)

// CreateInitialProfile seeds (or reseeds) a profile from the onboarding quiz.
func (s *Service) CreateInitialProfile(ctx context.Context, in InitialProfileInput) (*domain.UserArchetypeProfile, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}
	if _, ok := s.catalog.Get(in.Archetype); !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownArchetype, in.Archetype)
	}

	log := observability.LoggerFromContext(ctx).With("user_id", in.UserID, "archetype", in.Archetype)

	unlock := s.locks.lock(in.UserID)
	defer unlock()

	existing, err := s.profiles.GetProfile(ctx, in.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Warn("failed to check existing profile", "error", err)
	}
	if existing != nil {
		log.Info("user already has a profile, replacing with quiz result")
	}

	now := s.now()
	completedAt := in.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}
	version := in.Version
	if version == "" {
		version = defaultQuizVer
	}
	answers := in.Answers
	if len(answers) > storedQuizAnswers {
		answers = answers[:storedQuizAnswers]
	}

	profile := &domain.UserArchetypeProfile{
		UserID: in.UserID,
		CurrentArchetypeStack: domain.ArchetypeStack{
			Primary:         in.Archetype,
			ConfidenceScore: initialConfidence,
			StabilityScore:  initialStability,
		},
		EmotionalResonance: domain.ProfileResonance{Certainty: initialCertainty},
		ArchetypeEvolution: []domain.EvolutionEntry{{
			Timestamp:        completedAt,
			PrimaryArchetype: in.Archetype,
			Confidence:       initialConfidence,
			TriggerEvent:     initialTrigger,
		}},
		QuizData: &domain.QuizData{
			ID:               newQuizID(now),
			InitialArchetype: in.Archetype,
			Version:          version,
			CompletedAt:      completedAt,
			Answers:          append([]domain.QuizAnswer(nil), answers...),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.profiles.SaveProfile(ctx, profile); err != nil {
		log.Error("failed to save initial profile", "error", err)
		return nil, fmt.Errorf("save profile: %w", err)
	}

	log.Info("initial archetype profile created")
	return profile, nil
}
