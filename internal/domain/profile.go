package domain

// MaxEvolutionEntries bounds UserArchetypeProfile.ArchetypeEvolution.
const MaxEvolutionEntries = 20

// ArchetypeStack is the user's current archetype standing.
type ArchetypeStack struct {
	Primary         string  `json:"primary" firestore:"primary"`
	Secondary       string  `json:"secondary,omitempty" firestore:"secondary"`
	ConfidenceScore float64 `json:"confidence_score" firestore:"confidence_score"`
	StabilityScore  float64 `json:"stability_score" firestore:"stability_score"`
}

// SymbolicSignature weights six symbolic elements in [0,1].
type SymbolicSignature struct {
	Threshold float64 `json:"threshold" firestore:"threshold"`
	Echo      float64 `json:"echo" firestore:"echo"`
	Light     float64 `json:"light" firestore:"light"`
	Wound     float64 `json:"wound" firestore:"wound"`
	Fire      float64 `json:"fire" firestore:"fire"`
	Weave     float64 `json:"weave" firestore:"weave"`
}

type ProfileResonance struct {
	Valence   float64 `json:"valence" firestore:"valence"`
	Arousal   float64 `json:"arousal" firestore:"arousal"`
	Certainty float64 `json:"certainty" firestore:"certainty"`
}

// EvolutionEntry records one detected change of the user's archetype state.
type EvolutionEntry struct {
	Timestamp        Timestamp `json:"timestamp" firestore:"timestamp"`
	PrimaryArchetype string    `json:"primary_archetype" firestore:"primary_archetype"`
	Confidence       float64   `json:"confidence" firestore:"confidence"`
	TriggerEvent     string    `json:"trigger_event" firestore:"trigger_event"`
}

type QuizAnswer struct {
	QuestionID string `json:"question_id" firestore:"question_id"`
	Answer     string `json:"answer" firestore:"answer"`
	Archetype  string `json:"archetype,omitempty" firestore:"archetype"`
}

// QuizData is kept on profiles seeded from the onboarding quiz.
type QuizData struct {
	ID               string       `json:"quiz_id" firestore:"quiz_id"`
	InitialArchetype string       `json:"initial_archetype" firestore:"initial_archetype"`
	Version          string       `json:"quiz_version" firestore:"quiz_version"`
	CompletedAt      Timestamp    `json:"completed_at" firestore:"completed_at"`
	Answers          []QuizAnswer `json:"answers" firestore:"answers"`
}

// UserArchetypeProfile is owned by the profile store and rewritten by the
// orchestrator after each turn.
type UserArchetypeProfile struct {
	UserID                UserID            `json:"user_id" firestore:"user_id"`
	CurrentArchetypeStack ArchetypeStack    `json:"current_archetype_stack" firestore:"current_archetype_stack"`
	SymbolicSignature     SymbolicSignature `json:"symbolic_signature" firestore:"symbolic_signature"`
	EmotionalResonance    ProfileResonance  `json:"emotional_resonance" firestore:"emotional_resonance"`
	ArchetypeEvolution    []EvolutionEntry  `json:"archetype_evolution" firestore:"archetype_evolution"`
	QuizData              *QuizData         `json:"quiz_data,omitempty" firestore:"quiz_data,omitempty"`
	CreatedAt             Timestamp         `json:"created_at" firestore:"created_at"`
	UpdatedAt             Timestamp         `json:"updated_at" firestore:"updated_at"`
}

// MirrorMoment is a user-visible record of a significant shift.
type MirrorMoment struct {
	ID                MomentID   `json:"moment_id" firestore:"-"`
	UserID            UserID     `json:"user_id" firestore:"user_id"`
	TriggeredAt       Timestamp  `json:"triggered_at" firestore:"triggered_at"`
	MomentType        ChangeType `json:"moment_type" firestore:"moment_type"`
	FromState         string     `json:"from_state,omitempty" firestore:"from_state"`
	ToState           string     `json:"to_state,omitempty" firestore:"to_state"`
	SignificanceScore float64    `json:"significance_score" firestore:"significance_score"`
	Description       string     `json:"description" firestore:"description"`
	SuggestedPractice string     `json:"suggested_practice" firestore:"suggested_practice"`
	Acknowledged      bool       `json:"acknowledged" firestore:"acknowledged"`
	AcknowledgedAt    *Timestamp `json:"acknowledged_at,omitempty" firestore:"acknowledged_at"`
}
