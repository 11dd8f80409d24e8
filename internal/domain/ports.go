package domain

import "context"

// LLMClient renders a reflective reply for the detected archetype context.
type LLMClient interface {
	GenerateReply(ctx context.Context, userMessage string, rc ReflectionContext) (string, error)
}

// ReflectionContext gives the LLM what the engine learned about the message.
type ReflectionContext struct {
	UserID             UserID
	SessionID          SessionID
	UserName           string
	Archetype          string
	Confidence         float64
	ConfidenceLanguage string // archetype phrase for the confidence level
	CoreResonance      string
	Tone               string
	SymbolicLanguage   []string
	Symbols            []string
	DominantEmotion    string
	Valence            float64
	ChangeType         ChangeType // empty when nothing shifted
}

// ProfileStore persists one archetype profile per user.
// GetProfile returns (nil, nil) when the user has no profile yet.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID UserID) (*UserArchetypeProfile, error)
	SaveProfile(ctx context.Context, profile *UserArchetypeProfile) error
}

// SignalStore persists analyzed messages per user.
// GetRecentSignals returns at most limit records, most recent first.
type SignalStore interface {
	AppendSignal(ctx context.Context, userID UserID, rec *SignalRecord) error
	GetRecentSignals(ctx context.Context, userID UserID, limit int) ([]*SignalRecord, error)
}

// MomentStore persists Mirror Moments.
// ListMirrorMoments returns most recent first. AcknowledgeMirrorMoment
// returns ErrNotFound when the moment is missing or already acknowledged.
type MomentStore interface {
	SaveMirrorMoment(ctx context.Context, moment *MirrorMoment) error
	ListMirrorMoments(ctx context.Context, userID UserID, limit int, acknowledgedOnly bool) ([]*MirrorMoment, error)
	AcknowledgeMirrorMoment(ctx context.Context, userID UserID, id MomentID, at Timestamp) error
}
