package moments

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/mirror-agent/internal/domain"
	"github.com/PabloGalante/mirror-agent/internal/observability"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Service holds the logic of reading and acknowledging Mirror Moments
type Service struct {
	store domain.MomentStore
	now   func() time.Time
}

// NewService creates a moments service from a MomentStore
func NewService(store domain.MomentStore) *Service {
	return &Service{
		store: store,
		now:   time.Now,
	}
}

// WithClock replaces the clock used for acknowledgement timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns the user's latest Mirror Moments, most recent first.
// If limit <= 0, DefaultLimit is used; larger values are capped at MaxLimit.
func (s *Service) List(
	ctx context.Context,
	userID domain.UserID,
	limit int,
	acknowledgedOnly bool,
) ([]*domain.MirrorMoment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", domain.ErrInvalidInput)
	}

	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	out, err := s.store.ListMirrorMoments(ctx, userID, limit, acknowledgedOnly)
	if err != nil {
		return nil, fmt.Errorf("list mirror moments: %w", err)
	}
	if out == nil {
		out = []*domain.MirrorMoment{}
	}
	return out, nil
}

// Acknowledge marks a moment as seen by its owner. It returns
// domain.ErrNotFound when the moment does not exist, belongs to someone
// else or was already acknowledged.
func (s *Service) Acknowledge(ctx context.Context, userID domain.UserID, id domain.MomentID) error {
	if userID == "" || id == "" {
		return fmt.Errorf("%w: user_id and moment_id are required", domain.ErrInvalidInput)
	}

	log := observability.LoggerFromContext(ctx).With("user_id", userID, "moment_id", id)

	if err := s.store.AcknowledgeMirrorMoment(ctx, userID, id, s.now().UTC()); err != nil {
		log.Warn("failed to acknowledge mirror moment", "error", err)
		return fmt.Errorf("acknowledge mirror moment: %w", err)
	}

	log.Info("mirror moment acknowledged")
	return nil
}
