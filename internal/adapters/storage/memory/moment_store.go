package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// MomentStore is an in-memory domain.MomentStore. Moments are copied in and
// out so callers never share state with the store.
type MomentStore struct {
	mu       sync.RWMutex
	moments  map[domain.MomentID]domain.MirrorMoment
	byUserID map[domain.UserID][]domain.MomentID
}

func NewMomentStore() *MomentStore {
	return &MomentStore{
		moments:  make(map[domain.MomentID]domain.MirrorMoment),
		byUserID: make(map[domain.UserID][]domain.MomentID),
	}
}

func (s *MomentStore) SaveMirrorMoment(_ context.Context, moment *domain.MirrorMoment) error {
	if moment == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if moment.ID == "" {
		moment.ID = domain.MomentID(uuid.NewString())
	}
	if _, exists := s.moments[moment.ID]; !exists {
		s.byUserID[moment.UserID] = append(s.byUserID[moment.UserID], moment.ID)
	}
	s.moments[moment.ID] = *moment
	return nil
}

// ListMirrorMoments returns the user's moments, most recent first.
// If limit <= 0, returns all.
func (s *MomentStore) ListMirrorMoments(_ context.Context, userID domain.UserID, limit int, acknowledgedOnly bool) ([]*domain.MirrorMoment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUserID[userID]
	out := []*domain.MirrorMoment{}
	for i := len(ids) - 1; i >= 0; i-- {
		m := s.moments[ids[i]]
		if acknowledgedOnly && !m.Acknowledged {
			continue
		}
		out = append(out, &m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MomentStore) AcknowledgeMirrorMoment(_ context.Context, userID domain.UserID, id domain.MomentID, at domain.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.moments[id]
	if !ok || m.UserID != userID || m.Acknowledged {
		return domain.ErrNotFound
	}

	m.Acknowledged = true
	m.AcknowledgedAt = &at
	s.moments[id] = m
	return nil
}
