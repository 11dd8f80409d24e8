package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// ProfileStore is an in-memory domain.ProfileStore.
// It is NOT persistent and is only suitable for development / local mode.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[domain.UserID]domain.UserArchetypeProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[domain.UserID]domain.UserArchetypeProfile),
	}
}

func (s *ProfileStore) GetProfile(_ context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *ProfileStore) SaveProfile(_ context.Context, profile *domain.UserArchetypeProfile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("profile without user id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.UserID] = *profile
	return nil
}
