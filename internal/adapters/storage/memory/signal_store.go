package memory

import (
	"context"
	"sync"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

// DefaultMaxSignalsPerUser bounds how many records a SignalStore keeps per user.
const DefaultMaxSignalsPerUser = 200

type SignalStore struct {
	mu      sync.RWMutex
	signals map[domain.UserID][]*domain.SignalRecord
	maxLen  int
}

func NewSignalStore() *SignalStore {
	return &SignalStore{
		signals: make(map[domain.UserID][]*domain.SignalRecord),
		maxLen:  DefaultMaxSignalsPerUser,
	}
}

func (s *SignalStore) AppendSignal(_ context.Context, userID domain.UserID, rec *domain.SignalRecord) error {
	if rec == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recs := append(s.signals[userID], rec)
	if len(recs) > s.maxLen {
		recs = recs[len(recs)-s.maxLen:]
	}
	s.signals[userID] = recs
	return nil
}

// GetRecentSignals returns the last limit records, most recent first.
func (s *SignalStore) GetRecentSignals(_ context.Context, userID domain.UserID, limit int) ([]*domain.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.signals[userID]
	if limit <= 0 || limit > len(recs) {
		limit = len(recs)
	}

	out := make([]*domain.SignalRecord, 0, limit)
	for i := len(recs) - 1; i >= len(recs)-limit; i-- {
		out = append(out, recs[i])
	}
	return out, nil
}
