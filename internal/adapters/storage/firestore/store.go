package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (MIRROR_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) profileDoc(userID domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("archetype_profiles").Doc(string(userID))
}

func (s *Store) userDoc(userID domain.UserID) *firestore.DocumentRef {
	return s.client.Collection("users").Doc(string(userID))
}

func (s *Store) signalsCol(userID domain.UserID) *firestore.CollectionRef {
	return s.userDoc(userID).Collection("signals")
}

func (s *Store) momentsCol(userID domain.UserID) *firestore.CollectionRef {
	return s.userDoc(userID).Collection("mirror_moments")
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, error) {
	snap, err := s.profileDoc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("firestore GetProfile: %w", err)
	}

	var p domain.UserArchetypeProfile
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("firestore GetProfile decode: %w", err)
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *domain.UserArchetypeProfile) error {
	if profile == nil {
		return nil
	}
	if _, err := s.profileDoc(profile.UserID).Set(ctx, profile); err != nil {
		return fmt.Errorf("firestore SaveProfile: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────
// SignalStore implementation
// ─────────────────────────────────────────

func (s *Store) AppendSignal(ctx context.Context, userID domain.UserID, rec *domain.SignalRecord) error {
	if rec == nil {
		return nil
	}
	if _, _, err := s.signalsCol(userID).Add(ctx, rec); err != nil {
		return fmt.Errorf("firestore AppendSignal: %w", err)
	}
	return nil
}

func (s *Store) GetRecentSignals(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SignalRecord, error) {
	q := s.signalsCol(userID).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.SignalRecord{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore GetRecentSignals: %w", err)
		}

		var rec domain.SignalRecord
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decode signal record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// ─────────────────────────────────────────
// MomentStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveMirrorMoment(ctx context.Context, moment *domain.MirrorMoment) error {
	if moment == nil {
		return nil
	}
	if moment.ID == "" {
		moment.ID = domain.MomentID(uuid.NewString())
	}

	if _, err := s.momentsCol(moment.UserID).Doc(string(moment.ID)).Set(ctx, moment); err != nil {
		return fmt.Errorf("firestore SaveMirrorMoment: %w", err)
	}
	return nil
}

// ListMirrorMoments needs a composite index on (acknowledged, triggered_at)
// when acknowledgedOnly is set.
func (s *Store) ListMirrorMoments(ctx context.Context, userID domain.UserID, limit int, acknowledgedOnly bool) ([]*domain.MirrorMoment, error) {
	q := s.momentsCol(userID).Query
	if acknowledgedOnly {
		q = q.Where("acknowledged", "==", true)
	}
	q = q.OrderBy("triggered_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.MirrorMoment{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore ListMirrorMoments: %w", err)
		}

		var m domain.MirrorMoment
		if err := snap.DataTo(&m); err != nil {
			return nil, fmt.Errorf("decode mirror moment: %w", err)
		}
		m.ID = domain.MomentID(snap.Ref.ID)
		out = append(out, &m)
	}
	return out, nil
}

// AcknowledgeMirrorMoment flips the acknowledged flag inside a transaction so
// a moment is acknowledged at most once.
func (s *Store) AcknowledgeMirrorMoment(ctx context.Context, userID domain.UserID, id domain.MomentID, at domain.Timestamp) error {
	ref := s.momentsCol(userID).Doc(string(id))

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return domain.ErrNotFound
			}
			return err
		}

		acked, err := snap.DataAt("acknowledged")
		if err == nil {
			if b, _ := acked.(bool); b {
				return domain.ErrNotFound
			}
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "acknowledged", Value: true},
			{Path: "acknowledged_at", Value: at},
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("firestore AcknowledgeMirrorMoment: %w", err)
	}
	return nil
}
