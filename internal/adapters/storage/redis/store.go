// Package redis stores profiles, signals and Mirror Moments in Redis.
//
// Keys are namespaced as "{prefix}:profile:{user}" for profiles,
// "{prefix}:signals:{user}" for the capped signal list,
// "{prefix}:moment:{id}" for moments and "{prefix}:moments:{user}" for the
// user's moment index.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

type StoreConfig struct {
	Prefix     string        // key prefix, default "mirror"
	MaxSignals int           // signals kept per user, default 200
	TTL        time.Duration // expiry for profile and moment keys, 0 = none
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Prefix: "mirror", MaxSignals: 200}
}

type Store struct {
	client goredis.UniversalClient
	cfg    StoreConfig
}

func NewStore(client goredis.UniversalClient, config ...StoreConfig) *Store {
	cfg := DefaultStoreConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "mirror"
	}
	if cfg.MaxSignals <= 0 {
		cfg.MaxSignals = 200
	}
	return &Store{client: client, cfg: cfg}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string, config ...StoreConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewStore(client, config...), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) profileKey(userID domain.UserID) string {
	return fmt.Sprintf("%s:profile:%s", s.cfg.Prefix, userID)
}

func (s *Store) signalsKey(userID domain.UserID) string {
	return fmt.Sprintf("%s:signals:%s", s.cfg.Prefix, userID)
}

func (s *Store) momentKey(id domain.MomentID) string {
	return fmt.Sprintf("%s:moment:%s", s.cfg.Prefix, id)
}

func (s *Store) momentIndexKey(userID domain.UserID) string {
	return fmt.Sprintf("%s:moments:%s", s.cfg.Prefix, userID)
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, error) {
	raw, err := s.client.Get(ctx, s.profileKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GetProfile: %w", err)
	}

	var p domain.UserArchetypeProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("redis GetProfile decode: %w", err)
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *domain.UserArchetypeProfile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("profile without user id")
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("redis SaveProfile encode: %w", err)
	}
	if err := s.client.Set(ctx, s.profileKey(profile.UserID), raw, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("redis SaveProfile: %w", err)
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

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis AppendSignal encode: %w", err)
	}

	key := s.signalsKey(userID)
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.RPush(ctx, key, raw)
		p.LTrim(ctx, key, int64(-s.cfg.MaxSignals), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis AppendSignal: %w", err)
	}
	return nil
}

func (s *Store) GetRecentSignals(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SignalRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	items, err := s.client.LRange(ctx, s.signalsKey(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis GetRecentSignals: %w", err)
	}

	out := make([]*domain.SignalRecord, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var rec domain.SignalRecord
		if err := json.Unmarshal([]byte(items[i]), &rec); err != nil {
			return nil, fmt.Errorf("redis GetRecentSignals decode: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

// ─────────────────────────────────────────
// MomentStore implementation
// ─────────────────────────────────────────

func (s *Store) SaveMirrorMoment(ctx context.Context, m *domain.MirrorMoment) error {
	if m == nil {
		return nil
	}
	if m.ID == "" {
		return errors.New("mirror moment without id")
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis SaveMirrorMoment encode: %w", err)
	}

	key := s.momentKey(m.ID)
	existed, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis SaveMirrorMoment: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, key, raw, s.cfg.TTL)
		if existed == 0 {
			p.RPush(ctx, s.momentIndexKey(m.UserID), string(m.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis SaveMirrorMoment: %w", err)
	}
	return nil
}

func (s *Store) ListMirrorMoments(ctx context.Context, userID domain.UserID, limit int, acknowledgedOnly bool) ([]*domain.MirrorMoment, error) {
	ids, err := s.client.LRange(ctx, s.momentIndexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ListMirrorMoments: %w", err)
	}
	out := []*domain.MirrorMoment{}
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.momentKey(domain.MomentID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ListMirrorMoments: %w", err)
	}

	for i := len(values) - 1; i >= 0; i-- {
		raw, ok := values[i].(string)
		if !ok {
			// expired or deleted
			continue
		}
		var m domain.MirrorMoment
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("redis ListMirrorMoments decode: %w", err)
		}
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

func (s *Store) AcknowledgeMirrorMoment(ctx context.Context, userID domain.UserID, id domain.MomentID, at domain.Timestamp) error {
	key := s.momentKey(id)

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var m domain.MirrorMoment
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		if m.UserID != userID || m.Acknowledged {
			return domain.ErrNotFound
		}

		m.Acknowledged = true
		m.AcknowledgedAt = &at
		updated, err := json.Marshal(&m)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, key, updated, s.cfg.TTL)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, goredis.TxFailedErr):
		// a concurrent acknowledgement won
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("redis AcknowledgeMirrorMoment: %w", err)
	}
	return nil
}
