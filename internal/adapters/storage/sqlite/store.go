// Package sqlite stores profiles, signals and Mirror Moments in a local
// SQLite database. Profiles and signal records are kept as JSON documents.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/mirror-agent/internal/domain"
)

const memoryPath = ":memory:"

type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at path. Use ":memory:"
// for a throwaway database.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initPragmas(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize pragmas: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("execute %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS archetype_profiles (
		user_id TEXT PRIMARY KEY,
		profile TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS signal_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		primary_archetype TEXT NOT NULL,
		record TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_signal_records_user ON signal_records(user_id, id DESC);

	CREATE TABLE IF NOT EXISTS mirror_moments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		triggered_at TEXT NOT NULL,
		moment_type TEXT NOT NULL,
		from_state TEXT NOT NULL DEFAULT '',
		to_state TEXT NOT NULL DEFAULT '',
		significance_score REAL NOT NULL,
		description TEXT NOT NULL,
		suggested_practice TEXT NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		acknowledged_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_mirror_moments_user ON mirror_moments(user_id, seq DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─────────────────────────────────────────
// ProfileStore implementation
// ─────────────────────────────────────────

func (s *Store) GetProfile(ctx context.Context, userID domain.UserID) (*domain.UserArchetypeProfile, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile FROM archetype_profiles WHERE user_id = ?`, string(userID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite GetProfile: %w", err)
	}

	var p domain.UserArchetypeProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("sqlite GetProfile decode: %w", err)
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *domain.UserArchetypeProfile) error {
	if profile == nil || profile.UserID == "" {
		return errors.New("profile without user id")
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("sqlite SaveProfile encode: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO archetype_profiles (user_id, profile, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		profile = excluded.profile,
		updated_at = excluded.updated_at
	`, string(profile.UserID), string(raw), formatTime(profile.UpdatedAt))
	if err != nil {
		return fmt.Errorf("sqlite SaveProfile: %w", err)
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
		return fmt.Errorf("sqlite AppendSignal encode: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO signal_records (user_id, primary_archetype, record, created_at)
	VALUES (?, ?, ?, ?)
	`, string(userID), rec.PrimaryArchetype, string(raw), formatTime(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("sqlite AppendSignal: %w", err)
	}
	return nil
}

func (s *Store) GetRecentSignals(ctx context.Context, userID domain.UserID, limit int) ([]*domain.SignalRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT record FROM signal_records
	WHERE user_id = ?
	ORDER BY id DESC
	LIMIT ?
	`, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite GetRecentSignals: %w", err)
	}
	defer rows.Close()

	out := []*domain.SignalRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite GetRecentSignals scan: %w", err)
		}
		var rec domain.SignalRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("sqlite GetRecentSignals decode: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
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

	var ackAt *string
	if m.AcknowledgedAt != nil {
		v := formatTime(*m.AcknowledgedAt)
		ackAt = &v
	}

	_, err := s.db.ExecContext(ctx, `
	INSERT INTO mirror_moments (
		id, user_id, triggered_at, moment_type, from_state, to_state,
		significance_score, description, suggested_practice, acknowledged, acknowledged_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		acknowledged = excluded.acknowledged,
		acknowledged_at = excluded.acknowledged_at
	`,
		string(m.ID),
		string(m.UserID),
		formatTime(m.TriggeredAt),
		string(m.MomentType),
		m.FromState,
		m.ToState,
		m.SignificanceScore,
		m.Description,
		m.SuggestedPractice,
		m.Acknowledged,
		ackAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite SaveMirrorMoment: %w", err)
	}
	return nil
}

func (s *Store) ListMirrorMoments(ctx context.Context, userID domain.UserID, limit int, acknowledgedOnly bool) ([]*domain.MirrorMoment, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
	SELECT id, user_id, triggered_at, moment_type, from_state, to_state,
		significance_score, description, suggested_practice, acknowledged, acknowledged_at
	FROM mirror_moments
	WHERE user_id = ?`
	if acknowledgedOnly {
		query += ` AND acknowledged = 1`
	}
	query += ` ORDER BY seq DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, string(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite ListMirrorMoments: %w", err)
	}
	defer rows.Close()

	out := []*domain.MirrorMoment{}
	for rows.Next() {
		var (
			m                    domain.MirrorMoment
			id, user, momentType string
			triggeredAt          string
			ackAt                sql.NullString
		)
		if err := rows.Scan(
			&id, &user, &triggeredAt, &momentType, &m.FromState, &m.ToState,
			&m.SignificanceScore, &m.Description, &m.SuggestedPractice, &m.Acknowledged, &ackAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite ListMirrorMoments scan: %w", err)
		}

		m.ID = domain.MomentID(id)
		m.UserID = domain.UserID(user)
		m.MomentType = domain.ChangeType(momentType)
		if m.TriggeredAt, err = parseTime(triggeredAt); err != nil {
			return nil, fmt.Errorf("sqlite ListMirrorMoments triggered_at: %w", err)
		}
		if ackAt.Valid {
			t, err := parseTime(ackAt.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite ListMirrorMoments acknowledged_at: %w", err)
			}
			m.AcknowledgedAt = &t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) AcknowledgeMirrorMoment(ctx context.Context, userID domain.UserID, id domain.MomentID, at domain.Timestamp) error {
	res, err := s.db.ExecContext(ctx, `
	UPDATE mirror_moments
	SET acknowledged = 1, acknowledged_at = ?
	WHERE id = ? AND user_id = ? AND acknowledged = 0
	`, formatTime(at), string(id), string(userID))
	if err != nil {
		return fmt.Errorf("sqlite AcknowledgeMirrorMoment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite AcknowledgeMirrorMoment: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
