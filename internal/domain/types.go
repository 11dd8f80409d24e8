package domain

import (
	"errors"
	"time"
)

type UserID string
type SessionID string
type MomentID string

type Timestamp = time.Time

// UnknownArchetype is reported when no archetype scored above zero.
const UnknownArchetype = "Unknown"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnknownArchetype = errors.New("unknown archetype")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAnalysisFailed   = errors.New("analysis failed")
)
