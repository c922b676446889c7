// Package session binds an uploaded inventory to a user under a short-lived
// opaque key. A matching run can only start from a live session.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// DefaultLifetime is how long a session key stays valid after creation.
const DefaultLifetime = 40 * time.Minute

// Session is one uploaded inventory awaiting an audit.
type Session struct {
	Key       string                 `json:"key"`
	UserID    string                 `json:"user_id"`
	Inventory []types.SoftwareRecord `json:"inventory"`
	Created   time.Time              `json:"created"`
	Expiry    time.Time              `json:"expiry"`
}

func (s *Session) clone() *Session {
	c := *s
	c.Inventory = append([]types.SoftwareRecord(nil), s.Inventory...)
	return &c
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.Expiry)
}

// Store holds audit sessions
type Store interface {
	Create(ctx context.Context, userID string, inventory []types.SoftwareRecord) (*Session, error)

	// Get returns ErrSessionNotFound for unknown keys and ErrSessionExpired
	// for keys past their lifetime that have not been swept yet.
	Get(ctx context.Context, key string) (*Session, error)

	Delete(ctx context.Context, key string) error

	// Len returns the number of live sessions.
	Len(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// NewKey returns a 32 character alphanumeric session key.
func NewKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Authorize loads the session for key and checks it belongs to userID. An
// empty userID skips the ownership check.
func Authorize(ctx context.Context, store Store, key, userID string) (*Session, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.ErrSessionNotFound
	}
	s, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if userID != "" && s.UserID != userID {
		return nil, errors.ErrSessionForbidden
	}
	return s, nil
}
