package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/types"
)

// MemoryStore keeps sessions in process memory. Expired sessions are rejected
// on lookup and removed by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	lifetime time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewMemoryStore creates a store whose sessions live for lifetime
// (DefaultLifetime when zero).
func NewMemoryStore(lifetime time.Duration, logger *slog.Logger) *MemoryStore {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		lifetime: lifetime,
		now:      time.Now,
		logger:   logger,
	}
}

// Create implements Store.
func (m *MemoryStore) Create(ctx context.Context, userID string, inventory []types.SoftwareRecord) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	s := &Session{
		Key:       NewKey(),
		UserID:    userID,
		Inventory: append([]types.SoftwareRecord(nil), inventory...),
		Created:   now,
		Expiry:    now.Add(m.lifetime),
	}

	m.mu.Lock()
	m.sessions[s.Key] = s
	m.mu.Unlock()

	observability.GetMetrics().SessionsCreated.Inc()
	return s.clone(), nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()

	if !ok {
		return nil, errors.ErrSessionNotFound
	}
	if s.Expired(m.now()) {
		return nil, errors.ErrSessionExpired
	}
	return s.clone(), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// Len implements Store.
func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if !s.Expired(now) {
			n++
		}
	}
	return n, nil
}

// Sweep removes every expired session and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, key)
			removed++
		}
	}
	if removed > 0 {
		observability.GetMetrics().SessionsExpired.Add(float64(removed))
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("expired sessions swept", "count", n)
				}
			}
		}
	}()
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
