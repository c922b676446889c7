package statestore

import (
	"context"
	"errors"

	"github.com/daimoniac/swaudit/internal/types"
)

// ErrCacheMiss is returned by GetMatch when no entry exists for the name.
// This is the normal state for a software name that has never been matched.
var ErrCacheMiss = errors.New("match cache miss")

// MatchCache persists the ranked outcome of matching a normalized software
// name. Entries never expire and are overwritten on every recomputation.
type MatchCache interface {
	// GetMatch returns the entry for normalizedName or ErrCacheMiss.
	GetMatch(ctx context.Context, normalizedName string) (*types.MatchCacheEntry, error)

	// PutMatch upserts entry by its normalized name, last write wins.
	PutMatch(ctx context.Context, entry *types.MatchCacheEntry) error

	// CountMatches returns the number of cached names.
	CountMatches(ctx context.Context) (int, error)

	// ListMatches returns the most recently updated entries.
	ListMatches(ctx context.Context, limit int) ([]*types.MatchCacheEntry, error)

	// Close releases the underlying connection.
	Close() error
}
