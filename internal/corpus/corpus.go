// Package corpus queries the vulnerability corpus for records whose vendor or
// product identifiers match a set of candidate patterns.
package corpus

import (
	"context"

	"github.com/daimoniac/swaudit/internal/types"
)

// Store is one connection to the vulnerability corpus.
type Store interface {
	// FindByPatterns returns every record with a structured vendor or product,
	// or a flat identifier, matching any of the patterns case-insensitively.
	// Patterns are regular expressions as built by candidate.Pattern.
	FindByPatterns(ctx context.Context, patterns []string) ([]types.VulnerabilityRecord, error)

	// FindByEntity returns up to limit records whose vendor or product equals
	// name exactly, or whose flat identifier contains it, newest first.
	FindByEntity(ctx context.Context, name string, limit int) ([]types.VulnerabilityRecord, error)

	// Ping verifies the corpus is reachable.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}

// Opener hands out independent Store connections, one per worker.
type Opener interface {
	Open(ctx context.Context) (Store, error)
}
