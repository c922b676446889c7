package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// DefaultListLimit caps ListMatches when no limit is given.
const DefaultListLimit = 100

// SQLiteStore implements MatchCache using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the cache database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// mode=rwc: Read/Write/Create mode
	// _journal_mode=WAL: concurrent readers alongside the single writer
	// _busy_timeout=3000: workers upserting at once wait for the lock instead of failing
	connStr := dbPath + "?mode=rwc&_journal_mode=WAL&_busy_timeout=3000"

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, errors.NewTransientf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPermanentf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS match_cache (
		normalized_name TEXT PRIMARY KEY,
		original_name TEXT NOT NULL,
		matched_vendors_json TEXT NOT NULL,
		matched_products_json TEXT NOT NULL,
		vulnerability_count INTEGER NOT NULL,
		last_updated INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_match_cache_updated ON match_cache(last_updated);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetMatch retrieves the cached entry for a normalized name
func (s *SQLiteStore) GetMatch(ctx context.Context, normalizedName string) (*types.MatchCacheEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT normalized_name, original_name, matched_vendors_json, matched_products_json,
			vulnerability_count, last_updated
		FROM match_cache
		WHERE normalized_name = ?
	`, normalizedName)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.NewTransientf("failed to query match cache: %w", err)
	}
	return entry, nil
}

// PutMatch upserts an entry; an existing row for the name is overwritten
func (s *SQLiteStore) PutMatch(ctx context.Context, entry *types.MatchCacheEntry) error {
	vendors, err := json.Marshal(nonNil(entry.MatchedVendors))
	if err != nil {
		return errors.NewPermanentf("failed to marshal matched vendors: %w", err)
	}
	products, err := json.Marshal(nonNil(entry.MatchedProducts))
	if err != nil {
		return errors.NewPermanentf("failed to marshal matched products: %w", err)
	}

	updated := entry.LastUpdated
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO match_cache (
			normalized_name, original_name, matched_vendors_json, matched_products_json,
			vulnerability_count, last_updated
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(normalized_name) DO UPDATE SET
			original_name = excluded.original_name,
			matched_vendors_json = excluded.matched_vendors_json,
			matched_products_json = excluded.matched_products_json,
			vulnerability_count = excluded.vulnerability_count,
			last_updated = excluded.last_updated
	`, entry.NormalizedName, entry.OriginalName, string(vendors), string(products),
		entry.VulnerabilityCount, updated.UnixMilli())
	if err != nil {
		return errors.NewTransientf("failed to upsert match cache entry: %w", err)
	}
	return nil
}

// CountMatches returns the number of cached names
func (s *SQLiteStore) CountMatches(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_cache`).Scan(&count); err != nil {
		return 0, errors.NewTransientf("failed to count match cache: %w", err)
	}
	return count, nil
}

// ListMatches returns entries ordered by most recent update
func (s *SQLiteStore) ListMatches(ctx context.Context, limit int) ([]*types.MatchCacheEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT normalized_name, original_name, matched_vendors_json, matched_products_json,
			vulnerability_count, last_updated
		FROM match_cache
		ORDER BY last_updated DESC, normalized_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewTransientf("failed to list match cache: %w", err)
	}
	defer rows.Close()

	var entries []*types.MatchCacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, errors.NewTransientf("failed to scan match cache row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientf("error iterating rows: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*types.MatchCacheEntry, error) {
	var entry types.MatchCacheEntry
	var vendorsJSON, productsJSON string
	var updated int64

	if err := row.Scan(
		&entry.NormalizedName, &entry.OriginalName, &vendorsJSON, &productsJSON,
		&entry.VulnerabilityCount, &updated,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(vendorsJSON), &entry.MatchedVendors); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(productsJSON), &entry.MatchedProducts); err != nil {
		return nil, err
	}
	entry.LastUpdated = time.UnixMilli(updated).UTC()

	return &entry, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
