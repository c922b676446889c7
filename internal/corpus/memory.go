package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/types"
)

// MemoryStore is an in-process corpus seeded from a fixed record list. It is its
// own Opener; every Open returns the same shared, read-only view.
type MemoryStore struct {
	mu      sync.RWMutex
	records []types.VulnerabilityRecord

	queries atomic.Int64
	opens   atomic.Int64
}

// NewMemoryStore creates a store over records.
func NewMemoryStore(records []types.VulnerabilityRecord) *MemoryStore {
	return &MemoryStore{records: records}
}

// LoadMemoryStore reads a JSON array of vulnerability records from path.
func LoadMemoryStore(fs afero.Fs, path string) (*MemoryStore, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.NewPermanentf("failed to read corpus seed %s: %w", path, err)
	}
	var records []types.VulnerabilityRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.NewPermanentf("failed to parse corpus seed %s: %w", path, err)
	}
	return NewMemoryStore(records), nil
}

// Add appends records to the corpus.
func (m *MemoryStore) Add(records ...types.VulnerabilityRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

// Len returns the number of records held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Queries returns how many corpus queries have been served.
func (m *MemoryStore) Queries() int64 {
	return m.queries.Load()
}

// Opens returns how many times the store has been opened.
func (m *MemoryStore) Opens() int64 {
	return m.opens.Load()
}

// Open implements Opener.
func (m *MemoryStore) Open(ctx context.Context) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.opens.Add(1)
	return m, nil
}

// FindByPatterns implements Store.
func (m *MemoryStore) FindByPatterns(ctx context.Context, patterns []string) ([]types.VulnerabilityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.queries.Add(1)

	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", errors.ErrInvalidInput, p, err)
		}
		res = append(res, re)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.VulnerabilityRecord
	for _, rec := range m.records {
		if recordMatches(rec, func(s string) bool {
			for _, re := range res {
				if re.MatchString(s) {
					return true
				}
			}
			return false
		}) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FindByEntity implements Store.
func (m *MemoryStore) FindByEntity(ctx context.Context, name string, limit int) ([]types.VulnerabilityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.queries.Add(1)

	m.mu.RLock()
	var out []types.VulnerabilityRecord
	for _, rec := range m.records {
		if entityMatches(rec, name) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()

	SortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store. The shared view stays usable.
func (m *MemoryStore) Close() error {
	return nil
}

func recordMatches(rec types.VulnerabilityRecord, match func(string) bool) bool {
	for _, id := range rec.Identifiers {
		if match(id.Vendor) || match(id.Product) {
			return true
		}
	}
	for _, flat := range rec.CPEs {
		if match(flat) {
			return true
		}
	}
	return false
}

func entityMatches(rec types.VulnerabilityRecord, name string) bool {
	for _, id := range rec.Identifiers {
		if id.Vendor == name || id.Product == name {
			return true
		}
	}
	for _, flat := range rec.CPEs {
		if strings.Contains(flat, name) {
			return true
		}
	}
	return false
}

// SortNewestFirst orders records by publish date, most recent first. Records
// without a usable date sort last, keeping their relative order.
func SortNewestFirst(records []types.VulnerabilityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, okI := ParsePublished(records[i].Published)
		tj, okJ := ParsePublished(records[j].Published)
		if okI != okJ {
			return okI
		}
		return ti.After(tj)
	})
}
