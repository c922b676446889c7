// Package matcher runs one inventory record through normalization, candidate
// generation, the corpus query and scoring, memoized by the match cache.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daimoniac/swaudit/internal/candidate"
	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/normalize"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/scoring"
	"github.com/daimoniac/swaudit/internal/statestore"
	"github.com/daimoniac/swaudit/internal/types"
)

// Skip reasons reported in swaudit_records_skipped_total.
const (
	SkipEmptyName     = "empty_name"
	SkipNoCandidates  = "no_candidates"
	SkipNoCorpusMatch = "no_corpus_match"
	SkipNoValidTier   = "no_valid_tier"
)

// Matcher resolves single inventory records. It is safe for concurrent use as
// long as each goroutine passes its own corpus.Store.
type Matcher struct {
	normalizer *normalize.Normalizer
	cache      statestore.MatchCache
	limit      int
	logger     *slog.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// New creates a matcher. cache may be nil to disable memoization.
func New(cache statestore.MatchCache, normalizer *normalize.Normalizer, logger *slog.Logger) *Matcher {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		normalizer: normalizer,
		cache:      cache,
		limit:      scoring.DefaultLimit,
		logger:     logger,
		metrics:    observability.GetMetrics(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Match resolves rec against the corpus. A nil match with a nil error means
// the record contributes nothing; only corpus failures are returned as errors.
func (m *Matcher) Match(ctx context.Context, store corpus.Store, index int, rec types.SoftwareRecord) (*types.SoftwareMatch, error) {
	m.metrics.RecordsProcessed.Inc()

	n, ok := m.normalizer.Normalize(rec.Name, rec.Publisher)
	if !ok {
		return m.skip(index, rec, SkipEmptyName)
	}

	if entry := m.lookup(ctx, n.Name); entry != nil {
		m.metrics.RecordsMatched.Inc()
		return fromEntry(index, rec, entry), nil
	}

	set := candidate.Generate(n)
	if set.Empty() {
		return m.skip(index, rec, SkipNoCandidates)
	}

	records, err := m.query(ctx, store, set)
	if err != nil {
		return nil, fmt.Errorf("corpus query for %q: %w", rec.Name, err)
	}
	if len(records) == 0 {
		return m.skip(index, rec, SkipNoCorpusMatch)
	}

	res := scoring.Score(n, set, records, m.limit)
	if !res.HasValidMatch {
		return m.skip(index, rec, SkipNoValidTier)
	}

	entry := &types.MatchCacheEntry{
		NormalizedName:     n.Name,
		OriginalName:       rec.Name,
		MatchedVendors:     types.Values(res.Vendors),
		MatchedProducts:    types.Values(res.Products),
		VulnerabilityCount: res.VulnerabilityCount,
		LastUpdated:        m.now(),
	}
	m.store(ctx, entry)

	m.metrics.RecordsMatched.Inc()
	match := fromEntry(index, rec, entry)
	match.FromCache = false
	return match, nil
}

// lookup returns the cached entry for name, or nil on a miss. Read failures
// are logged and treated as misses.
func (m *Matcher) lookup(ctx context.Context, name string) *types.MatchCacheEntry {
	if m.cache == nil {
		return nil
	}
	entry, err := m.cache.GetMatch(ctx, name)
	switch {
	case err == nil:
		m.metrics.CacheHits.Inc()
		return entry
	case errors.Is(err, statestore.ErrCacheMiss):
		m.metrics.CacheMisses.Inc()
	default:
		m.metrics.CacheReadFailures.Inc()
		m.logger.Warn("match cache read failed, recomputing",
			"normalized_name", name,
			"error", err)
	}
	return nil
}

// store upserts entry; failures never reach the caller.
func (m *Matcher) store(ctx context.Context, entry *types.MatchCacheEntry) {
	if m.cache == nil {
		return
	}
	if err := m.cache.PutMatch(ctx, entry); err != nil {
		m.metrics.CacheWriteFailures.Inc()
		m.logger.Warn("match cache write failed",
			"normalized_name", entry.NormalizedName,
			"error", err)
	}
}

func (m *Matcher) query(ctx context.Context, store corpus.Store, set candidate.Set) ([]types.VulnerabilityRecord, error) {
	start := time.Now()
	records, err := store.FindByPatterns(ctx, set.Patterns())
	m.metrics.CorpusQueries.WithLabelValues("patterns").Inc()
	m.metrics.CorpusQueryDuration.WithLabelValues("patterns").Observe(time.Since(start).Seconds())
	return records, err
}

func (m *Matcher) skip(index int, rec types.SoftwareRecord, reason string) (*types.SoftwareMatch, error) {
	m.metrics.RecordsSkipped.WithLabelValues(reason).Inc()
	m.logger.Debug("record contributes no match",
		"index", index,
		"name", rec.Name,
		"reason", reason)
	return nil, nil
}

func fromEntry(index int, rec types.SoftwareRecord, entry *types.MatchCacheEntry) *types.SoftwareMatch {
	return &types.SoftwareMatch{
		Index:           index,
		Name:            rec.Name,
		Version:         orUnknown(rec.Version),
		Publisher:       orUnknown(rec.Publisher),
		CVECount:        entry.VulnerabilityCount,
		MatchedVendors:  append([]string{}, entry.MatchedVendors...),
		MatchedProducts: append([]string{}, entry.MatchedProducts...),
		FromCache:       true,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return types.Unknown
	}
	return s
}
