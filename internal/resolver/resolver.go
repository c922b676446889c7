// Package resolver fetches the most recent vulnerability records for every
// matched product, trying capitalization variants until one hits.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/types"
	"github.com/daimoniac/swaudit/internal/worker"
)

const (
	// MaxDetails caps the vulnerabilities reported per entity.
	MaxDetails = 20

	// EntityTypeProduct is the only entity type the resolver emits.
	EntityTypeProduct = "product"
)

// Variant labels, in the order they are tried.
const (
	VariantOriginal    = "original"
	VariantCapitalized = "capitalized"
	VariantUpper       = "upper"
	VariantTitle       = "title"
)

// Variant is one casing of an entity name probed against the corpus.
type Variant struct {
	Label string
	Text  string
}

// Variants returns the distinct casings of entity in probe order. The title
// case variant is only produced for multi-word names.
func Variants(entity string) []Variant {
	out := []Variant{
		{Label: VariantOriginal, Text: entity},
		{Label: VariantCapitalized, Text: capitalize(entity)},
		{Label: VariantUpper, Text: strings.ToUpper(entity)},
	}

	words := strings.FieldsFunc(entity, func(r rune) bool {
		return r == '_' || unicode.IsSpace(r)
	})
	if len(words) > 1 {
		for i, w := range words {
			words[i] = capitalize(strings.ToLower(w))
		}
		out = append(out, Variant{Label: VariantTitle, Text: strings.Join(words, " ")})
	}

	return lo.UniqBy(out, func(v Variant) string { return v.Text })
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Resolver turns ranked product names into EntityDetailResults
type Resolver struct {
	opener       corpus.Opener
	parallelism  int
	batchTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates a resolver. It shares the coordinator's parallelism, following
// worker.WorkerCount, and its per-batch timeout.
func New(opener corpus.Opener, cfg worker.Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = worker.DefaultConfig().BatchTimeout
	}
	return &Resolver{
		opener:       opener,
		parallelism:  cfg.Parallelism,
		batchTimeout: cfg.BatchTimeout,
		logger:       logger,
		metrics:      observability.GetMetrics(),
	}
}

// Resolve looks up every entity and returns one result per entity that has at
// least one vulnerability record, in the order of entities. Failed batches are
// returned separately; Resolve only errors when ctx ends or every batch failed.
func (r *Resolver) Resolve(ctx context.Context, entities []string) ([]types.EntityDetailResult, []types.BatchFailure, error) {
	entities = lo.Uniq(lo.Compact(entities))
	ranges := worker.Partition(len(entities), worker.WorkerCount(r.parallelism))
	if len(ranges) == 0 {
		return nil, nil, nil
	}

	results := make([][]types.EntityDetailResult, len(ranges))
	failures := make([]*types.BatchFailure, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(ranges))
	for i, rg := range ranges {
		g.Go(func() error {
			res, err := r.resolveBatch(gctx, entities[rg.Start:rg.End])
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.logger.Error("entity batch failed",
					"batch", i,
					"start", rg.Start,
					"end", rg.End,
					"error", err)
				failures[i] = &types.BatchFailure{Stage: types.StageResolve, Batch: i, Start: rg.Start, End: rg.End, Error: err.Error()}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	failed := lo.FilterMap(failures, func(f *types.BatchFailure, _ int) (types.BatchFailure, bool) {
		if f == nil {
			return types.BatchFailure{}, false
		}
		return *f, true
	})
	if len(failed) == len(ranges) {
		return nil, failed, errors.NewPermanentf("all %d entity batches failed: %s", len(ranges), failed[0].Error)
	}

	return lo.Flatten(results), failed, nil
}

func (r *Resolver) resolveBatch(ctx context.Context, entities []string) ([]types.EntityDetailResult, error) {
	batchCtx, cancel := context.WithTimeout(ctx, r.batchTimeout)
	defer cancel()

	out, err := r.lookupBatch(batchCtx, entities)
	if err != nil && ctx.Err() == nil && batchCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: entity batch exceeded %s: %v", errors.ErrTimeout, r.batchTimeout, err)
	}
	return out, err
}

func (r *Resolver) lookupBatch(ctx context.Context, entities []string) ([]types.EntityDetailResult, error) {
	store, err := r.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Warn("failed to close corpus connection", "error", err)
		}
	}()

	var out []types.EntityDetailResult
	for _, entity := range entities {
		res, err := r.resolveEntity(ctx, store, entity)
		if err != nil {
			return nil, err
		}
		if res != nil {
			out = append(out, *res)
		}
	}
	return out, nil
}

func (r *Resolver) resolveEntity(ctx context.Context, store corpus.Store, entity string) (*types.EntityDetailResult, error) {
	for _, v := range Variants(entity) {
		start := time.Now()
		records, err := store.FindByEntity(ctx, v.Text, MaxDetails)
		r.metrics.CorpusQueries.WithLabelValues("entity").Inc()
		r.metrics.CorpusQueryDuration.WithLabelValues("entity").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", entity, err)
		}
		if len(records) == 0 {
			continue
		}

		r.metrics.EntitiesResolved.WithLabelValues(v.Label).Inc()
		return &types.EntityDetailResult{
			Type:            EntityTypeProduct,
			Name:            entity,
			Vulnerabilities: details(records),
		}, nil
	}

	r.logger.Debug("entity has no vulnerability records", "entity", entity)
	r.metrics.EntitiesDropped.Inc()
	return nil, nil
}

func details(records []types.VulnerabilityRecord) []types.VulnerabilityDetail {
	records = append([]types.VulnerabilityRecord(nil), records...)
	corpus.SortNewestFirst(records)
	if len(records) > MaxDetails {
		records = records[:MaxDetails]
	}
	return lo.Map(records, func(rec types.VulnerabilityRecord, _ int) types.VulnerabilityDetail {
		return types.VulnerabilityDetail{
			ID:          rec.ID,
			Description: rec.Description,
			Score:       rec.Score,
			Exploited:   rec.Exploited,
			Published:   corpus.FormatPublished(rec.Published),
		}
	})
}
