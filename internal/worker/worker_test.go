package worker

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/matcher"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/statestore"
	"github.com/daimoniac/swaudit/internal/types"
)

func testCorpus() *corpus.MemoryStore {
	return corpus.NewMemoryStore([]types.VulnerabilityRecord{
		{ID: "CVE-2024-0001", Identifiers: []types.Identifier{{Vendor: "google", Product: "chrome"}}},
		{ID: "CVE-2024-0002", CPEs: []string{"cpe:2.3:a:google:chrome:120.0:*:*:*:*:*:*:*"}},
		{ID: "CVE-2024-0003", Identifiers: []types.Identifier{{Vendor: "mozilla", Product: "firefox"}}},
		{ID: "CVE-2024-0004", Identifiers: []types.Identifier{{Vendor: "videolan", Product: "vlc"}}},
	})
}

func testConfig(parallelism int) Config {
	return Config{
		Parallelism:   parallelism,
		BatchTimeout:  5 * time.Second,
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}
}

// flakyOpener fails the first failures opens with a transient error.
type flakyOpener struct {
	inner    corpus.Opener
	failures int32
	opens    atomic.Int32
}

func (o *flakyOpener) Open(ctx context.Context) (corpus.Store, error) {
	if o.opens.Add(1) <= o.failures {
		return nil, errors.NewTransientf("connection refused")
	}
	return o.inner.Open(ctx)
}

// poisonStore fails every query whose patterns mention poison.
type poisonStore struct {
	corpus.Store
	poison string
	block  bool
}

func (s *poisonStore) FindByPatterns(ctx context.Context, patterns []string) ([]types.VulnerabilityRecord, error) {
	for _, p := range patterns {
		if strings.Contains(p, s.poison) {
			if s.block {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return nil, errors.NewPermanentf("corpus rejected query")
		}
	}
	return s.Store.FindByPatterns(ctx, patterns)
}

type poisonOpener struct {
	inner  *corpus.MemoryStore
	poison string
	block  bool
}

func (o *poisonOpener) Open(ctx context.Context) (corpus.Store, error) {
	return &poisonStore{Store: o.inner, poison: o.poison, block: o.block}, nil
}

func newCoordinator(opener corpus.Opener, cache statestore.MatchCache, cfg Config) *Coordinator {
	logger := observability.NewLogger("error")
	return NewCoordinator(opener, matcher.New(cache, nil, logger), cfg, logger)
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		parallelism int
		want        int
	}{
		{parallelism: 1, want: 1},
		{parallelism: 4, want: 4},
		{parallelism: 10, want: 10},
		{parallelism: 64, want: MaxWorkers},
	}

	for _, tt := range tests {
		if got := WorkerCount(tt.parallelism); got != tt.want {
			t.Errorf("WorkerCount(%d) = %d, want %d", tt.parallelism, got, tt.want)
		}
	}

	if got := WorkerCount(0); got < 1 || got > MaxWorkers {
		t.Errorf("WorkerCount(0) = %d, want within [1,%d]", got, MaxWorkers)
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		workers int
		want    []Range
	}{
		{name: "empty", n: 0, workers: 4, want: nil},
		{name: "even", n: 6, workers: 3, want: []Range{{0, 2}, {2, 4}, {4, 6}}},
		{name: "remainder first", n: 7, workers: 3, want: []Range{{0, 3}, {3, 5}, {5, 7}}},
		{name: "more workers than items", n: 2, workers: 5, want: []Range{{0, 1}, {1, 2}}},
		{name: "zero workers", n: 3, workers: 0, want: []Range{{0, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Partition(tt.n, tt.workers)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Partition(%d, %d) = %v, want %v", tt.n, tt.workers, got, tt.want)
			}
		})
	}
}

func TestPartitionProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("ranges are contiguous, cover n and differ by at most one", prop.ForAll(
		func(n, workers int) bool {
			ranges := Partition(n, workers)
			if len(ranges) > workers || len(ranges) > n {
				return false
			}
			next, lo, hi := 0, n, 0
			for _, r := range ranges {
				if r.Start != next || r.End <= r.Start {
					return false
				}
				size := r.End - r.Start
				lo, hi = min(lo, size), max(hi, size)
				next = r.End
			}
			return next == n && hi-lo <= 1
		},
		gen.IntRange(1, 500),
		gen.IntRange(1, MaxWorkers),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRunPreservesInventoryOrder(t *testing.T) {
	records := []types.SoftwareRecord{
		{Name: "VLC media player", Publisher: "VideoLAN"},
		{Name: "Notepad"},
		{Name: "Google Chrome", Publisher: "Google LLC"},
		{Name: "Mozilla Firefox", Publisher: "Mozilla"},
		{Name: "Google Chrome", Version: "121.0"},
	}

	c := newCoordinator(testCorpus(), statestore.NewMemoryCache(), testConfig(3))
	result, err := c.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var indexes []int
	for _, m := range result.Matches {
		indexes = append(indexes, m.Index)
	}
	if !reflect.DeepEqual(indexes, []int{0, 2, 3, 4}) {
		t.Errorf("match indexes = %v, want [0 2 3 4]", indexes)
	}
	if result.Batches != 3 || len(result.Failures) != 0 {
		t.Errorf("batches = %d, failures = %v", result.Batches, result.Failures)
	}
	if result.ProductFrequency["chrome"] != 2 {
		t.Errorf("chrome frequency = %d, want 2", result.ProductFrequency["chrome"])
	}

	ranked := result.RankedProducts()
	if len(ranked) == 0 || ranked[0].Name != "chrome" {
		t.Errorf("expected chrome to rank first, got %v", ranked)
	}
}

func TestSameNameAcrossBatchesSharesCacheEntry(t *testing.T) {
	records := make([]types.SoftwareRecord, 8)
	for i := range records {
		records[i] = types.SoftwareRecord{Name: "Google Chrome", Version: fmt.Sprintf("12%d.0", i)}
	}

	cache := statestore.NewMemoryCache()
	c := newCoordinator(testCorpus(), cache, testConfig(4))
	result, err := c.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Matches) != len(records) {
		t.Fatalf("expected %d matches, got %d", len(records), len(result.Matches))
	}

	n, err := cache.CountMatches(context.Background())
	if err != nil {
		t.Fatalf("CountMatches() error = %v", err)
	}
	if n != 1 {
		t.Errorf("expected one cache entry, got %d", n)
	}

	first := result.Matches[0]
	for _, m := range result.Matches[1:] {
		if !reflect.DeepEqual(m.MatchedProducts, first.MatchedProducts) || m.CVECount != first.CVECount {
			t.Errorf("record %d diverged: %+v vs %+v", m.Index, m, first)
		}
	}
}

func TestEveryBatchOpensItsOwnStore(t *testing.T) {
	store := testCorpus()
	records := []types.SoftwareRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	c := newCoordinator(store, nil, testConfig(4))
	if _, err := c.Run(context.Background(), records); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.Opens() != 4 {
		t.Errorf("expected 4 store opens, got %d", store.Opens())
	}
}

func TestPartialFailure(t *testing.T) {
	records := []types.SoftwareRecord{
		{Name: "Google Chrome"},
		{Name: "Poison Pill"},
		{Name: "Mozilla Firefox"},
	}
	opener := &poisonOpener{inner: testCorpus(), poison: "poison"}

	c := newCoordinator(opener, nil, testConfig(3))
	result, err := c.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("expected one failed batch, got %v", result.Failures)
	}
	f := result.Failures[0]
	if f.Start != 1 || f.End != 2 || f.Error == "" {
		t.Errorf("unexpected failure %+v", f)
	}
	if len(result.Matches) != 2 {
		t.Errorf("expected 2 matches from healthy batches, got %d", len(result.Matches))
	}
}

func TestAllBatchesFail(t *testing.T) {
	records := []types.SoftwareRecord{{Name: "Poison A"}, {Name: "Poison B"}}
	opener := &poisonOpener{inner: testCorpus(), poison: "poison"}

	c := newCoordinator(opener, nil, testConfig(2))
	if _, err := c.Run(context.Background(), records); err == nil {
		t.Fatal("expected an error when every batch fails")
	}
}

func TestFailFast(t *testing.T) {
	records := []types.SoftwareRecord{
		{Name: "Google Chrome"},
		{Name: "Poison Pill"},
		{Name: "Mozilla Firefox"},
	}
	cfg := testConfig(3)
	cfg.FailFast = true

	c := newCoordinator(&poisonOpener{inner: testCorpus(), poison: "poison"}, nil, cfg)
	result, err := c.Run(context.Background(), records)
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	if result != nil {
		t.Error("fail-fast must discard partial results")
	}
}

func TestTransientOpenIsRetried(t *testing.T) {
	opener := &flakyOpener{inner: testCorpus(), failures: 2}
	c := newCoordinator(opener, nil, testConfig(1))

	result, err := c.Run(context.Background(), []types.SoftwareRecord{{Name: "Google Chrome"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Matches) != 1 {
		t.Errorf("expected the retried batch to match, got %d matches", len(result.Matches))
	}
	if got := opener.opens.Load(); got != 3 {
		t.Errorf("expected 3 open attempts, got %d", got)
	}
}

func TestBatchTimeout(t *testing.T) {
	cfg := testConfig(1)
	cfg.BatchTimeout = 50 * time.Millisecond
	cfg.RetryAttempts = 1

	c := newCoordinator(&poisonOpener{inner: testCorpus(), poison: "slow", block: true}, nil, cfg)
	_, err := c.Run(context.Background(), []types.SoftwareRecord{{Name: "Slow Tool"}})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !stderrors.Is(err, errors.ErrTimeout) {
		t.Errorf("expected a batch timeout, got %v", err)
	}
}

func TestParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newCoordinator(&poisonOpener{inner: testCorpus(), poison: "slow", block: true}, nil, testConfig(2))

	var wg sync.WaitGroup
	var runErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, runErr = c.Run(ctx, []types.SoftwareRecord{{Name: "Slow A"}, {Name: "Slow B"}})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()

	if runErr != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", runErr)
	}
}

func TestRankProducts(t *testing.T) {
	got := RankProducts(map[string]int{"vlc": 1, "chrome": 3, "firefox": 3})
	want := []ProductCount{{"chrome", 3}, {"firefox", 3}, {"vlc", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankProducts() = %v, want %v", got, want)
	}
}
