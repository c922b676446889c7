package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/matcher"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/queue"
	"github.com/daimoniac/swaudit/internal/types"
)

// MaxWorkers caps the number of concurrent batches regardless of available CPUs.
const MaxWorkers = 10

// Config contains configuration for the coordinator
type Config struct {
	// Parallelism is the available parallelism; zero means runtime.NumCPU().
	Parallelism   int
	BatchTimeout  time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	// FailFast cancels every other batch on the first failure and discards
	// partial results.
	FailFast bool
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		BatchTimeout:  5 * time.Minute,
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
	}
}

// WorkerCount returns min(parallelism, MaxWorkers), using the CPU count when
// parallelism is not positive.
func WorkerCount(parallelism int) int {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return min(parallelism, MaxWorkers)
}

// Range is a half-open [Start, End) slice of the inventory.
type Range struct {
	Start int
	End   int
}

// Partition splits n items into at most workers contiguous ranges whose sizes
// differ by at most one. Empty ranges are omitted.
func Partition(n, workers int) []Range {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	workers = min(workers, n)

	base, rem := n/workers, n%workers
	ranges := make([]Range, 0, workers)
	start := 0
	for i := 0; i < workers; i++ {
		size := base
		if i < rem {
			size++
		}
		ranges = append(ranges, Range{Start: start, End: start + size})
		start += size
	}
	return ranges
}

// RunResult is the merged outcome of a matching run
type RunResult struct {
	RunID string
	// Matches are ordered by their position in the submitted inventory.
	Matches          []types.SoftwareMatch
	ProductFrequency map[string]int
	Failures         []types.BatchFailure
	Batches          int
	Duration         time.Duration
}

// Coordinator fans an inventory out to a bounded pool of batch workers
type Coordinator struct {
	opener   corpus.Opener
	pipeline *Pipeline
	config   Config
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator; every batch opens its own corpus store from opener.
func NewCoordinator(opener corpus.Opener, m *matcher.Matcher, config Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 1
	}
	return &Coordinator{
		opener:   opener,
		pipeline: NewPipeline(opener, m, config.BatchTimeout, logger),
		config:   config,
		logger:   logger,
	}
}

// Run matches every record. Failed batches are reported in RunResult.Failures
// while the others still contribute; Run only errors when every batch failed,
// the parent context ended, or FailFast is set and any batch failed.
func (c *Coordinator) Run(ctx context.Context, records []types.SoftwareRecord) (*RunResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	metrics := observability.GetMetrics()
	metrics.RunsTotal.Inc()

	workers := WorkerCount(c.config.Parallelism)
	ranges := Partition(len(records), workers)

	c.logger.Info("matching run started",
		"run_id", runID,
		"records", len(records),
		"workers", workers,
		"batches", len(ranges),
		"fail_fast", c.config.FailFast)

	q := queue.NewInMemoryQueue(len(ranges))
	for i, r := range ranges {
		task := &queue.BatchTask{
			ID:      fmt.Sprintf("%s/%d", runID, i),
			RunID:   runID,
			Batch:   i,
			Start:   r.Start,
			End:     r.End,
			Records: records[r.Start:r.End],
		}
		if err := q.Enqueue(ctx, task); err != nil {
			metrics.RunsFailed.Inc()
			return nil, err
		}
	}
	_ = q.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan batchOutcome, len(ranges))
	var firstErr error
	var firstErrOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < min(workers, len(ranges)); i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.processLoop(runCtx, workerID, q, func(out batchOutcome) {
				if out.err != nil {
					firstErrOnce.Do(func() { firstErr = out.err })
					if c.config.FailFast {
						cancel()
					}
				}
				outcomes <- out
			})
		}(i)
	}
	wg.Wait()
	close(outcomes)

	result := mergeOutcomes(runID, len(ranges), outcomes)
	result.Duration = time.Since(start)
	metrics.RunDuration.Observe(result.Duration.Seconds())

	switch {
	case ctx.Err() != nil:
		metrics.RunsFailed.Inc()
		return nil, ctx.Err()
	case c.config.FailFast && firstErr != nil:
		metrics.RunsFailed.Inc()
		return nil, firstErr
	case len(ranges) > 0 && len(result.Failures) == len(ranges):
		metrics.RunsFailed.Inc()
		return nil, errors.NewPermanentf("all %d batches failed: %w", len(ranges), firstErr)
	}

	c.logger.Info("matching run completed",
		"run_id", runID,
		"matches", len(result.Matches),
		"products", len(result.ProductFrequency),
		"failed_batches", len(result.Failures),
		"duration", result.Duration)

	return result, nil
}

// processLoop drains the queue, handing each batch outcome to emit
func (c *Coordinator) processLoop(ctx context.Context, workerID int, q queue.BatchQueue, emit func(batchOutcome)) {
	metrics := observability.GetMetrics()
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	for {
		task, err := q.Dequeue(ctx)
		if err != nil {
			return
		}

		// batches still queued after a fail-fast cancel are reported, not run
		if ctx.Err() != nil {
			_ = q.Fail(ctx, task.ID, ctx.Err())
			emit(batchOutcome{task: task, err: ctx.Err()})
			continue
		}

		c.logger.Debug("processing batch",
			"worker_id", workerID,
			"task_id", task.ID,
			"start", task.Start,
			"end", task.End)

		out := c.processBatch(ctx, task)
		if out.err != nil {
			c.logger.Error("batch processing failed",
				"worker_id", workerID,
				"task_id", task.ID,
				"start", task.Start,
				"end", task.End,
				"attempts", task.Attempts,
				"error", out.err)
			metrics.WorkerErrors.Inc()
			metrics.BatchesTotal.WithLabelValues("failure").Inc()
			_ = q.Fail(ctx, task.ID, out.err)
		} else {
			metrics.BatchesTotal.WithLabelValues("success").Inc()
			_ = q.Complete(ctx, task.ID)
		}
		emit(out)
	}
}

// ErrorHandlerAction determines what action to take for a given error
type ErrorHandlerAction int

const (
	// ActionRetry indicates the error is transient and should be retried
	ActionRetry ErrorHandlerAction = iota
	// ActionFail indicates the error is permanent and should not be retried
	ActionFail
)

// handleBatchError classifies a batch error and decides whether to retry it
func (c *Coordinator) handleBatchError(ctx context.Context, err error, attempt int, task *queue.BatchTask) (ErrorHandlerAction, time.Duration) {
	if ctx.Err() != nil {
		return ActionFail, 0
	}

	switch errors.ClassifyError(err) {
	case errors.ErrorClassTransient:
		if attempt >= c.config.RetryAttempts {
			return ActionFail, 0
		}

		backoff := c.config.RetryBackoff * time.Duration(attempt)
		c.logger.Warn("transient error, retrying batch",
			"task_id", task.ID,
			"attempt", attempt,
			"max_attempts", c.config.RetryAttempts,
			"backoff", backoff,
			"error", err)
		return ActionRetry, backoff

	default:
		// permanent and unclassified errors are not retried
		return ActionFail, 0
	}
}

// processBatch runs one batch with retry logic
func (c *Coordinator) processBatch(ctx context.Context, task *queue.BatchTask) batchOutcome {
	start := time.Now()
	defer func() {
		observability.GetMetrics().BatchDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 1; attempt <= c.config.RetryAttempts; attempt++ {
		task.Attempts = attempt
		out, err := c.pipeline.Execute(ctx, task)
		if err == nil {
			return batchOutcome{task: task, output: out}
		}
		lastErr = err

		action, backoff := c.handleBatchError(ctx, err, attempt, task)
		if action == ActionFail {
			return batchOutcome{task: task, err: err}
		}

		observability.GetMetrics().BatchRetries.Inc()
		select {
		case <-ctx.Done():
			return batchOutcome{task: task, err: ctx.Err()}
		case <-time.After(backoff):
		}
	}

	return batchOutcome{task: task, err: errors.NewPermanentf("max retries exceeded: %w", lastErr)}
}
