package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daimoniac/swaudit/internal/corpus"
	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/matcher"
	"github.com/daimoniac/swaudit/internal/queue"
	"github.com/daimoniac/swaudit/internal/types"
)

// batchOutput is what one batch contributes to a run.
type batchOutput struct {
	matches   []types.SoftwareMatch
	frequency map[string]int
}

// batchOutcome tags a batch with either its output or its failure.
type batchOutcome struct {
	task   *queue.BatchTask
	output batchOutput
	err    error
}

// Pipeline runs the records of one batch sequentially on a dedicated corpus connection
type Pipeline struct {
	opener  corpus.Opener
	matcher *matcher.Matcher
	timeout time.Duration
	logger  *slog.Logger
}

// NewPipeline creates a new pipeline instance
func NewPipeline(opener corpus.Opener, m *matcher.Matcher, timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		opener:  opener,
		matcher: m,
		timeout: timeout,
		logger:  logger,
	}
}

// Execute matches every record of the batch, in order, within the batch timeout
func (p *Pipeline) Execute(ctx context.Context, task *queue.BatchTask) (batchOutput, error) {
	startTime := time.Now()

	if p.opener == nil || p.matcher == nil {
		return batchOutput{}, errors.NewPermanentf("pipeline is missing its corpus opener or matcher")
	}

	batchCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// Phase 1: connect
	store, err := p.opener.Open(batchCtx)
	if err != nil {
		return batchOutput{}, p.wrap(ctx, batchCtx, task, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			p.logger.Warn("failed to close corpus connection", "task_id", task.ID, "error", err)
		}
	}()

	// Phase 2: match
	out := batchOutput{frequency: make(map[string]int)}
	for i, rec := range task.Records {
		if err := batchCtx.Err(); err != nil {
			return batchOutput{}, p.wrap(ctx, batchCtx, task, err)
		}

		match, err := p.matcher.Match(batchCtx, store, task.Start+i, rec)
		if err != nil {
			return batchOutput{}, p.wrap(ctx, batchCtx, task, err)
		}
		if match == nil {
			continue
		}
		out.matches = append(out.matches, *match)
		for _, product := range match.MatchedProducts {
			out.frequency[product]++
		}
	}

	p.logger.Debug("batch completed",
		"task_id", task.ID,
		"records", len(task.Records),
		"matches", len(out.matches),
		"attempt", task.Attempts,
		"duration", time.Since(startTime))

	return out, nil
}

// wrap marks a batch that ran out of its own time budget as a timeout, which
// is retryable, while a cancelled parent stays a cancellation.
func (p *Pipeline) wrap(parent, batchCtx context.Context, task *queue.BatchTask, err error) error {
	if parent.Err() == nil && batchCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: batch [%d,%d) exceeded %s: %v", errors.ErrTimeout, task.Start, task.End, p.timeout, err)
	}
	return fmt.Errorf("batch [%d,%d): %w", task.Start, task.End, err)
}
