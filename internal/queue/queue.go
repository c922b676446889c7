package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	swerrors "github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/types"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue is closed")

// BatchQueue hands contiguous inventory batches to workers
type BatchQueue interface {
	// Enqueue adds a batch to the queue
	Enqueue(ctx context.Context, task *BatchTask) error

	// Dequeue retrieves a batch for processing (blocking)
	Dequeue(ctx context.Context) (*BatchTask, error)

	// Complete marks a batch as successfully processed (for metrics/logging)
	Complete(ctx context.Context, taskID string) error

	// Fail marks a batch as failed (for metrics/logging)
	Fail(ctx context.Context, taskID string, err error) error

	// GetQueueDepth returns current queue size
	GetQueueDepth(ctx context.Context) (int, error)

	// Close stops accepting batches; already queued batches can still be dequeued
	Close() error
}

// BatchTask is one contiguous slice [Start, End) of a run's inventory
type BatchTask struct {
	ID         string
	RunID      string
	Batch      int
	Start      int
	End        int
	Records    []types.SoftwareRecord
	EnqueuedAt time.Time
	Attempts   int
}

// InMemoryQueue implements BatchQueue using Go channels
type InMemoryQueue struct {
	tasks      chan *BatchTask
	pending    map[string]bool // Deduplication map: task ID -> queued
	pendingMu  sync.RWMutex
	metrics    *QueueMetrics
	metricsMu  sync.RWMutex
	closed     bool
	closedMu   sync.RWMutex
	bufferSize int
}

// QueueMetrics tracks queue operation statistics
type QueueMetrics struct {
	Enqueued  int64
	Dequeued  int64
	Completed int64
	Failed    int64
	Dropped   int64 // Dropped due to deduplication
}

// NewInMemoryQueue creates a new in-memory batch queue
func NewInMemoryQueue(bufferSize int) *InMemoryQueue {
	return &InMemoryQueue{
		tasks:      make(chan *BatchTask, bufferSize),
		pending:    make(map[string]bool),
		metrics:    &QueueMetrics{},
		bufferSize: bufferSize,
	}
}

// Enqueue adds a batch to the queue, dropping one whose ID is already queued
func (q *InMemoryQueue) Enqueue(ctx context.Context, task *BatchTask) error {
	if task == nil {
		return swerrors.NewPermanentf("task cannot be nil")
	}
	if task.ID == "" {
		return swerrors.NewPermanentf("task id cannot be empty")
	}

	// held across the send so Close cannot close the channel under us
	q.closedMu.RLock()
	defer q.closedMu.RUnlock()
	if q.closed {
		return swerrors.NewPermanent(ErrQueueClosed)
	}

	q.pendingMu.Lock()
	if q.pending[task.ID] {
		q.pendingMu.Unlock()
		q.incrementMetric("dropped")
		return nil
	}
	q.pending[task.ID] = true
	q.pendingMu.Unlock()

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	select {
	case q.tasks <- task:
		q.incrementMetric("enqueued")
		return nil
	case <-ctx.Done():
		q.pendingMu.Lock()
		delete(q.pending, task.ID)
		q.pendingMu.Unlock()
		return ctx.Err()
	}
}

// Dequeue retrieves a batch for processing (blocking). After Close it keeps
// returning queued batches until the queue is empty.
func (q *InMemoryQueue) Dequeue(ctx context.Context) (*BatchTask, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, swerrors.NewPermanent(ErrQueueClosed)
		}

		q.pendingMu.Lock()
		delete(q.pending, task.ID)
		q.pendingMu.Unlock()

		q.incrementMetric("dequeued")
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Complete marks a batch as successfully processed
func (q *InMemoryQueue) Complete(ctx context.Context, taskID string) error {
	q.incrementMetric("completed")
	return nil
}

// Fail marks a batch as failed
func (q *InMemoryQueue) Fail(ctx context.Context, taskID string, err error) error {
	q.incrementMetric("failed")
	return nil
}

// GetQueueDepth returns current queue size
func (q *InMemoryQueue) GetQueueDepth(ctx context.Context) (int, error) {
	return len(q.tasks), nil
}

// Close shuts down the queue gracefully
func (q *InMemoryQueue) Close() error {
	q.closedMu.Lock()
	defer q.closedMu.Unlock()

	if q.closed {
		return swerrors.NewPermanentf("queue already closed")
	}

	q.closed = true
	close(q.tasks)
	return nil
}

// GetMetrics returns a copy of current metrics
func (q *InMemoryQueue) GetMetrics() QueueMetrics {
	q.metricsMu.RLock()
	defer q.metricsMu.RUnlock()
	return *q.metrics
}

// incrementMetric updates the local counters and the exported Prometheus series
func (q *InMemoryQueue) incrementMetric(metric string) {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()

	m := observability.GetMetrics()
	switch metric {
	case "enqueued":
		q.metrics.Enqueued++
		m.QueueEnqueued.Inc()
	case "dequeued":
		q.metrics.Dequeued++
		m.QueueDequeued.Inc()
	case "completed":
		q.metrics.Completed++
		m.QueueCompleted.Inc()
	case "failed":
		q.metrics.Failed++
		m.QueueFailed.Inc()
	case "dropped":
		q.metrics.Dropped++
	}
	m.QueueDepth.Set(float64(len(q.tasks)))
}
