// Package queue provides the bounded in-memory buffer between the mailbox
// fetch pass and the classification workers.
package queue

import (
	"context"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
)

// DefaultCapacity is the bound used when no capacity is configured.
const DefaultCapacity = 10000

// SummaryQueue is a bounded multi-producer/multi-consumer job buffer.
// Enqueue applies backpressure when the buffer is full instead of dropping;
// Dequeue blocks until a job is available. Both honor context cancellation.
type SummaryQueue struct {
	jobs chan models.SummarizeEmailJob
}

// New creates a SummaryQueue with the given capacity.
func New(capacity int) *SummaryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SummaryQueue{
		jobs: make(chan models.SummarizeEmailJob, capacity),
	}
}

// Enqueue adds a job, blocking while the queue is full.
func (q *SummaryQueue) Enqueue(ctx context.Context, job models.SummarizeEmailJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns the next job, blocking while the queue is empty.
func (q *SummaryQueue) Dequeue(ctx context.Context) (models.SummarizeEmailJob, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return models.SummarizeEmailJob{}, ctx.Err()
	}
}

// Len reports the number of buffered jobs.
func (q *SummaryQueue) Len() int {
	return len(q.jobs)
}
