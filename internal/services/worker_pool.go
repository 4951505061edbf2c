package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/queue"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
	"github.com/inboxwrap/inboxwrap-backend/internal/summarizer"
)

// Summarizer produces a structured classification for one email.
type Summarizer interface {
	Summarize(ctx context.Context, subject, body string) (*summarizer.Result, error)
}

// WorkerPool drains the job queue with a fixed number of classification
// workers. Each worker is serial within its own job: dequeue, summarize,
// persist a pending summary. A failed job is dropped with a log line; there
// is no retry and no dead-letter store.
type WorkerPool struct {
	queue      *queue.SummaryQueue
	summarizer Summarizer
	summaries  repository.SummaryRepository
	size       int
	logger     *slog.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWorkerPool creates a classification worker pool of the given size.
func NewWorkerPool(
	q *queue.SummaryQueue,
	s Summarizer,
	summaries repository.SummaryRepository,
	size int,
	logger *slog.Logger,
) *WorkerPool {
	if size <= 0 {
		size = 5
	}

	return &WorkerPool{
		queue:      q,
		summarizer: s,
		summaries:  summaries,
		size:       size,
		logger:     logger,
	}
}

// Start launches the workers. Calling Start on a running pool is a no-op.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.Info("classification worker pool started", slog.Int("workers", p.size))
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("classification worker pool stopped")
}

// IsRunning returns whether the pool's workers are active.
func (p *WorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		p.process(ctx, id, job)
	}
}

// process classifies one job and persists the result as a pending summary.
func (p *WorkerPool) process(ctx context.Context, workerID int, job models.SummarizeEmailJob) {
	result, err := p.summarizer.Summarize(ctx, job.Subject, job.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.Error("dropping job after classification failure",
			slog.Int("worker", workerID),
			slog.String("job_id", job.ID),
			slog.String("email_id", job.EmailID),
			slog.Any("error", err))
		return
	}

	summary := &models.Summary{
		UserID:             job.UserID,
		ConnectedAccountID: job.ConnectedAccountID,
		Source:             job.Source,
		DeliveryStatus:     models.DeliveryStatusPending,
		Content:            result.Content,
		Metadata: models.SummaryMetadata{
			Subject:           job.Subject,
			Link:              job.Link,
			ExternalMessageID: job.EmailID,
		},
		Generation: models.GenerationMetadata{
			Provider:     result.Provider,
			RequestID:    result.RequestID,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			TotalTokens:  result.TotalTokens,
			TimeTaken:    result.TimeTaken,
		},
		Delivery: models.DeliveryMetadata{
			Status: models.DeliveryStatusPending,
		},
	}

	if err := p.summaries.Create(ctx, summary); err != nil {
		p.logger.Error("failed to persist summary",
			slog.Int("worker", workerID),
			slog.String("job_id", job.ID),
			slog.String("email_id", job.EmailID),
			slog.Any("error", err))
		return
	}

	p.logger.Debug("summary stored",
		slog.Int("worker", workerID),
		slog.String("summary_id", summary.ID),
		slog.String("category", summary.Content.Category))
}
