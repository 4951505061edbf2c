package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/queue"
	"github.com/inboxwrap/inboxwrap-backend/internal/summarizer"
)

func sampleJob(id string) models.SummarizeEmailJob {
	return models.SummarizeEmailJob{
		ID:                 id,
		UserID:             "user-1",
		ConnectedAccountID: "acct-1",
		EmailID:            "m-" + id,
		Subject:            "subject " + id,
		Body:               "body " + id,
		Link:               "https://l/" + id,
		Source:             models.ProviderMicrosoft,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestWorkerPool_PersistsPendingSummaries(t *testing.T) {
	q := queue.New(16)
	repo := newMockSummaryRepo()
	s := &mockSummarizer{result: &summarizer.Result{
		Content: models.SummaryContent{
			Title:         "title",
			Content:       "content",
			Category:      models.CategoryFinanceAndBills,
			PriorityScore: 0.7,
		},
		Provider:     "groq",
		RequestID:    "req-1",
		InputTokens:  300,
		OutputTokens: 80,
		TotalTokens:  380,
		TimeTaken:    0.3,
	}}

	pool := NewWorkerPool(q, s, repo, 3, testLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(context.Background(), sampleJob("1")))
	require.NoError(t, q.Enqueue(context.Background(), sampleJob("2")))

	waitFor(t, 2*time.Second, func() bool { return len(repo.createdSummaries()) == 2 })

	for _, created := range repo.createdSummaries() {
		assert.Equal(t, "user-1", created.UserID)
		assert.Equal(t, "acct-1", created.ConnectedAccountID)
		assert.Equal(t, models.ProviderMicrosoft, created.Source)
		assert.Equal(t, models.DeliveryStatusPending, created.DeliveryStatus)
		assert.Equal(t, models.DeliveryStatusPending, created.Delivery.Status)
		assert.Equal(t, "groq", created.Generation.Provider)
		assert.Equal(t, "req-1", created.Generation.RequestID)
		assert.Equal(t, 380, created.Generation.TotalTokens)
		assert.NotEmpty(t, created.Metadata.Subject)
		assert.NotEmpty(t, created.Metadata.ExternalMessageID)
	}
}

func TestWorkerPool_DropsFailedJobs(t *testing.T) {
	q := queue.New(16)
	repo := newMockSummaryRepo()
	s := &mockSummarizer{err: errors.New("model returned prose")}

	pool := NewWorkerPool(q, s, repo, 2, testLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(context.Background(), sampleJob("1")))

	waitFor(t, 2*time.Second, func() bool { return s.callCount() == 1 })

	// The job is gone and nothing was persisted.
	waitFor(t, time.Second, func() bool { return q.Len() == 0 })
	assert.Empty(t, repo.createdSummaries())
}

func TestWorkerPool_StartStopLifecycle(t *testing.T) {
	q := queue.New(4)
	pool := NewWorkerPool(q, &mockSummarizer{}, newMockSummaryRepo(), 2, testLogger())

	assert.False(t, pool.IsRunning())

	pool.Start()
	assert.True(t, pool.IsRunning())

	// Second Start is a no-op.
	pool.Start()
	assert.True(t, pool.IsRunning())

	pool.Stop()
	assert.False(t, pool.IsRunning())

	// Second Stop is a no-op.
	pool.Stop()
	assert.False(t, pool.IsRunning())
}

func TestWorkerPool_StopUnblocksIdleWorkers(t *testing.T) {
	q := queue.New(4)
	pool := NewWorkerPool(q, &mockSummarizer{}, newMockSummaryRepo(), 5, testLogger())

	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while workers were blocked on an empty queue")
	}
}

func TestWorkerPool_DefaultSize(t *testing.T) {
	pool := NewWorkerPool(queue.New(4), &mockSummarizer{}, newMockSummaryRepo(), 0, testLogger())
	assert.Equal(t, 5, pool.size)
}
