package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/normalizer"
	"github.com/inboxwrap/inboxwrap-backend/internal/provider"
	"github.com/inboxwrap/inboxwrap-backend/internal/queue"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
)

// FetchConfig holds the mailbox sync tuning knobs.
type FetchConfig struct {
	// LockDuration bounds how long one pass may hold an account.
	LockDuration time.Duration
	// CutoffWindow is how far back each pass looks for unread mail. It
	// slightly overlaps the polling cadence so loop jitter cannot open a
	// gap; duplicates across passes are tolerated.
	CutoffWindow time.Duration
}

// FetchService runs the mailbox sync pass: it selects due accounts, locks
// each one, refreshes expired credentials, lists unread mail since the
// cutoff, normalizes it and enqueues one classification job per message.
type FetchService struct {
	accounts  repository.AccountRepository
	providers *provider.Registry
	pipeline  *normalizer.Pipeline
	queue     *queue.SummaryQueue
	config    FetchConfig
	logger    *slog.Logger

	now func() time.Time
}

// NewFetchService creates the mailbox sync service.
func NewFetchService(
	accounts repository.AccountRepository,
	providers *provider.Registry,
	pipeline *normalizer.Pipeline,
	q *queue.SummaryQueue,
	config FetchConfig,
	logger *slog.Logger,
) *FetchService {
	if config.LockDuration <= 0 {
		config.LockDuration = 5 * time.Minute
	}
	if config.CutoffWindow <= 0 {
		config.CutoffWindow = 5 * time.Minute
	}

	return &FetchService{
		accounts:  accounts,
		providers: providers,
		pipeline:  pipeline,
		queue:     q,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// FetchDue runs one mailbox sync pass over every account whose fetch lock
// has elapsed. Per-account failures are logged and skipped; the pass keeps
// going so one broken mailbox cannot starve the rest.
func (s *FetchService) FetchDue(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.accounts.GetDueForFetch(ctx, now)
	if err != nil {
		s.logger.Error("failed to select accounts due for fetch",
			slog.Any("error", err))
		return
	}

	if len(due) == 0 {
		s.logger.Debug("no accounts due for fetch")
		return
	}

	s.logger.Info("starting fetch pass", slog.Int("accounts", len(due)))

	for _, account := range due {
		s.fetchAccount(ctx, account, now)
	}
}

func (s *FetchService) fetchAccount(ctx context.Context, account models.ConnectedAccount, now time.Time) {
	acquired, err := s.accounts.TryAcquireFetchLock(ctx, account.ID, now, now.Add(s.config.LockDuration))
	if err != nil {
		s.logger.Error("failed to acquire fetch lock",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return
	}
	if !acquired {
		s.logger.Debug("fetch lock held by another pass",
			slog.String("account_id", account.ID))
		return
	}

	prov, ok := s.providers.Get(account.Provider)
	if !ok {
		s.logger.Error("no provider registered for account",
			slog.String("account_id", account.ID),
			slog.String("provider", account.Provider))
		return
	}

	accessToken := account.AccessToken
	if !now.Before(account.AccessTokenExpiryUTC) {
		tokens, err := prov.RefreshCredential(ctx, account.RefreshToken)
		if err != nil {
			s.logger.Error("failed to refresh credential",
				slog.String("account_id", account.ID),
				slog.String("provider", account.Provider),
				slog.Any("error", err))
			return
		}

		if err := s.accounts.UpdateTokens(ctx, account.ID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiryUTC(now)); err != nil {
			s.logger.Error("failed to persist refreshed tokens",
				slog.String("account_id", account.ID),
				slog.Any("error", err))
			return
		}
		accessToken = tokens.AccessToken
	}

	since := now.Add(-s.config.CutoffWindow)
	mails, err := prov.ListUnreadSince(ctx, accessToken, since)
	if err != nil {
		s.logger.Error("failed to list unread mail",
			slog.String("account_id", account.ID),
			slog.String("provider", account.Provider),
			slog.Any("error", err))
		return
	}

	mails = s.pipeline.Run(mails)

	enqueued := 0
	for _, mail := range mails {
		job := models.SummarizeEmailJob{
			ID:                 uuid.NewString(),
			UserID:             account.UserID,
			ConnectedAccountID: account.ID,
			EmailID:            mail.ID,
			Subject:            mail.Subject,
			Body:               mail.Body,
			Link:               mail.Link,
			Source:             mail.Source,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue classification job",
				slog.String("account_id", account.ID),
				slog.Int("enqueued", enqueued),
				slog.Any("error", err))
			return
		}
		enqueued++
	}

	if err := s.accounts.UpdateLastFetchedAt(ctx, account.ID, now); err != nil {
		s.logger.Error("failed to record fetch completion",
			slog.String("account_id", account.ID),
			slog.Any("error", err))
		return
	}

	s.logger.Info("fetched account",
		slog.String("account_id", account.ID),
		slog.String("provider", account.Provider),
		slog.Int("messages", enqueued))
}
