package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/inboxwrap/inboxwrap-backend/internal/postmark"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
)

// Mailer sends one templated digest email.
type Mailer interface {
	SendTemplate(ctx context.Context, req postmark.TemplateRequest) (*postmark.Response, error)
}

const deliveryChannel = "email"

// DispatchConfig holds the digest dispatch settings.
type DispatchConfig struct {
	TemplateID    int
	FromAddress   string
	PromotionsCap int
}

// DispatchService assembles and sends digests for users whose next delivery
// instant has passed, then updates delivery state and reschedules them.
type DispatchService struct {
	users     repository.UserRepository
	accounts  repository.AccountRepository
	summaries repository.SummaryRepository
	mailer    Mailer
	config    DispatchConfig
	logger    *slog.Logger

	now func() time.Time
}

// NewDispatchService creates the digest dispatch service.
func NewDispatchService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	summaries repository.SummaryRepository,
	mailer Mailer,
	config DispatchConfig,
	logger *slog.Logger,
) *DispatchService {
	if config.PromotionsCap <= 0 {
		config.PromotionsCap = 2
	}

	return &DispatchService{
		users:     users,
		accounts:  accounts,
		summaries: summaries,
		mailer:    mailer,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// DispatchDue runs one dispatch pass over every user whose NextDeliveryUTC
// has passed. Each user is rescheduled after their pass whether or not the
// send succeeded, so a persistently failing address cannot wedge the loop
// into retrying every cycle.
func (s *DispatchService) DispatchDue(ctx context.Context) {
	now := s.now().UTC()

	due, err := s.users.GetDueForDigest(ctx, now)
	if err != nil {
		s.logger.Error("failed to select users due for digest",
			slog.Any("error", err))
		return
	}

	if len(due) == 0 {
		s.logger.Debug("no users due for digest")
		return
	}

	s.logger.Info("starting dispatch pass", slog.Int("users", len(due)))

	for _, user := range due {
		s.dispatchUser(ctx, user, now)
		s.reschedule(ctx, user, now)
	}
}

func (s *DispatchService) dispatchUser(ctx context.Context, user models.User, now time.Time) {
	accounts, err := s.accounts.ListByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list accounts for digest",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return
	}

	for _, account := range accounts {
		pending, err := s.summaries.ListPendingByAccount(ctx, account.ID)
		if err != nil {
			s.logger.Error("failed to list pending summaries",
				slog.String("account_id", account.ID),
				slog.Any("error", err))
			continue
		}
		if len(pending) == 0 {
			continue
		}

		model := BuildDigestModel(pending, s.config.PromotionsCap, now)

		resp, err := s.mailer.SendTemplate(ctx, postmark.TemplateRequest{
			TemplateID:    s.config.TemplateID,
			TemplateModel: model,
			From:          s.config.FromAddress,
			To:            user.Email,
		})
		if err != nil {
			// Transport failure: summaries stay pending and are retried on
			// the next pass.
			s.logger.Error("digest send failed",
				slog.String("user_id", user.ID),
				slog.String("account_id", account.ID),
				slog.Any("error", err))
			continue
		}

		s.recordDelivery(ctx, pending, resp)

		s.logger.Info("digest dispatched",
			slog.String("user_id", user.ID),
			slog.String("account_id", account.ID),
			slog.Int("summaries", len(pending)),
			slog.Int("error_code", resp.ErrorCode))
	}
}

// recordDelivery writes the outcome of one send onto every summary it
// covered. The top-level status only ever advances: a failed send leaves it
// pending with the failure recorded in the delivery metadata.
func (s *DispatchService) recordDelivery(ctx context.Context, pending []models.Summary, resp *postmark.Response) {
	delivered := resp.ErrorCode == 0
	sentAt := resp.SubmittedAt

	for i := range pending {
		summary := &pending[i]

		status := models.DeliveryStatusDelivered
		errorMessage := ""
		if !delivered {
			status = models.DeliveryStatusFailed
			errorMessage = resp.Message
		}

		summary.Delivery = models.DeliveryMetadata{
			Provider:     "postmark",
			Channel:      deliveryChannel,
			MessageID:    resp.MessageID,
			Status:       status,
			ErrorMessage: errorMessage,
			SentAtUTC:    &sentAt,
			AttemptCount: summary.Delivery.AttemptCount + 1,
		}

		if delivered {
			summary.DeliveryStatus = models.DeliveryStatusDelivered
			summary.DeliveredAtUTC = &sentAt
		}

		if err := s.summaries.UpdateDelivery(ctx, summary); err != nil {
			s.logger.Error("failed to persist delivery state",
				slog.String("summary_id", summary.ID),
				slog.Any("error", err))
		}
	}
}

// reschedule recomputes the user's next delivery instant, even after a
// failed pass.
func (s *DispatchService) reschedule(ctx context.Context, user models.User, now time.Time) {
	next, err := NextDeliveryUTC(user.Preferences, now)
	if err != nil {
		s.logger.Error("failed to compute next delivery time",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return
	}

	if err := s.users.UpdateNextDelivery(ctx, user.ID, next); err != nil {
		s.logger.Error("failed to persist next delivery time",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
}
