package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"gorm.io/gorm"
)

// SummaryRepository defines the interface for summary data access
type SummaryRepository interface {
	Create(ctx context.Context, summary *models.Summary) error
	GetByID(ctx context.Context, id string) (*models.Summary, error)
	ListByUser(ctx context.Context, userID string) ([]models.Summary, error)
	// ListPendingByAccount returns all summaries for the account that have
	// not been included in a delivered digest yet. Priority ordering happens
	// in the dispatcher: the score lives inside the serialized content.
	ListPendingByAccount(ctx context.Context, accountID string) ([]models.Summary, error)
	// UpdateDelivery persists the delivery fields of a summary after a
	// dispatch attempt. Content and generation metadata are never rewritten.
	UpdateDelivery(ctx context.Context, summary *models.Summary) error
}

// summaryRepository implements SummaryRepository using GORM
type summaryRepository struct {
	db *gorm.DB
}

// NewSummaryRepository creates a new SummaryRepository instance
func NewSummaryRepository(db *gorm.DB) SummaryRepository {
	return &summaryRepository{db: db}
}

// Create creates a new summary
func (r *summaryRepository) Create(ctx context.Context, summary *models.Summary) error {
	if err := r.db.WithContext(ctx).Create(summary).Error; err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	return nil
}

// GetByID retrieves a summary by ID
func (r *summaryRepository) GetByID(ctx context.Context, id string) (*models.Summary, error) {
	var summary models.Summary
	result := r.db.WithContext(ctx).First(&summary, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary by ID: %w", result.Error)
	}
	return &summary, nil
}

// ListByUser retrieves all summaries owned by a user, newest first
func (r *summaryRepository) ListByUser(ctx context.Context, userID string) ([]models.Summary, error) {
	var summaries []models.Summary
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&summaries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", result.Error)
	}
	return summaries, nil
}

// ListPendingByAccount retrieves pending summaries for a connected account
func (r *summaryRepository) ListPendingByAccount(ctx context.Context, accountID string) ([]models.Summary, error) {
	var summaries []models.Summary
	result := r.db.WithContext(ctx).
		Where("connected_account_id = ? AND delivery_status = ?", accountID, models.DeliveryStatusPending).
		Find(&summaries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list pending summaries: %w", result.Error)
	}
	return summaries, nil
}

// UpdateDelivery persists the delivery status, delivered-at instant and
// delivery metadata of a summary
func (r *summaryRepository) UpdateDelivery(ctx context.Context, summary *models.Summary) error {
	result := r.db.WithContext(ctx).Model(&models.Summary{}).
		Where("id = ?", summary.ID).
		Select("delivery_status", "delivered_at_utc", "delivery").
		Updates(summary)
	if result.Error != nil {
		return fmt.Errorf("failed to update summary delivery: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
