package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"gorm.io/gorm"
)

// AccountRepository defines the interface for connected account data access
type AccountRepository interface {
	Create(ctx context.Context, account *models.ConnectedAccount) error
	GetByID(ctx context.Context, id string) (*models.ConnectedAccount, error)
	ExistsByProviderUserID(ctx context.Context, providerUserID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.ConnectedAccount, error)
	// GetDueForFetch returns non-revoked accounts whose fetch lock has elapsed
	// (or was never set). Selection is only a candidate list; exclusivity is
	// established per account by TryAcquireFetchLock.
	GetDueForFetch(ctx context.Context, now time.Time) ([]models.ConnectedAccount, error)
	// TryAcquireFetchLock extends the account's fetch lock to `until` in a
	// single conditional update. It reports false when another pass holds an
	// unexpired lock, so two overlapping fetch passes cannot both win the
	// same account.
	TryAcquireFetchLock(ctx context.Context, id string, now, until time.Time) (bool, error)
	ReleaseFetchLock(ctx context.Context, id string) error
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
	UpdateLastFetchedAt(ctx context.Context, id string, at time.Time) error
	SetRevoked(ctx context.Context, id string, revoked bool) error
}

// accountRepository implements AccountRepository using GORM
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new connected account
func (r *accountRepository) Create(ctx context.Context, account *models.ConnectedAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("failed to create connected account: %w", err)
	}
	return nil
}

// GetByID retrieves a connected account by ID
func (r *accountRepository) GetByID(ctx context.Context, id string) (*models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	result := r.db.WithContext(ctx).First(&account, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connected account by ID: %w", result.Error)
	}
	return &account, nil
}

// ExistsByProviderUserID reports whether a provider identity is already connected
func (r *accountRepository) ExistsByProviderUserID(ctx context.Context, providerUserID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.ConnectedAccount{}).
		Where("provider_user_id = ?", providerUserID).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check provider user ID: %w", result.Error)
	}
	return count > 0, nil
}

// ListByUser retrieves all connected accounts owned by a user
func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", result.Error)
	}
	return accounts, nil
}

// GetDueForFetch retrieves accounts eligible for a fetch pass
func (r *accountRepository) GetDueForFetch(ctx context.Context, now time.Time) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	result := r.db.WithContext(ctx).
		Where("is_revoked = ? AND (fetch_lock_until_utc IS NULL OR fetch_lock_until_utc <= ?)", false, now).
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get accounts due for fetch: %w", result.Error)
	}
	return accounts, nil
}

// TryAcquireFetchLock attempts a compare-and-swap on the lock column
func (r *accountRepository) TryAcquireFetchLock(ctx context.Context, id string, now, until time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ConnectedAccount{}).
		Where("id = ? AND (fetch_lock_until_utc IS NULL OR fetch_lock_until_utc <= ?)", id, now).
		Update("fetch_lock_until_utc", until)
	if result.Error != nil {
		return false, fmt.Errorf("failed to acquire fetch lock: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ReleaseFetchLock clears the account's fetch lock
func (r *accountRepository) ReleaseFetchLock(ctx context.Context, id string) error {
	return r.updateAccount(ctx, id, map[string]interface{}{"fetch_lock_until_utc": nil})
}

// UpdateTokens stores a freshly exchanged credential pair and its expiry
func (r *accountRepository) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	return r.updateAccount(ctx, id, map[string]interface{}{
		"access_token":            accessToken,
		"refresh_token":           refreshToken,
		"access_token_expiry_utc": expiry,
	})
}

// UpdateLastFetchedAt records the completion of a fetch pass
func (r *accountRepository) UpdateLastFetchedAt(ctx context.Context, id string, at time.Time) error {
	return r.updateAccount(ctx, id, map[string]interface{}{"last_fetched_at_utc": at})
}

// SetRevoked flips the account's revocation flag
func (r *accountRepository) SetRevoked(ctx context.Context, id string, revoked bool) error {
	return r.updateAccount(ctx, id, map[string]interface{}{"is_revoked": revoked})
}

func (r *accountRepository) updateAccount(ctx context.Context, id string, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.ConnectedAccount{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update connected account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
