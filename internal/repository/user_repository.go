package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetDueForDigest returns users whose next delivery instant has passed.
	GetDueForDigest(ctx context.Context, now time.Time) ([]models.User, error)
	UpdateNextDelivery(ctx context.Context, id string, next *time.Time) error
	UpdatePreferences(ctx context.Context, id string, prefs models.UserPreferences) error
}

// userRepository implements UserRepository using GORM
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", result.Error)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	result := r.db.WithContext(ctx).First(&user, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", result.Error)
	}
	return &user, nil
}

// GetDueForDigest retrieves users with a next delivery instant at or before now
func (r *userRepository) GetDueForDigest(ctx context.Context, now time.Time) ([]models.User, error) {
	var users []models.User
	result := r.db.WithContext(ctx).
		Where("next_delivery_utc IS NOT NULL AND next_delivery_utc <= ?", now).
		Find(&users)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get users due for digest: %w", result.Error)
	}
	return users, nil
}

// UpdateNextDelivery sets the user's next delivery instant (nil clears it)
func (r *userRepository) UpdateNextDelivery(ctx context.Context, id string, next *time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("next_delivery_utc", next)
	if result.Error != nil {
		return fmt.Errorf("failed to update next delivery: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePreferences replaces the user's preferences
func (r *userRepository) UpdatePreferences(ctx context.Context, id string, prefs models.UserPreferences) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Update("preferences", prefs)
	if result.Error != nil {
		return fmt.Errorf("failed to update preferences: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
