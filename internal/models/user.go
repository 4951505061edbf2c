package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an account holder receiving digest emails.
type User struct {
	ID              string          `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string          `gorm:"uniqueIndex;not null;size:255" json:"email"`
	PasswordHash    string          `json:"-"`
	Preferences     UserPreferences `gorm:"serializer:json" json:"preferences"`
	NextDeliveryUTC *time.Time      `gorm:"index" json:"next_delivery_utc,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID when none was provided
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserPreferences controls when and how digests are delivered.
// DeliveryTimes holds up to three local times of day in "HH:MM" form,
// interpreted in the user's IANA timezone.
type UserPreferences struct {
	TimeZoneID      string   `json:"timezone_id"`
	DeliveryTimes   []string `json:"delivery_times"`
	MarkAsRead      bool     `json:"mark_as_read"`
	MarkImportant   bool     `json:"mark_important"`
	IgnoreMarketing bool     `json:"ignore_marketing"`
}

// MaxDeliveryTimes is the maximum number of daily delivery slots per user.
const MaxDeliveryTimes = 3
