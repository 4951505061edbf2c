package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mail provider identifiers
const (
	ProviderMicrosoft = "microsoft"
	ProviderGoogle    = "google"
)

// ConnectedAccount links a user to one authorized mailbox at a mail provider.
//
// FetchLockUntilUTC is a time-bounded exclusivity marker: a fetch pass must
// win a conditional update on it (see AccountRepository.TryAcquireFetchLock)
// before touching the account, so overlapping passes cannot both fetch the
// same mailbox. The lock expires on its own if the holder dies mid-pass.
type ConnectedAccount struct {
	ID                   string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Provider             string     `gorm:"not null;size:32" json:"provider"`
	ProviderUserID       string     `gorm:"uniqueIndex;not null;size:255" json:"provider_user_id"`
	Name                 string     `gorm:"size:255" json:"name,omitempty"`
	Email                string     `gorm:"not null;size:255" json:"email"`
	AccessToken          string     `gorm:"not null" json:"-"`
	RefreshToken         string     `gorm:"not null" json:"-"`
	AccessTokenExpiryUTC time.Time  `json:"access_token_expiry_utc"`
	FetchLockUntilUTC    *time.Time `gorm:"index" json:"fetch_lock_until_utc,omitempty"`
	LastFetchedAtUTC     *time.Time `json:"last_fetched_at_utc,omitempty"`
	IsRevoked            bool       `gorm:"default:false" json:"is_revoked"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ConnectedAccount
func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

// BeforeCreate assigns a UUID when none was provided
func (a *ConnectedAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
