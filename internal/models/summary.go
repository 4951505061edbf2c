package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery status values for a Summary. The status is monotonic: a summary
// moves from pending to delivered or failed and never reverts.
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// Summary categories. The classification model must return exactly one of
// these; the digest template groups items in this order.
const (
	CategoryFinanceAndBills          = "Finance & Bills"
	CategoryEventsAndReminders       = "Events & Reminders"
	CategorySecurityAndAccount       = "Security & Account"
	CategoryPersonalAndSocial        = "Personal & Social"
	CategoryPromotionsAndNewsletters = "Promotions & Newsletters"
	CategoryEntertainmentAndGaming   = "Entertainment & Gaming"
)

// Categories returns the closed category set in digest display order.
func Categories() []string {
	return []string{
		CategoryFinanceAndBills,
		CategoryEventsAndReminders,
		CategorySecurityAndAccount,
		CategoryPersonalAndSocial,
		CategoryEntertainmentAndGaming,
		CategoryPromotionsAndNewsletters,
	}
}

// Summary is the persisted, classified representation of one email message.
// Created by the classification workers; only the dispatcher mutates it
// afterwards, and only the delivery fields.
type Summary struct {
	ID                 string             `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             string             `gorm:"type:uuid;not null;index" json:"user_id"`
	ConnectedAccountID string             `gorm:"type:uuid;not null;index" json:"connected_account_id"`
	Source             string             `gorm:"not null;size:32" json:"source"`
	DeliveryStatus     string             `gorm:"not null;size:16;index;default:pending" json:"delivery_status"`
	DeliveredAtUTC     *time.Time         `json:"delivered_at_utc,omitempty"`
	Content            SummaryContent     `gorm:"serializer:json" json:"content"`
	Metadata           SummaryMetadata    `gorm:"serializer:json" json:"metadata"`
	Generation         GenerationMetadata `gorm:"serializer:json" json:"generation_metadata"`
	Delivery           DeliveryMetadata   `gorm:"serializer:json" json:"delivery_metadata"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Summary
func (Summary) TableName() string {
	return "summaries"
}

// BeforeCreate assigns a UUID when none was provided
func (s *Summary) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// SummaryContent is the structured classification result. The JSON field
// names form the wire contract with the summarization model.
type SummaryContent struct {
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	ActionRequired  string  `json:"action_required"`
	Category        string  `json:"category"`
	Important       bool    `json:"important"`
	ConfidenceScore float64 `json:"confidence_score"`
	PriorityScore   float64 `json:"priority_score"`
}

// SummaryMetadata records where the summarized message came from.
type SummaryMetadata struct {
	Subject           string `json:"subject"`
	Link              string `json:"link"`
	ExternalMessageID string `json:"external_message_id"`
}

// GenerationMetadata records how the summary was produced.
type GenerationMetadata struct {
	Provider     string  `json:"provider"`
	RequestID    string  `json:"request_id"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	TimeTaken    float64 `json:"time_taken"`
}

// DeliveryMetadata records the most recent digest delivery attempt that
// included this summary.
type DeliveryMetadata struct {
	Provider     string     `json:"provider"`
	Channel      string     `json:"channel"`
	MessageID    string     `json:"message_id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAtUTC    *time.Time `json:"sent_at_utc,omitempty"`
	AttemptCount int        `json:"attempt_count"`
}
