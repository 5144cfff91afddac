package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventCheckoutExpired   = "checkout.session.expired"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

type EventStatus string

const (
	EventStatusReceived  EventStatus = "received"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// Event is a provider-neutral view of one payment notification. SessionID and
// PurchaseIDs come from the session object the provider echoes back; the
// purchase ids travel comma-joined in session metadata.
type Event struct {
	Provider        string
	ProviderEventID string
	Type            string
	SessionID       string
	PaymentIntent   string
	PurchaseIDs     string
	AmountTotal     int64
	CreatedAt       time.Time
}

// EventRecord is the durable intake row for every accepted webhook delivery.
// The unique (provider, provider_event_id) index makes redelivery a read, not
// a second settlement.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null;uniqueIndex:idx_payment_events_provider_event"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	SessionID       string         `json:"session_id" gorm:"type:text;index"`
	Payload         datatypes.JSON `json:"payload"`
	Status          EventStatus    `json:"status" gorm:"type:text;not null"`
	Error           string         `json:"error" gorm:"type:text"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }
