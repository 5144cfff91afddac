package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists webhook event intake rows.
type Repository interface {
	// InsertEvent stores the delivery. It returns false when an event with
	// the same (provider, provider_event_id) already exists.
	InsertEvent(ctx context.Context, db *gorm.DB, record *EventRecord) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, provider, providerEventID string) error
	MarkFailed(ctx context.Context, db *gorm.DB, provider, providerEventID, reason string) error
}
