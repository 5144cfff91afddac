package repository

import (
	"context"
	"time"

	paymentdomain "github.com/smallbiznis/giftpact/internal/payment/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() paymentdomain.Repository {
	return repository{}
}

func (repository) InsertEvent(ctx context.Context, db *gorm.DB, record *paymentdomain.EventRecord) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (
			id, provider, provider_event_id, event_type, session_id,
			payload, status, error, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, '', ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.ProviderEventID,
		record.EventType,
		record.SessionID,
		record.Payload,
		record.Status,
		record.ReceivedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repository) MarkProcessed(ctx context.Context, db *gorm.DB, provider, providerEventID string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events SET status = ?, processed_at = ? WHERE provider = ? AND provider_event_id = ?`,
		paymentdomain.EventStatusProcessed,
		now,
		provider,
		providerEventID,
	).Error
}

func (repository) MarkFailed(ctx context.Context, db *gorm.DB, provider, providerEventID, reason string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events SET status = ?, error = ?, processed_at = ? WHERE provider = ? AND provider_event_id = ?`,
		paymentdomain.EventStatusFailed,
		reason,
		now,
		provider,
		providerEventID,
	).Error
}
