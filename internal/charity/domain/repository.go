package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository reads a user's active cause preferences.
type Repository interface {
	ListActive(ctx context.Context, db *gorm.DB, userID string) ([]Preference, error)
}
