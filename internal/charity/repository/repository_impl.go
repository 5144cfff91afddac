package repository

import (
	"context"

	charitydomain "github.com/smallbiznis/giftpact/internal/charity/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() charitydomain.Repository {
	return repository{}
}

func (repository) ListActive(ctx context.Context, db *gorm.DB, userID string) ([]charitydomain.Preference, error) {
	var prefs []charitydomain.Preference
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("priority_order ASC").
		Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	return prefs, nil
}
