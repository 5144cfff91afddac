package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Preference is one entry of a user's ordered cause list. The rows are
// managed by the profile surface; the settlement core only reads them.
type Preference struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID        string       `json:"user_id" gorm:"type:text;not null;index"`
	CauseSlug     string       `json:"cause_slug" gorm:"type:text;not null"`
	CauseName     string       `json:"cause_name" gorm:"type:text;not null"`
	PriorityOrder int          `json:"priority_order" gorm:"not null"`
	IsActive      bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null"`
}

func (Preference) TableName() string { return "charity_preferences" }
