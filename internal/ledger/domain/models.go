package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CreditAccount is a user's reward-credit balance. Created lazily on first
// credit; balance never goes negative and lifetime_earned only grows.
type CreditAccount struct {
	UserID         string    `json:"user_id" gorm:"primaryKey;type:text"`
	Balance        int64     `json:"balance" gorm:"not null"`
	LifetimeEarned int64     `json:"lifetime_earned" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (CreditAccount) TableName() string { return "credit_accounts" }

// Application is the per-session idempotency log. Its primary key is the
// checkout session id; the constraint, not application code, closes the race
// between concurrent duplicate deliveries.
type Application struct {
	SessionID     string    `json:"session_id" gorm:"primaryKey;type:text"`
	UserID        string    `json:"user_id" gorm:"type:text;not null;index"`
	Credits       int64     `json:"credits" gorm:"not null"`
	CharityAmount int64     `json:"charity_amount" gorm:"not null"`
	AppliedAt     time.Time `json:"applied_at" gorm:"not null"`
}

func (Application) TableName() string { return "ledger_applications" }

// Contribution is one append-only charity fan-out row. The sum over a
// user+cause is that user's lifetime contribution to the cause.
type Contribution struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"type:text;not null;index"`
	CauseSlug string       `json:"cause_slug" gorm:"type:text;not null;uniqueIndex:idx_contributions_session_cause"`
	Amount    int64        `json:"amount" gorm:"not null"`
	SessionID string       `json:"session_id" gorm:"type:text;not null;uniqueIndex:idx_contributions_session_cause"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Contribution) TableName() string { return "charity_contributions" }

// HistoryRow is the denormalized purchase-history projection read by the
// impact dashboard.
type HistoryRow struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID         string       `json:"user_id" gorm:"type:text;not null;index"`
	PurchaseID     snowflake.ID `json:"purchase_id" gorm:"not null;uniqueIndex:idx_purchase_history_purchase"`
	ProductName    string       `json:"product_name" gorm:"type:text;not null"`
	PurchaseAmount int64        `json:"purchase_amount" gorm:"not null"`
	ProfitAmount   int64        `json:"profit_amount" gorm:"not null"`
	CharityShare   int64        `json:"charity_share" gorm:"not null"`
	CreditsEarned  int64        `json:"credits_earned" gorm:"not null"`
	GiftCardCode   string       `json:"gift_card_code" gorm:"type:text"`
	RecipientEmail string       `json:"recipient_email" gorm:"type:text"`
	PurchaseDate   time.Time    `json:"purchase_date" gorm:"not null"`
}

func (HistoryRow) TableName() string { return "purchase_history" }

// SettledPurchase is the ledger's view of one newly completed purchase.
type SettledPurchase struct {
	ID            snowflake.ID
	UserID        string
	ProductName   string
	PurchasePrice int64
	ProfitAmount  int64
	CharityShare  int64
	CreditsEarned int64
	CompletedAt   time.Time
}
