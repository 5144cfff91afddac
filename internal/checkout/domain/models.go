package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

type FulfillmentStatus string

const (
	FulfillmentStatusPending   FulfillmentStatus = "pending"
	FulfillmentStatusFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentStatusFailed    FulfillmentStatus = "failed"
)

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusExpired   SessionStatus = "expired"
)

// Purchase is one line-item purchase record tracked from intake through
// fulfillment. One row per quantity unit; money in integer cents. Rows are
// never deleted.
type Purchase struct {
	ID                  snowflake.ID      `json:"id" gorm:"primaryKey"`
	UserID              string            `json:"user_id" gorm:"type:text;not null;index"`
	ProductID           int64             `json:"product_id" gorm:"not null"`
	ProductName         string            `json:"product_name" gorm:"type:text;not null"`
	BrandName           string            `json:"brand_name" gorm:"type:text"`
	FaceAmount          int64             `json:"face_amount" gorm:"not null"`
	Currency            string            `json:"currency" gorm:"type:text;not null"`
	PurchasePrice       int64             `json:"purchase_price" gorm:"not null"`
	CostPrice           int64             `json:"cost_price" gorm:"not null"`
	ProfitAmount        int64             `json:"profit_amount" gorm:"not null"`
	CompanyShare        int64             `json:"company_share" gorm:"not null"`
	CharityShare        int64             `json:"charity_share" gorm:"not null"`
	CreditsEarned       int64             `json:"credits_earned" gorm:"not null"`
	Status              PurchaseStatus    `json:"status" gorm:"type:text;not null;index"`
	PaymentRef          string            `json:"payment_ref" gorm:"type:text"`
	SessionID           string            `json:"session_id" gorm:"type:text;index"`
	FulfillmentStatus   FulfillmentStatus `json:"fulfillment_status" gorm:"type:text;not null"`
	FulfillmentError    string            `json:"fulfillment_error" gorm:"type:text"`
	FulfillmentAttempts int               `json:"fulfillment_attempts" gorm:"not null;default:0"`
	GiftCardCode        string            `json:"gift_card_code" gorm:"type:text"`
	RecipientEmail      string            `json:"recipient_email" gorm:"type:text"`
	CreatedAt           time.Time         `json:"created_at" gorm:"not null"`
	CompletedAt         *time.Time        `json:"completed_at"`
	FulfilledAt         *time.Time        `json:"fulfilled_at"`
}

func (Purchase) TableName() string { return "purchases" }

// Session maps a provider checkout session to the purchases it covers. All
// purchases of one session settle together.
type Session struct {
	ID          string        `json:"id" gorm:"primaryKey"`
	UserID      string        `json:"user_id" gorm:"type:text;not null;index"`
	PurchaseIDs string        `json:"purchase_ids" gorm:"type:text;not null"`
	AmountTotal int64         `json:"amount_total" gorm:"not null"`
	Status      SessionStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"not null"`
}

func (Session) TableName() string { return "checkout_sessions" }

// CartItem is one line of the inbound cart. Denomination is the face value
// the customer selected, in cents; it is validated against the catalog, never
// trusted from the client.
type CartItem struct {
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	BrandName    string `json:"brandName"`
	Denomination int64  `json:"denomination"`
	Currency     string `json:"currency"`
	Quantity     int    `json:"quantity"`
}

// SessionResult is returned to the storefront for the redirect.
type SessionResult struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url"`
}

// JoinPurchaseIDs serializes purchase ids as a comma-joined string. The
// provider metadata field has a size limit, so ids travel delimited, not as
// JSON.
func JoinPurchaseIDs(ids []snowflake.ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}

// SplitPurchaseIDs parses a comma-joined id list, skipping blanks.
func SplitPurchaseIDs(raw string) ([]snowflake.ID, error) {
	parts := strings.Split(raw, ",")
	ids := make([]snowflake.ID, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := snowflake.ParseString(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
