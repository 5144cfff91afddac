package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// LineItem is one priced cart line handed to the payment provider.
type LineItem struct {
	Name        string
	Description string
	Currency    string
	UnitAmount  int64
	Quantity    int
	ImageURL    string
}

// CreateSessionRequest opens a provider checkout session covering the whole
// cart.
type CreateSessionRequest struct {
	UserID      string
	PurchaseIDs []snowflake.ID
	LineItems   []LineItem
}

// ProviderSession is the provider-side checkout session.
type ProviderSession struct {
	ID  string
	URL string
}

// PaymentProvider creates hosted checkout sessions.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CreateSessionRequest) (*ProviderSession, error)
}
