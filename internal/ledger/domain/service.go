package domain

import "context"

// Service applies a settled session's credit and charity effects.
type Service interface {
	// Apply credits the batch atomically. Reapplying the same session id is
	// a no-op; all purchases of one batch must belong to one user.
	Apply(ctx context.Context, sessionID string, batch []SettledPurchase) error
	// ReapplyPending re-applies completed sessions that have no application
	// row, recovering applications lost to transient failures after
	// settlement. Returns the number of sessions applied.
	ReapplyPending(ctx context.Context) (int, error)
}
