package domain

import "context"

// Service is the order intake component.
type Service interface {
	CreateSession(ctx context.Context, userID, email string, items []CartItem) (*SessionResult, error)
}
