package domain

import "context"

// Queue hands completed sessions to the background issuance worker. Enqueue
// never blocks the caller; a full queue is dropped and picked up by the
// manual retry endpoint.
type Queue interface {
	Enqueue(sessionID string)
}

// BatchResult summarizes one issuance pass.
type BatchResult struct {
	Fulfilled int `json:"fulfilled"`
	Failed    int `json:"failed"`
	Retryable int `json:"retryable"`
}

// Service issues gift cards for completed, unfulfilled purchases.
type Service interface {
	// ProcessSession fulfills the purchases of one settled session.
	ProcessSession(ctx context.Context, sessionID string) (BatchResult, error)
	// ProcessPending sweeps every eligible purchase regardless of session.
	ProcessPending(ctx context.Context) (BatchResult, error)
}
