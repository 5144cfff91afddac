package domain

import "context"

// Service settles or fails the purchases behind one payment event.
type Service interface {
	// ProcessEvent records the event and applies its effect. Redelivered
	// events return ErrEventAlreadyProcessed; unrecognized types return
	// ErrEventIgnored. Both are acknowledged upstream, never retried.
	ProcessEvent(ctx context.Context, event Event, payload []byte) error
}
