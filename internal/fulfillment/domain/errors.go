package domain

import "errors"

var (
	ErrMissingRecipient = errors.New("missing_recipient_email")
	ErrAttemptsExceeded = errors.New("fulfillment_attempts_exceeded")
)
