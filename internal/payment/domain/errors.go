package domain

import "errors"

var (
	ErrNotConfigured         = errors.New("payment_provider_not_configured")
	ErrInvalidSignature      = errors.New("invalid_webhook_signature")
	ErrInvalidPayload        = errors.New("invalid_webhook_payload")
	ErrEventIgnored          = errors.New("event_type_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
)
