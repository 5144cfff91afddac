package domain

import "errors"

var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrEmptyCart             = errors.New("empty_cart")
	ErrInvalidDenomination   = errors.New("invalid_denomination")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrPaymentNotConfigured  = errors.New("payment_not_configured")
	ErrPaymentUnavailable    = errors.New("payment_unavailable")
	ErrSessionCreationFailed = errors.New("session_creation_failed")
)
