package domain

import "errors"

var (
	ErrNotConfigured       = errors.New("catalog_not_configured")
	ErrProductNotFound     = errors.New("product_not_found")
	ErrProviderUnavailable = errors.New("catalog_unavailable")
	ErrOrderRejected       = errors.New("order_rejected")
)
