package domain

import "errors"

var (
	ErrNotConfigured    = errors.New("pricing_not_configured")
	ErrInvalidSplit     = errors.New("invalid_profit_split")
	ErrInvalidCostPrice = errors.New("invalid_cost_price")
)
