package domain

import "errors"

var (
	ErrInvalidSession = errors.New("invalid_session")
	ErrInvalidBatch   = errors.New("invalid_batch")
	ErrMixedUsers     = errors.New("mixed_users_in_batch")
)
