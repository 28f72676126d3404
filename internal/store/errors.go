package store

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrEventNotActive   = errors.New("event_not_active")
	ErrCapacityExceeded = errors.New("capacity_exceeded")
	ErrAlreadyJoined    = errors.New("already_joined")
	ErrInvalidState     = errors.New("invalid_state")
)
