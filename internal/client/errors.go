package client

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingReport     = errors.New("report id is required")
	ErrNoLocalData       = errors.New("photo has no local data")
)
