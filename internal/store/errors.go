package store

import "errors"

var (
	ErrLeadNotFound    = errors.New("lead not found")
	ErrProfileNotFound = errors.New("target buyer profile not found")
	ErrFocusNotFound   = errors.New("daily focus not found")
)
