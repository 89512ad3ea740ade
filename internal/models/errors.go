package models

import "errors"

// Domain error taxonomy. Store adapters and services wrap these so the
// HTTP layer can map them to status codes with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNoWorkersAvailable = errors.New("no workers available")
	ErrInvalidState       = errors.New("invalid state")
	ErrStoreUnavailable   = errors.New("store unavailable")
)
