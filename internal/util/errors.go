package util

import "errors"

var (
	ErrNotFound          = errors.New("document or page not found")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrValidation        = errors.New("validation failed")
	ErrConfiguration     = errors.New("no active prompt template configured")
	ErrProcessingFailed  = errors.New("ai processing failed")
)
