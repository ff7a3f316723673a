package apperrors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNotInitialized      = errors.New("vision provider not configured")
	ErrRendererUnavailable = errors.New("annotation renderer not available")
)
