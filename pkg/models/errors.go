package models

import "errors"

// Common errors for store and lifecycle operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")

	// File errors
	ErrFileNotFound      = errors.New("file not found")
	ErrDuplicateFile     = errors.New("file with this bucket/key already exists")
	ErrInvalidTransition = errors.New("illegal file state transition")
	ErrStaleState        = errors.New("file state changed concurrently")

	// Quota errors
	ErrQuotaExceeded = errors.New("quota exceeded")
)
