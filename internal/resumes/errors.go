package resumes

import "errors"

var (
	// ErrNotFound covers both missing and foreign resumes.
	ErrNotFound      = errors.New("resume not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQueueDisabled = errors.New("score queue not configured")
)
