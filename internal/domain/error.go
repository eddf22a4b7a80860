package domain

import "errors"

var (
	// Common domain errors
	ErrJobNotFound       = errors.New("job not found")
	ErrJobConflict       = errors.New("a job is already running for this resource")
	ErrJobNotCancellable = errors.New("job already reached a terminal state")
	ErrNoSubmissions     = errors.New("no submissions found under root directory")
	ErrUnsupportedFormat = errors.New("unsupported submission format")
	ErrQuotaExhausted    = errors.New("all credential slots exhausted")
	ErrEmptyResponse     = errors.New("model returned an empty or too short response")
	ErrModelNotFound     = errors.New("model not available")
)
