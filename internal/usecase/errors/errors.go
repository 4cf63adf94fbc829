package errors

import "errors"

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
)

// Connection errors
var (
	ErrProviderAuth   = errors.New("provider rejected the credentials")
	ErrNoRefreshToken = errors.New("connection needs a refresh token")
)

// Job errors
var (
	ErrInvalidJobType  = errors.New("unknown job type")
	ErrJobNotRetryable = errors.New("job is still queued or running")
)
