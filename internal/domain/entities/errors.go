package entities

import "errors"

// Domain errors
var (
	// Meeting errors
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMissingKeys     = errors.New("event carries no identity keys")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidEmail = errors.New("invalid email")

	// Participant errors
	ErrParticipantNotFound = errors.New("participant not found")

	// Connection errors
	ErrConnectionNotFound = errors.New("platform connection not found")
	ErrNotConnected       = errors.New("platform connection is disconnected")

	// Job errors
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicate is returned when an insert lost a unique-key race
	ErrDuplicate = errors.New("duplicate key")

	// Provider errors
	ErrNoRecording         = errors.New("no recording available yet")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)
