package domain

import "errors"

// Sentinel errors shared by services and repositories.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrFeedbackAlreadyGiven = errors.New("attendee already gave feedback")
)
