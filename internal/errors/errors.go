package errors

import (
	"errors"
)

// ErrInvalidInput marks rejected configuration or arguments.
var ErrInvalidInput = errors.New("invalid input")

// Moderation error kinds
var (
	// ErrClassification marks a malformed event. The event is dropped, the stream goes on.
	ErrClassification = errors.New("classification error")
	// ErrState marks a broken escalation store invariant or backend failure.
	ErrState = errors.New("escalation state error")
	// ErrTransient marks an enforcement failure that may succeed later.
	ErrTransient = errors.New("transient enforcement error")
	// ErrPermanent marks an enforcement failure that will not succeed on replay.
	ErrPermanent = errors.New("permanent enforcement error")
)

// IsEnforcement reports whether err is a classified enforcement failure.
func IsEnforcement(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrPermanent)
}
