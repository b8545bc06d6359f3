package model

import "errors"

// Failure kinds returned by the stores and services. Callers match them with
// errors.Is; stores wrap them with context.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyBooked      = errors.New("already booked for this event")
	ErrSoldOut            = errors.New("event is sold out")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrAuthFailure        = errors.New("authentication failed")
	ErrTransient          = errors.New("transient store error")
	ErrInvalid            = errors.New("invalid input")
	ErrInvariantViolation = errors.New("capacity invariant violated")
)

// Kind returns the failure kind err belongs to, or nil when it is not one of
// the known kinds.
func Kind(err error) error {
	for _, k := range []error{
		ErrNotFound, ErrAlreadyBooked, ErrSoldOut, ErrForbidden, ErrConflict,
		ErrAuthFailure, ErrTransient, ErrInvalid, ErrInvariantViolation,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
