package service

import "errors"

var (
	// ErrPersistence wraps every DurableStore failure. The in-memory state of
	// the session stays authoritative for the process; the caller should
	// retry or alert because the change may be lost on crash.
	ErrPersistence = errors.New("session state not persisted")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrUnknownEvent is returned when an event name is not recognised.
	ErrUnknownEvent = errors.New("unknown session event")

	// ErrInvalidKind is returned for a billing kind other than waiting or emergency.
	ErrInvalidKind = errors.New("invalid billing kind")

	// ErrInvalidBillingConfig is returned when billing constants are out of range.
	ErrInvalidBillingConfig = errors.New("invalid billing config")
)
