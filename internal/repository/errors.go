package repository

import "errors"

var (
	// ErrStoreUnavailable is returned by stores that have been closed.
	ErrStoreUnavailable = errors.New("durable store unavailable")

	// ErrTransportUnavailable is returned when no backend connection is usable.
	ErrTransportUnavailable = errors.New("sync transport unavailable")
)
