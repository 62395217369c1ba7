package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInvalidPayload = fmt.Errorf("invalid payload")
	ErrClosed         = fmt.Errorf("connection closed")

	// ErrRejected is the validation failure of an outbound message.
	// It never reaches the store.
	ErrRejected       = fmt.Errorf("message rejected")
	ErrEmptyMessage   = fmt.Errorf("%w: empty message", ErrRejected)
	ErrMessageTooLong = fmt.Errorf("%w: message too long", ErrRejected)

	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrSubscription     = fmt.Errorf("subscription failed")
	ErrCooldown         = fmt.Errorf("cooldown in progress")
	ErrNotConnected     = fmt.Errorf("not connected")
	ErrNotFound         = fmt.Errorf("not found")
)
