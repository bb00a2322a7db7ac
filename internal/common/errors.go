// Package common defines shared constants and sentinel errors used across
// client and server layers of offsync. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	// Device registry errors.
	ErrDeviceNotFound    = errors.New("device not found")
	ErrDeviceDisabled    = errors.New("device disabled")
	ErrDeviceUnavailable = errors.New("device unavailable for sync")

	// Queue errors.
	ErrUnknownTable          = errors.New("unknown table")
	ErrRecordHasOpenConflict = errors.New("record has an unresolved conflict")
	ErrInvalidTransition     = errors.New("invalid queue item status transition")

	// Conflict errors.
	ErrConflictUnresolved      = errors.New("conflict unresolved")
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")
	ErrConflictExists          = errors.New("conflict already recorded for queue item")

	// Session errors.
	ErrSessionInProgress = errors.New("sync session already in progress")
	ErrSessionNotFound   = errors.New("sync session not found")
	ErrRoundInterrupted  = errors.New("sync round interrupted")

	// Cache errors.
	ErrStorageLimitExceeded = errors.New("device storage limit exceeded")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// QueueItemApplyError reports a runtime failure while applying a queued
// operation to the business repository.
type QueueItemApplyError struct {
	ItemID    string
	Operation string
	Err       error
}

func (e *QueueItemApplyError) Error() string {
	return fmt.Sprintf("apply %s for queue item %s: %v", e.Operation, e.ItemID, e.Err)
}

func (e *QueueItemApplyError) Unwrap() error {
	return e.Err
}
