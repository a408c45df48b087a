// Package errs holds the sentinel errors shared by every layer of the sync engine.
//
// Callers wrap them with fmt.Errorf("...: %w", err) and match with errors.Is.
// The session uses IsFatal to decide whether an error aborts the whole pass or is
// recorded against a single item.
package errs

import (
	"context"
	"errors"
)

var (
	// ErrOffline is returned when the remote server cannot be reached.
	ErrOffline = errors.New("remote unreachable")
	// ErrUnauthorized is returned when the server refuses the account credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMaintenance is returned when the server reports maintenance mode.
	ErrMaintenance = errors.New("server in maintenance mode")
	// ErrNotFound is returned when a record does not exist, locally or remotely.
	ErrNotFound = errors.New("not found")
	// ErrRejected is returned when the server refuses a single item (validation, permission).
	ErrRejected = errors.New("rejected by remote")
	// ErrPrecondition is returned when a request references rows that do not exist
	// or are not usable (for example a tombstoned parent).
	ErrPrecondition = errors.New("precondition failed")
	// ErrSyncInProgress is returned when the account already has a running session.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrStale is returned when a row was edited or deleted locally while a sync
	// step was talking to the server about it. The next sync picks up the change.
	ErrStale = errors.New("changed locally during sync")
)

// IsItemError reports whether err only concerns the item being processed.
func IsItemError(err error) bool {
	return errors.Is(err, ErrRejected) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrStale)
}

// IsFatal reports whether err must abort the running session.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return !IsItemError(err)
}
