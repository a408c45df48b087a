// Package deck is the synchronization engine of deck-sync. Service exposes
// account management, sync sessions, conflict resolution and attachment
// upload as asynchronous operations running on a worker pool; Handler and
// Feature publish them on the fiber control API.
//
// At most one session runs per account. A second request is rejected with
// errs.ErrSyncInProgress instead of being queued.
package deck
