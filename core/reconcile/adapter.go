package reconcile

import "context"

// Adapter defines the entity-specific knowledge the engine needs to partition
// local rows against a remote listing. Each entity type (board, stack, card, ...)
// provides one.
type Adapter[L, R any] interface {
	// Name returns the unique name of this adapter (e.g., "card", "label").
	Name() string

	// LocalKey returns the remote identity of a local row.
	// ok is false for rows that never reached the server.
	LocalKey(local L) (key string, ok bool)

	// LocalID returns the local primary key of a row.
	LocalID(local L) int64

	// LocalStatus returns the synchronization status of a row.
	LocalStatus(local L) Status

	// RemoteKey returns the identity of a remote record.
	// It must match LocalKey for the same record.
	RemoteKey(remote R) string
}

// Mutator executes planned actions. ApplyPlan requires the adapter to implement it.
// Errors matching errs.IsFatal abort the plan; item errors are collected.
type Mutator[L, R any] interface {
	InsertLocal(ctx context.Context, remote R) error
	PushCreate(ctx context.Context, local L) error
	PushUpdate(ctx context.Context, local L) error
	PushDelete(ctx context.Context, local L) error
	DeleteLocal(ctx context.Context, local L) error
	Resolve(ctx context.Context, local L, remote R) error
}

// PullOnly is implemented by adapters whose entity cannot be written remotely.
// Local-only rows of such adapters are left untouched.
type PullOnly interface {
	PullOnly() bool
}
