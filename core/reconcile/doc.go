// Package reconcile provides the generic two-way reconciliation routine shared by
// every entity type: local rows from the on-device store against the records the
// remote server lists for the same parent.
//
// # Architecture
//
// The package consists of four parts:
//
// 1. Status: the per-row state machine (UP_TO_DATE, LOCAL_EDITED, LOCAL_MOVED,
// LOCAL_DELETED, CONFLICT). Transition is the only place statuses change.
//
// 2. Engine: Partition builds the union of keys from both sides and reports
// presence per key.
//
// 3. Plan: BuildPlan turns partition results into actions (insert locally,
// push create/update/delete, delete locally, resolve). Records in CONFLICT are
// never planned.
//
// 4. Adapter: entity-specific key extraction plus a Mutator that executes
// actions against the local store and the remote API.
//
// # Usage Example
//
//	plan, outcome, err := reconcile.Run(ctx, cardAdapter, localCards, remoteCards, reconcile.Options{})
//	if err != nil {
//	    // connectivity or store failure: abort the session
//	}
//	for _, itemErr := range outcome.ItemErrors {
//	    // rejected or vanished records, keep going
//	}
package reconcile
