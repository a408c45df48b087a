package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deck-sync/core/errs"
	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/conflict"
	"deck-sync/feature/deck/models"
	"deck-sync/feature/deck/session"

	"go.uber.org/zap"
)

// repo is the part of store.Repo used by the providers.
type repo[L any] interface {
	Kind() string
	Insert(ctx context.Context, row L) error
	Sync(ctx context.Context, row L, seen models.Stamp, pushed bool) error
	Purge(ctx context.Context, row L) error
}

// entitySync reconciles one collection of one entity type. The entity specific
// parts are plugged in as functions; everything else is shared.
type entitySync[L models.Syncable, R any] struct {
	env  *Env
	sess *session.Session
	name string
	repo repo[L]

	pullOnly bool

	// remoteKey and remoteID identify a remote record.
	remoteKey func(r R) string
	remoteID  func(r R) int64
	// localKey overrides the default identity (the remote id).
	localKey func(l L) (string, bool)
	modified func(r R) time.Time
	// snapshot renders a remote record in local terms (parent ids mapped to local ids).
	snapshot func(ctx context.Context, r R) (models.Snapshot, error)
	// build returns a new local row for a remote record, with the fields the
	// snapshot does not carry.
	build func(ctx context.Context, r R) (L, error)

	create func(ctx context.Context, l L) (R, error)
	update func(ctx context.Context, l L) (R, error)
	remove func(ctx context.Context, l L) error
	// pushSets brings the server's set relations from known to the local ones.
	pushSets func(ctx context.Context, l L, known models.Snapshot) error
}

func (e *entitySync[L, R]) Name() string { return e.name }

func (e *entitySync[L, R]) PullOnly() bool { return e.pullOnly }

func (e *entitySync[L, R]) LocalKey(l L) (string, bool) {
	if e.localKey != nil {
		return e.localKey(l)
	}
	return l.Base().RemoteKey()
}

func (e *entitySync[L, R]) LocalID(l L) int64 { return l.Base().LocalID }

func (e *entitySync[L, R]) LocalStatus(l L) reconcile.Status { return l.Base().Status }

func (e *entitySync[L, R]) RemoteKey(r R) string { return e.remoteKey(r) }

// run reconciles locals against remotes and records the result in the session.
func (e *entitySync[L, R]) run(ctx context.Context, locals []L, remotes []R, pushOnly bool) error {
	plan, outcome, err := reconcile.Run[L, R](ctx, e, locals, remotes, reconcile.Options{PushOnly: pushOnly})
	e.sess.Record(e.name, plan.Summary, outcome)
	if err != nil {
		return err
	}
	if len(plan.Actions) > 0 {
		e.sess.Logger().Debug("Reconciled",
			zap.String("entity", e.name),
			zap.Bool("push_only", pushOnly),
			zap.Int("actions", len(plan.Actions)),
			zap.Int("executed", outcome.Executed),
			zap.Int("item_errors", len(outcome.ItemErrors)),
		)
	}
	return nil
}

func (e *entitySync[L, R]) InsertLocal(ctx context.Context, r R) error {
	snap, err := e.snapshot(ctx, r)
	if err != nil {
		return err
	}
	row, err := e.build(ctx, r)
	if err != nil {
		return err
	}
	if err := row.Apply(snap); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRejected, err)
	}

	base := row.Base()
	base.AccountID = e.env.Account.ID
	if !e.pullOnly {
		base.SetRemoteID(e.remoteID(r))
	}
	base.Status = reconcile.StatusUpToDate
	base.MarkSynced(snap, e.modified(r))
	return e.repo.Insert(ctx, row)
}

func (e *entitySync[L, R]) PushCreate(ctx context.Context, l L) error {
	seen := l.Base().Stamp()
	r, err := e.create(ctx, l)
	if err != nil {
		return err
	}
	known, err := e.snapshot(ctx, r)
	if err != nil {
		return err
	}

	// Record the remote id before anything else can fail, so the record is
	// never created twice.
	base := l.Base()
	base.SetRemoteID(e.remoteID(r))
	base.MarkSynced(known, e.modified(r))
	if err := e.repo.Sync(ctx, l, seen, true); err != nil {
		if isNotFound(err) {
			// Removed locally while it was being created.
			if rerr := e.remove(ctx, l); rerr != nil && !isNotFound(rerr) {
				return rerr
			}
		}
		return err
	}

	// Fields the server ignores on creation, like the archive flag, follow as an update.
	if !sameFields(known, l.Snapshot()) {
		return e.push(ctx, l, known, seen, reconcile.TriggerPushSucceeded)
	}
	if e.pushSets != nil {
		if err := e.pushSets(ctx, l, known); err != nil {
			return err
		}
		known.Sets = l.Snapshot().Sets
	}
	return e.finish(ctx, l, known, r, seen, reconcile.TriggerPushSucceeded)
}

func sameFields(a, b models.Snapshot) bool {
	return models.Snapshot{Fields: a.Fields}.Equal(models.Snapshot{Fields: b.Fields})
}

func (e *entitySync[L, R]) PushUpdate(ctx context.Context, l L) error {
	known, _ := models.DecodeSnapshot(l.Base().Synced)
	return e.push(ctx, l, known, l.Base().Stamp(), reconcile.TriggerPushSucceeded)
}

// push sends an existing record. known is the server state as last seen.
func (e *entitySync[L, R]) push(ctx context.Context, l L, known models.Snapshot, seen models.Stamp, trigger reconcile.Trigger) error {
	r, err := e.update(ctx, l)
	if errors.Is(err, errs.ErrNotFound) {
		// Deleted on the server: the remote deletion wins over the local edit.
		if perr := e.repo.Purge(ctx, l); perr != nil && !errors.Is(perr, errs.ErrNotFound) {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}
	if e.pushSets != nil {
		if err := e.pushSets(ctx, l, known); err != nil {
			return err
		}
	}

	snap, err := e.snapshot(ctx, r)
	if err != nil {
		return err
	}
	if e.pushSets != nil {
		snap.Sets = l.Snapshot().Sets
	}
	return e.finish(ctx, l, snap, r, seen, trigger)
}

// finish stores the server's answer as the new local state and merge base.
func (e *entitySync[L, R]) finish(ctx context.Context, l L, snap models.Snapshot, r R, seen models.Stamp, trigger reconcile.Trigger) error {
	if err := l.Apply(snap); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRejected, err)
	}
	base := l.Base()
	if err := base.Transition(trigger); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
	}
	base.MarkSynced(snap, e.modified(r))
	return e.repo.Sync(ctx, l, seen, true)
}

func (e *entitySync[L, R]) PushDelete(ctx context.Context, l L) error {
	if err := e.remove(ctx, l); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return e.DeleteLocal(ctx, l)
}

func (e *entitySync[L, R]) DeleteLocal(ctx context.Context, l L) error {
	if err := e.repo.Purge(ctx, l); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

func (e *entitySync[L, R]) Resolve(ctx context.Context, l L, r R) error {
	remoteSnap, err := e.snapshot(ctx, r)
	if err != nil {
		return err
	}
	base := l.Base()
	seen := base.Stamp()
	synced, hasBase := models.DecodeSnapshot(base.Synced)
	out := conflict.Resolve(base.Status, synced, hasBase, l.Snapshot(), remoteSnap)

	switch out.Decision {
	case conflict.NoOp:
		return nil

	case conflict.PullRemote:
		if err := l.Apply(out.Merged); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		trigger := reconcile.TriggerRemoteChanged
		if base.Status.Pending() {
			trigger = reconcile.TriggerPushMerged
		}
		if err := base.Transition(trigger); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
		}
		base.MarkSynced(out.Merged, e.modified(r))
		return e.repo.Sync(ctx, l, seen, false)

	case conflict.PushLocal:
		return e.push(ctx, l, remoteSnap, seen, reconcile.TriggerPushSucceeded)

	case conflict.PushMerged:
		if err := l.Apply(out.Merged); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		return e.push(ctx, l, remoteSnap, seen, reconcile.TriggerPushMerged)

	case conflict.Conflict:
		if err := l.Apply(out.Merged); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		if err := base.Transition(reconcile.TriggerDoubleEdit); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrPrecondition, err)
		}
		// The remote state becomes the base, so keeping the local value later
		// pushes it instead of conflicting again.
		base.MarkSynced(remoteSnap, e.modified(r))
		if err := e.repo.Sync(ctx, l, seen, false); err != nil {
			return err
		}

		rows := make([]models.Conflict, 0, len(out.Conflicts))
		for _, f := range out.Conflicts {
			rows = append(rows, models.Conflict{
				AccountID:   base.AccountID,
				Field:       f.Name,
				LocalValue:  f.Local,
				RemoteValue: f.Remote,
			})
		}
		if err := e.env.Store.ReplaceConflicts(ctx, e.repo.Kind(), base.LocalID, rows); err != nil {
			return err
		}
		e.sess.AddConflict()
		e.sess.Logger().Info("Conflict detected",
			zap.String("entity", e.name),
			zap.Int64("local_id", base.LocalID),
			zap.Int("fields", len(rows)),
		)
		return nil
	}

	return fmt.Errorf("unknown decision %v", out.Decision)
}
