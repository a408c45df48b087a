package reconcile

import (
	"context"
	"fmt"

	"deck-sync/core/errs"
)

// Run partitions, plans and applies in one go.
// It returns the plan, the outcome of applying it and the first fatal error.
func Run[L, R any](ctx context.Context, adapter Adapter[L, R], locals []L, remotes []R, opts Options) (*Plan[L, R], *Outcome, error) {
	plan := BuildPlan(adapter, Partition(adapter, locals, remotes), opts)
	outcome, err := ApplyPlan(ctx, adapter, plan, opts)
	return plan, outcome, err
}

// BuildPlan generates a summary and action plan from partition results.
// It does NOT execute actions; use ApplyPlan for that.
func BuildPlan[L, R any](adapter Adapter[L, R], results []Result[L, R], opts Options) *Plan[L, R] {
	plan := &Plan[L, R]{Results: results}
	plan.Summary.TotalItems = len(results)

	pullOnly := false
	if p, ok := any(adapter).(PullOnly); ok {
		pullOnly = p.PullOnly()
	}

	add := func(t ActionType, r Result[L, R], reason string) {
		plan.Actions = append(plan.Actions, Action[L, R]{
			Type:   t,
			Key:    r.Key,
			Reason: reason,
			Local:  r.Local,
			Remote: r.Remote,
		})
		switch t {
		case ActionInsertLocal:
			plan.Summary.Inserts++
		case ActionPushCreate:
			plan.Summary.Creates++
		case ActionPushUpdate:
			plan.Summary.Updates++
		case ActionPushDelete, ActionDeleteLocal:
			plan.Summary.Deletes++
		case ActionResolve:
			plan.Summary.Resolves++
		}
	}

	for _, r := range results {
		switch {
		case r.LocalPresent && r.RemotePresent:
			plan.Summary.Both++
			switch {
			case r.Status == StatusConflict:
				plan.Summary.Conflicts++
			case pullOnly:
				add(ActionResolve, r, "present on both sides")
			case r.Status == StatusLocalDeleted:
				add(ActionPushDelete, r, "deleted locally, delete wins over remote changes")
			default:
				add(ActionResolve, r, "present on both sides")
			}

		case r.LocalPresent:
			plan.Summary.LocalOnly++
			if pullOnly {
				plan.Summary.Skipped++
				continue
			}
			_, pushed := adapter.LocalKey(r.Local)
			switch r.Status {
			case StatusConflict:
				plan.Summary.Conflicts++
			case StatusLocalDeleted:
				if pushed {
					add(ActionPushDelete, r, "tombstone")
				} else {
					add(ActionDeleteLocal, r, "deleted before it was ever pushed")
				}
			case StatusLocalEdited, StatusLocalMoved:
				if pushed {
					add(ActionPushUpdate, r, "local changes")
				} else {
					add(ActionPushCreate, r, "created locally")
				}
			default:
				if !pushed || opts.PushOnly {
					plan.Summary.Skipped++
					continue
				}
				add(ActionDeleteLocal, r, "no longer listed remotely")
			}

		default:
			plan.Summary.RemoteOnly++
			if opts.PushOnly {
				plan.Summary.Skipped++
				continue
			}
			add(ActionInsertLocal, r, "created remotely")
		}
	}

	return plan
}

// ApplyPlan executes the actions in a plan, in order.
// A fatal error (see errs.IsFatal) stops execution and is returned; item errors
// are collected in the outcome and execution continues.
func ApplyPlan[L, R any](ctx context.Context, adapter Adapter[L, R], plan *Plan[L, R], opts Options) (*Outcome, error) {
	outcome := &Outcome{}
	if opts.DryRun || len(plan.Actions) == 0 {
		return outcome, nil
	}

	mutator, ok := any(adapter).(Mutator[L, R])
	if !ok {
		return outcome, fmt.Errorf("adapter %s does not implement Mutator interface", adapter.Name())
	}

	for _, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		var err error
		switch action.Type {
		case ActionInsertLocal:
			err = mutator.InsertLocal(ctx, action.Remote)
		case ActionPushCreate:
			err = mutator.PushCreate(ctx, action.Local)
		case ActionPushUpdate:
			err = mutator.PushUpdate(ctx, action.Local)
		case ActionPushDelete:
			err = mutator.PushDelete(ctx, action.Local)
		case ActionDeleteLocal:
			err = mutator.DeleteLocal(ctx, action.Local)
		case ActionResolve:
			err = mutator.Resolve(ctx, action.Local, action.Remote)
		default:
			err = fmt.Errorf("unknown action %q", action.Type)
		}

		if err == nil {
			outcome.Executed++
			continue
		}
		if errs.IsFatal(err) {
			return outcome, fmt.Errorf("%s %s %s: %w", adapter.Name(), action.Type, action.Key, err)
		}
		outcome.ItemErrors = append(outcome.ItemErrors, ItemError{
			Key:    adapter.Name() + "/" + action.Key,
			Action: action.Type,
			Err:    err,
		})
	}

	return outcome, nil
}
