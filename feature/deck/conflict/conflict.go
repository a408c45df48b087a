// Package conflict decides how a record present on both sides is reconciled.
//
// Resolve compares the local and remote snapshots against the merge base taken
// at the last successful sync. Scalar fields changed on one side take that side's
// value; fields changed on both sides to different values are conflicts. Set
// relations edited on both sides are merged by union.
package conflict

import (
	"sort"

	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"
)

// Decision is what the caller has to do with the record.
type Decision int

const (
	// NoOp means both sides already agree with the base.
	NoOp Decision = iota
	// PullRemote means the local row takes Merged (the remote state) without a network call.
	PullRemote
	// PushLocal means the local state is sent to the server unchanged.
	PushLocal
	// PushMerged means a merge of both sides is sent to the server.
	PushMerged
	// Conflict means at least one field was edited differently on both sides.
	Conflict
)

func (d Decision) String() string {
	switch d {
	case NoOp:
		return "noop"
	case PullRemote:
		return "pull"
	case PushLocal:
		return "push"
	case PushMerged:
		return "merge"
	case Conflict:
		return "conflict"
	}
	return "unknown"
}

// Field is one field edited differently on both sides.
type Field struct {
	Name   string
	Local  string
	Remote string
}

// Outcome is the result of Resolve.
type Outcome struct {
	Decision Decision
	// Merged is the state the local row should hold afterwards. For conflicts it
	// keeps the local value of every conflicting field.
	Merged models.Snapshot
	// Conflicts lists conflicting fields by name.
	Conflicts []Field
}

// Resolve reconciles one record. hasBase is false when no sync was recorded yet,
// in which case every difference counts as changed on both sides.
func Resolve(status reconcile.Status, base models.Snapshot, hasBase bool, local, remote models.Snapshot) Outcome {
	remoteChanged := !hasBase || !remote.Equal(base)

	switch status {
	case reconcile.StatusUpToDate:
		if !remoteChanged && local.Equal(remote) {
			return Outcome{Decision: NoOp, Merged: local}
		}
		return Outcome{Decision: PullRemote, Merged: remote}

	case reconcile.StatusLocalEdited, reconcile.StatusLocalMoved:
		if local.Equal(remote) {
			return Outcome{Decision: PullRemote, Merged: remote}
		}
		if !remoteChanged {
			return Outcome{Decision: PushLocal, Merged: local}
		}
		return merge(base, hasBase, local, remote)
	}

	// Conflicts wait for the user; tombstones are deleted by the caller.
	return Outcome{Decision: NoOp, Merged: local}
}

func merge(base models.Snapshot, hasBase bool, local, remote models.Snapshot) Outcome {
	merged := models.Snapshot{Fields: make(map[string]string)}
	var conflicts []Field

	for _, name := range keys(local.Fields, remote.Fields) {
		l, r := local.Fields[name], remote.Fields[name]
		b, inBase := base.Fields[name]
		known := hasBase && inBase

		switch {
		case l == r:
			merged.Fields[name] = l
		case known && l == b:
			merged.Fields[name] = r
		case known && r == b:
			merged.Fields[name] = l
		default:
			merged.Fields[name] = l
			conflicts = append(conflicts, Field{Name: name, Local: l, Remote: r})
		}
	}

	if len(local.Sets) > 0 || len(remote.Sets) > 0 {
		merged.Sets = make(map[string][]string)
		for _, name := range keys(local.Sets, remote.Sets) {
			l, r := local.Sets[name], remote.Sets[name]
			b, inBase := base.Sets[name]
			known := hasBase && (inBase || len(base.Sets) > 0)

			switch {
			case models.SameMembers(l, r):
				merged.Sets[name] = models.SortedSet(l)
			case known && models.SameMembers(l, b):
				merged.Sets[name] = models.SortedSet(r)
			case known && models.SameMembers(r, b):
				merged.Sets[name] = models.SortedSet(l)
			default:
				merged.Sets[name] = models.SortedSet(append(append([]string{}, l...), r...))
			}
		}
	}

	switch {
	case len(conflicts) > 0:
		return Outcome{Decision: Conflict, Merged: merged, Conflicts: conflicts}
	case merged.Equal(remote):
		return Outcome{Decision: PullRemote, Merged: merged}
	default:
		return Outcome{Decision: PushMerged, Merged: merged}
	}
}

func keys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
