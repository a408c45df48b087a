package conflict

import (
	"testing"

	"deck-sync/core/reconcile"
	"deck-sync/feature/deck/models"

	"github.com/stretchr/testify/assert"
)

func snap(title, desc string, labels ...string) models.Snapshot {
	return models.Snapshot{
		Fields: map[string]string{"title": title, "description": desc},
		Sets:   map[string][]string{models.SetLabels: labels},
	}
}

func TestResolve(t *testing.T) {
	base := snap("a", "d", "1")

	tests := []struct {
		name      string
		status    reconcile.Status
		hasBase   bool
		local     models.Snapshot
		remote    models.Snapshot
		decision  Decision
		merged    models.Snapshot
		conflicts []string
	}{
		{
			name: "UpToDateUnchanged", status: reconcile.StatusUpToDate, hasBase: true,
			local: base, remote: base, decision: NoOp, merged: base,
		},
		{
			name: "UpToDateRemoteChanged", status: reconcile.StatusUpToDate, hasBase: true,
			local: base, remote: snap("b", "d", "1", "2"), decision: PullRemote, merged: snap("b", "d", "1", "2"),
		},
		{
			name: "UpToDateWithoutBase", status: reconcile.StatusUpToDate,
			local: base, remote: base, decision: PullRemote, merged: base,
		},
		{
			name: "EditedRemoteUnchanged", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("mine", "d", "1"), remote: base, decision: PushLocal, merged: snap("mine", "d", "1"),
		},
		{
			name: "EditedToRemoteValue", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("same", "d", "1"), remote: snap("same", "d", "1"), decision: PullRemote, merged: snap("same", "d", "1"),
		},
		{
			name: "DifferentFieldsMerge", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("mine", "d", "1"), remote: snap("a", "theirs", "1"),
			decision: PushMerged, merged: snap("mine", "theirs", "1"),
		},
		{
			name: "SameFieldConflicts", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("mine", "d", "1"), remote: snap("theirs", "d", "1"),
			decision: Conflict, merged: snap("mine", "d", "1"), conflicts: []string{"title"},
		},
		{
			name: "MovedCardKeepsRemoteEdit", status: reconcile.StatusLocalMoved, hasBase: true,
			local: snap("a", "d", "1"), remote: snap("a", "theirs", "1"),
			decision: PullRemote, merged: snap("a", "theirs", "1"),
		},
		{
			name: "SetsEditedOnBothSidesUnion", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("a", "d", "1", "2"), remote: snap("a", "d", "3"),
			decision: PushMerged, merged: snap("a", "d", "1", "2", "3"),
		},
		{
			name: "SetEditedRemotelyOnly", status: reconcile.StatusLocalEdited, hasBase: true,
			local: snap("mine", "d", "1"), remote: snap("a", "d"),
			decision: PushMerged, merged: snap("mine", "d"),
		},
		{
			name: "ConflictStatusIsLeftAlone", status: reconcile.StatusConflict, hasBase: true,
			local: snap("mine", "d", "1"), remote: snap("theirs", "d", "1"), decision: NoOp, merged: snap("mine", "d", "1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.status, base, tt.hasBase, tt.local, tt.remote)

			assert.Equal(t, tt.decision, got.Decision, got.Decision.String())
			assert.True(t, tt.merged.Equal(got.Merged), "merged %+v", got.Merged)

			var names []string
			for _, f := range got.Conflicts {
				names = append(names, f.Name)
			}
			assert.Equal(t, tt.conflicts, names)
		})
	}
}

func TestConflictKeepsBothValues(t *testing.T) {
	base := models.Snapshot{Fields: map[string]string{"title": "a"}}
	got := Resolve(reconcile.StatusLocalEdited, base, true,
		models.Snapshot{Fields: map[string]string{"title": "mine"}},
		models.Snapshot{Fields: map[string]string{"title": "theirs"}},
	)

	assert.Equal(t, Conflict, got.Decision)
	assert.Equal(t, []Field{{Name: "title", Local: "mine", Remote: "theirs"}}, got.Conflicts)
}
