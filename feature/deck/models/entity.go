package models

import (
	"strconv"
	"time"

	"deck-sync/core/reconcile"
)

// Entity kinds, used for logging, change notifications and conflict records.
const (
	KindBoard      = "board"
	KindStack      = "stack"
	KindCard       = "card"
	KindLabel      = "label"
	KindUser       = "user"
	KindComment    = "comment"
	KindAttachment = "attachment"
)

// Entity holds the synchronization columns shared by every synchronizable table.
type Entity struct {
	// LocalID is assigned on local creation and never sent to the server.
	LocalID int64 `gorm:"column:local_id;primaryKey;autoIncrement" json:"local_id"`
	// RemoteID is set once the server accepted the record.
	RemoteID *int64 `gorm:"column:remote_id;index" json:"remote_id,omitempty"`
	// AccountID is the owning account, equal to the parent's.
	AccountID int64 `gorm:"column:account_id;index;not null" json:"account_id"`
	// Status drives what the next sync does with the row.
	Status reconcile.Status `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	// LastModifiedLocal is the time of the last local edit.
	LastModifiedLocal time.Time `gorm:"column:last_modified_local" json:"last_modified_local"`
	// LocalVersion counts local edits and deletes.
	LocalVersion int64 `gorm:"column:local_version;not null;default:0" json:"local_version"`
	// LastModifiedRemote is the server's modification time seen at the last sync.
	LastModifiedRemote time.Time `gorm:"column:last_modified_remote" json:"last_modified_remote"`
	// Synced is the encoded Snapshot from the last successful sync.
	Synced string `gorm:"column:synced;type:text" json:"-"`
}

// Base exposes the embedded synchronization columns.
func (e *Entity) Base() *Entity { return e }

// Transition moves the row to the status reached by t.
func (e *Entity) Transition(t reconcile.Trigger) error {
	next, err := reconcile.Transition(e.Status, t)
	if err != nil {
		return err
	}
	e.Status = next
	return nil
}

// Stamp identifies the local state of a row. Every local edit or delete
// changes it; synchronization writes do not.
type Stamp struct {
	Status  reconcile.Status
	Version int64
}

// Stamp returns the row's current stamp.
func (e *Entity) Stamp() Stamp {
	return Stamp{Status: e.Status, Version: e.LocalVersion}
}

// RemoteKey returns the remote id as engine key.
func (e *Entity) RemoteKey() (string, bool) {
	if e.RemoteID == nil {
		return "", false
	}
	return strconv.FormatInt(*e.RemoteID, 10), true
}

// SetRemoteID records the id assigned by the server.
func (e *Entity) SetRemoteID(id int64) {
	e.RemoteID = &id
}

// MarkSynced records the merge base after a successful exchange with the server.
func (e *Entity) MarkSynced(snap Snapshot, remoteModified time.Time) {
	e.Synced = snap.Encode()
	if !remoteModified.IsZero() {
		e.LastModifiedRemote = remoteModified.UTC()
	}
}

// Syncable is implemented by every synchronizable model.
type Syncable interface {
	Base() *Entity
	Kind() string
	// Snapshot renders the synchronized fields.
	Snapshot() Snapshot
	// Apply sets the synchronized fields from a snapshot.
	Apply(Snapshot) error
}

// Child is implemented by models stored under a parent row: it returns the
// parent's table and local id.
type Child interface {
	Parent() (table string, localID int64)
}
