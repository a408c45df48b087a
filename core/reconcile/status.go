package reconcile

import (
	"errors"
	"fmt"
)

// Status is the synchronization state of a local row.
type Status string

const (
	StatusUpToDate     Status = "UP_TO_DATE"
	StatusLocalEdited  Status = "LOCAL_EDITED"
	StatusLocalDeleted Status = "LOCAL_DELETED"
	StatusLocalMoved   Status = "LOCAL_MOVED"
	StatusConflict     Status = "CONFLICT"
)

// Trigger is an event that may change a row's status.
type Trigger string

const (
	TriggerLocalEdit     Trigger = "local_edit"
	TriggerLocalMove     Trigger = "local_move"
	TriggerLocalDelete   Trigger = "local_delete"
	TriggerRemoteChanged Trigger = "remote_changed"
	TriggerPushSucceeded Trigger = "push_succeeded"
	TriggerPushMerged    Trigger = "push_merged"
	TriggerDoubleEdit    Trigger = "double_edit"
	TriggerKeepRemote    Trigger = "resolved_keep_remote"
	TriggerKeepLocal     Trigger = "resolved_keep_local"
)

// ErrInvalidTransition is returned when a trigger does not apply to a status.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the complete state machine. Anything not listed is rejected.
var transitions = map[Status]map[Trigger]Status{
	StatusUpToDate: {
		TriggerLocalEdit:     StatusLocalEdited,
		TriggerLocalMove:     StatusLocalMoved,
		TriggerLocalDelete:   StatusLocalDeleted,
		TriggerRemoteChanged: StatusUpToDate,
	},
	StatusLocalEdited: {
		TriggerLocalEdit:     StatusLocalEdited,
		TriggerLocalMove:     StatusLocalMoved,
		TriggerLocalDelete:   StatusLocalDeleted,
		TriggerPushSucceeded: StatusUpToDate,
		TriggerPushMerged:    StatusUpToDate,
		TriggerDoubleEdit:    StatusConflict,
	},
	StatusLocalMoved: {
		TriggerLocalEdit:     StatusLocalMoved,
		TriggerLocalMove:     StatusLocalMoved,
		TriggerLocalDelete:   StatusLocalDeleted,
		TriggerPushSucceeded: StatusUpToDate,
		TriggerPushMerged:    StatusUpToDate,
		TriggerDoubleEdit:    StatusConflict,
	},
	StatusLocalDeleted: {
		TriggerLocalDelete:   StatusLocalDeleted,
		TriggerRemoteChanged: StatusLocalDeleted,
		TriggerDoubleEdit:    StatusLocalDeleted,
	},
	StatusConflict: {
		TriggerLocalEdit:   StatusConflict,
		TriggerLocalMove:   StatusConflict,
		TriggerLocalDelete: StatusLocalDeleted,
		TriggerKeepRemote:  StatusUpToDate,
		TriggerKeepLocal:   StatusLocalEdited,
	},
}

// Transition returns the status reached from "from" when "t" happens.
func Transition(from Status, t Trigger) (Status, error) {
	next, ok := transitions[from][t]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, t, from)
	}
	return next, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Pending reports whether a row in this status carries local changes
// that automatic sync should push.
func (s Status) Pending() bool {
	return s == StatusLocalEdited || s == StatusLocalMoved || s == StatusLocalDeleted
}
