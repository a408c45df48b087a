package reconcile

// Result represents the partition outcome for a single record key.
// It contains presence flags for each side and the records themselves.
type Result[L, R any] struct {
	// Key is the record identity shared by both sides.
	// Local records that never reached the server get a "local:<id>" key.
	Key string `json:"key"`

	// Local is the local row, valid when LocalPresent is true.
	Local L `json:"-"`

	// Remote is the remote record, valid when RemotePresent is true.
	Remote R `json:"-"`

	// LocalPresent indicates whether the record exists in the local store.
	LocalPresent bool `json:"local_present"`

	// RemotePresent indicates whether the record exists in the remote listing.
	RemotePresent bool `json:"remote_present"`

	// Status is the local status, empty for remote-only records.
	Status Status `json:"status,omitempty"`
}

// ActionType represents the type of mutation action.
type ActionType string

const (
	// ActionInsertLocal stores a remote-only record locally as UP_TO_DATE.
	ActionInsertLocal ActionType = "insert_local"
	// ActionPushCreate creates a local-only record on the server.
	ActionPushCreate ActionType = "push_create"
	// ActionPushUpdate sends local changes of a record the remote did not change.
	ActionPushUpdate ActionType = "push_update"
	// ActionPushDelete deletes a tombstoned record on the server.
	ActionPushDelete ActionType = "push_delete"
	// ActionDeleteLocal removes a local row without any remote call.
	ActionDeleteLocal ActionType = "delete_local"
	// ActionResolve hands a record present on both sides to the conflict resolver.
	ActionResolve ActionType = "resolve"
)

// Action represents a planned mutation operation.
type Action[L, R any] struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Key is the record identifier.
	Key string `json:"key"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`

	Local  L `json:"-"`
	Remote R `json:"-"`
}

// Plan contains partition results and planned actions.
type Plan[L, R any] struct {
	// Results contains per-record partition data.
	Results []Result[L, R] `json:"results"`

	// Actions contains planned mutation operations, in execution order.
	Actions []Action[L, R] `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a plan.
type PlanSummary struct {
	// TotalItems is the total number of unique record keys.
	TotalItems int `json:"total_items"`

	// RemoteOnly counts records only the server knows.
	RemoteOnly int `json:"remote_only"`

	// LocalOnly counts records only the local store knows.
	LocalOnly int `json:"local_only"`

	// Both counts records present on both sides.
	Both int `json:"both"`

	// Conflicts counts records skipped because they await manual resolution.
	Conflicts int `json:"conflicts"`

	// Skipped counts records that need no action.
	Skipped int `json:"skipped"`

	Inserts  int `json:"inserts"`
	Creates  int `json:"creates"`
	Updates  int `json:"updates"`
	Deletes  int `json:"deletes"`
	Resolves int `json:"resolves"`
}

// Options controls planning and application.
type Options struct {
	// PushOnly is set when the remote listing was not fetched because its ETag
	// still matched. Only local changes are considered and nothing is treated
	// as deleted remotely.
	PushOnly bool

	// DryRun prevents execution of any mutations if true.
	DryRun bool
}

// ItemError records a non-fatal failure for one record.
type ItemError struct {
	Key    string     `json:"key"`
	Action ActionType `json:"action"`
	Err    error      `json:"-"`
}

func (e ItemError) Error() string {
	return string(e.Action) + " " + e.Key + ": " + e.Err.Error()
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// Outcome is the result of applying a plan.
type Outcome struct {
	// Executed counts actions that completed without error.
	Executed int `json:"executed"`

	// ItemErrors lists the actions that failed with a non-fatal error.
	ItemErrors []ItemError `json:"item_errors"`
}
