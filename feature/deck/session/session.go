// Package session runs one synchronization pass for one account.
//
// A pass is a tree of steps walked depth-first: a step reconciles one entity
// collection and returns the steps for the children of the records it kept, so
// every parent is on the server before its children are pushed. Fatal errors
// stop the walk; item errors are collected and the walk goes on.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deck-sync/core/errs"
	"deck-sync/core/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle state of a session.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Step is one unit of the walk.
type Step interface {
	Name() string
	// Run does the step's work and returns the steps to run next, before any
	// sibling of this step. An error that is not fatal is recorded against the step.
	Run(ctx context.Context, s *Session) ([]Step, error)
}

// Func adapts a function to a Step without children.
func Func(name string, fn func(ctx context.Context, s *Session) error) Step {
	return funcStep{name: name, fn: fn}
}

type funcStep struct {
	name string
	fn   func(ctx context.Context, s *Session) error
}

func (f funcStep) Name() string { return f.name }

func (f funcStep) Run(ctx context.Context, s *Session) ([]Step, error) {
	return nil, f.fn(ctx, s)
}

// Report is the terminal result of a session.
type Report struct {
	ID        string                           `json:"id"`
	AccountID int64                            `json:"account_id"`
	State     State                            `json:"state"`
	Err       error                            `json:"-"`
	Error     string                           `json:"error,omitempty"`
	Items     []reconcile.ItemError            `json:"-"`
	ItemKeys  []string                         `json:"item_errors,omitempty"`
	Summary   map[string]reconcile.PlanSummary `json:"summary"`
	Conflicts int                              `json:"conflicts"`
	Steps     int                              `json:"steps"`
	Started   time.Time                        `json:"started"`
	Finished  time.Time                        `json:"finished"`
}

// HasConflicts reports whether the pass left records waiting for the user.
func (r *Report) HasConflicts() bool {
	return r.Conflicts > 0
}

// Session holds the state of one pass.
type Session struct {
	id        string
	accountID int64
	logger    *zap.Logger

	mu        sync.Mutex
	state     State
	items     []reconcile.ItemError
	summary   map[string]reconcile.PlanSummary
	conflicts int
	steps     int
}

// New creates a pending session.
func New(accountID int64, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		accountID: accountID,
		logger:    logger.With(zap.String("session", id), zap.Int64("account", accountID)),
		state:     StatePending,
		summary:   make(map[string]reconcile.PlanSummary),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) AccountID() int64    { return s.accountID }
func (s *Session) Logger() *zap.Logger { return s.logger }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Record adds the result of one reconciliation to the totals.
func (s *Session) Record(name string, sum reconcile.PlanSummary, out *reconcile.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.summary[name]
	total.TotalItems += sum.TotalItems
	total.RemoteOnly += sum.RemoteOnly
	total.LocalOnly += sum.LocalOnly
	total.Both += sum.Both
	total.Conflicts += sum.Conflicts
	total.Skipped += sum.Skipped
	total.Inserts += sum.Inserts
	total.Creates += sum.Creates
	total.Updates += sum.Updates
	total.Deletes += sum.Deletes
	total.Resolves += sum.Resolves
	s.summary[name] = total

	if out != nil {
		s.items = append(s.items, out.ItemErrors...)
	}
	if sum.Conflicts > 0 {
		s.conflicts += sum.Conflicts
	}
}

// AddItemError records a failure that only concerns one record.
func (s *Session) AddItemError(e reconcile.ItemError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
}

// AddConflict counts a record that escalated to CONFLICT during this pass.
func (s *Session) AddConflict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts++
}

// ItemErrorCount is used by steps to tell whether their subtree failed partially.
func (s *Session) ItemErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// ErrAlreadyRun is returned when Run is called twice on a session.
var ErrAlreadyRun = errors.New("session already run")

// Run walks the tree rooted at root and returns the report.
func (s *Session) Run(ctx context.Context, root Step) Report {
	started := time.Now()

	s.mu.Lock()
	if s.state != StatePending {
		s.mu.Unlock()
		return s.report(started, ErrAlreadyRun)
	}
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("Sync started", zap.String("root", root.Name()))
	err := s.walk(ctx, root)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateCompleted
	}
	s.mu.Unlock()

	r := s.report(started, err)
	fields := []zap.Field{
		zap.String("state", string(r.State)),
		zap.Int("steps", r.Steps),
		zap.Int("item_errors", len(r.Items)),
		zap.Int("conflicts", r.Conflicts),
		zap.Duration("duration", r.Finished.Sub(r.Started)),
	}
	if err != nil {
		s.logger.Warn("Sync failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("Sync finished", fields...)
	}
	return r
}

func (s *Session) walk(ctx context.Context, root Step) error {
	pending := []Step{root}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		step := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		s.mu.Lock()
		s.steps++
		s.mu.Unlock()

		children, err := step.Run(ctx, s)
		if err != nil {
			if errs.IsFatal(err) {
				return fmt.Errorf("%s: %w", step.Name(), err)
			}
			s.logger.Debug("Step failed", zap.String("step", step.Name()), zap.Error(err))
			s.AddItemError(reconcile.ItemError{Key: step.Name(), Err: err})
			continue
		}

		// Children run in order, before the remaining siblings.
		for i := len(children) - 1; i >= 0; i-- {
			pending = append(pending, children[i])
		}
	}
	return nil
}

func (s *Session) report(started time.Time, err error) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		ID:        s.id,
		AccountID: s.accountID,
		State:     s.state,
		Err:       err,
		Items:     append([]reconcile.ItemError(nil), s.items...),
		Summary:   make(map[string]reconcile.PlanSummary, len(s.summary)),
		Conflicts: s.conflicts,
		Steps:     s.steps,
		Started:   started,
		Finished:  time.Now(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	for k, v := range s.summary {
		r.Summary[k] = v
	}
	for _, item := range r.Items {
		r.ItemKeys = append(r.ItemKeys, item.Error())
	}
	return r
}
