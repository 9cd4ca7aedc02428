// Package optimistic implements the optimistic-update engine: every
// mutation is applied to local state immediately, tracked as pending, and
// reverted with a compensating rollback if the backend rejects it.
//
// Each operation moves through an explicit state machine,
// Pending -> Committed or Pending -> RolledBack, with the rollback
// payload captured by the caller at dispatch time as a revert closure
// over the pre-mutation store value. The engine owns rollback for every
// operation shape, create included.
package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/wunjo/internal/apperr"
	"github.com/starford/wunjo/internal/backend"
	"github.com/starford/wunjo/internal/metrics"
)

// State of one optimistic operation.
type State int

const (
	StatePending State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Op names passed to the backend.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpBatch  = "batch"
)

type pendingOp struct {
	kind  string
	state State
}

// Engine tracks pending operations by entity id and drives the
// apply / confirm / commit-or-rollback cycle.
//
// Policy: a second mutation targeting an entity whose operation is still
// pending is rejected with apperr.ErrPending rather than queued or
// allowed to race the first operation's resolution.
type Engine struct {
	be     backend.Confirmer
	logger *slog.Logger
	ms     *metrics.Set

	mu      sync.Mutex
	pending map[string]*pendingOp
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(ms *metrics.Set) Option {
	return func(e *Engine) { e.ms = ms }
}

// New creates an engine confirming mutations against be.
func New(be backend.Confirmer, opts ...Option) *Engine {
	e := &Engine{
		be:      be,
		logger:  slog.Default(),
		pending: make(map[string]*pendingOp),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pending reports whether the entity currently has an unresolved
// operation. O(1); used by callers to render in-flight affordances.
func (e *Engine) Pending(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	op, ok := e.pending[id]
	return ok && op.state == StatePending
}

// PendingCount returns the number of unresolved operations.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Engine) begin(kind, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[id]; ok {
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrPending)
	}
	e.pending[id] = &pendingOp{kind: kind, state: StatePending}
	if e.ms != nil {
		e.ms.PendingOps.Inc()
	}
	return nil
}

func (e *Engine) resolve(id string, final State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if op, ok := e.pending[id]; ok {
		op.state = final
		delete(e.pending, id)
		if e.ms != nil {
			e.ms.PendingOps.Dec()
		}
	}
}

func (e *Engine) count(kind, op string, committed bool) {
	if e.ms == nil {
		return
	}
	outcome := "committed"
	if !committed {
		outcome = "rolled_back"
		e.ms.RollbacksTotal.WithLabelValues(kind).Inc()
	}
	e.ms.MutationsTotal.WithLabelValues(kind, op, outcome).Inc()
}

// run is the shared cycle for the single-entity operation shapes:
// mark pending, apply the local mutation, await backend confirmation,
// then commit or revert.
func (e *Engine) run(ctx context.Context, kind, op, id string, apply func() error, revert func()) error {
	if err := e.begin(kind, id); err != nil {
		return err
	}

	if err := apply(); err != nil {
		// Local apply never touched remote state; just clear pending.
		e.resolve(id, StateRolledBack)
		return err
	}

	if err := e.be.Confirm(ctx, kind, op, id); err != nil {
		revert()
		e.resolve(id, StateRolledBack)
		e.count(kind, op, false)
		e.logger.Warn("mutation rolled back",
			slog.String("kind", kind),
			slog.String("op", op),
			slog.String("id", id),
			slog.String("error", err.Error()))
		return fmt.Errorf("%s %s %s rejected: %w", op, kind, id, err)
	}

	e.resolve(id, StateCommitted)
	e.count(kind, op, true)
	return nil
}

// Create applies an optimistic insert. On backend rejection the engine
// invokes revert to remove the inserted entity again.
func (e *Engine) Create(ctx context.Context, kind, id string, apply func() error, revert func()) error {
	return e.run(ctx, kind, OpCreate, id, apply, revert)
}

// Update applies an optimistic field change. revert restores the
// pre-mutation value captured by the caller before dispatch.
func (e *Engine) Update(ctx context.Context, kind, id string, apply func() error, revert func()) error {
	return e.run(ctx, kind, OpUpdate, id, apply, revert)
}

// Delete applies an optimistic removal. revert restores the removed
// entity.
func (e *Engine) Delete(ctx context.Context, kind, id string, apply func() error, revert func()) error {
	return e.run(ctx, kind, OpDelete, id, apply, revert)
}

// BatchOp is one element of a batched mutation. Rollback granularity is
// per-op: every applied op's Revert runs if the batch is rejected.
type BatchOp struct {
	ID     string
	Apply  func() error
	Revert func()
}

// Batch applies a set of operations as one optimistic unit confirmed by a
// single backend call. If any entity in the batch is already pending the
// whole batch is rejected up front.
func (e *Engine) Batch(ctx context.Context, kind string, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}

	var begun []string
	for _, op := range ops {
		if err := e.begin(kind, op.ID); err != nil {
			for _, id := range begun {
				e.resolve(id, StateRolledBack)
			}
			return err
		}
		begun = append(begun, op.ID)
	}

	applied := 0
	var applyErr error
	for _, op := range ops {
		if err := op.Apply(); err != nil {
			applyErr = err
			break
		}
		applied++
	}
	if applyErr != nil {
		for i := applied - 1; i >= 0; i-- {
			ops[i].Revert()
		}
		for _, id := range begun {
			e.resolve(id, StateRolledBack)
		}
		return applyErr
	}

	if err := e.be.Confirm(ctx, kind, OpBatch, ops[0].ID); err != nil {
		for i := len(ops) - 1; i >= 0; i-- {
			ops[i].Revert()
		}
		for _, id := range begun {
			e.resolve(id, StateRolledBack)
		}
		e.count(kind, OpBatch, false)
		e.logger.Warn("batch rolled back",
			slog.String("kind", kind),
			slog.Int("ops", len(ops)),
			slog.String("error", err.Error()))
		return fmt.Errorf("batch %s rejected: %w", kind, err)
	}

	for _, id := range begun {
		e.resolve(id, StateCommitted)
	}
	e.count(kind, OpBatch, true)
	return nil
}
