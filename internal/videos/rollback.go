package videos

import (
	"context"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/logging"
)

// Rollback collects compensating actions and runs them newest first.
type Rollback struct {
	mu      sync.Mutex
	steps   []rollbackStep
	timeout time.Duration
}

type rollbackStep struct {
	name string
	undo func(ctx context.Context) error
}

// NewRollback returns an empty Rollback whose actions share a budget of timeout.
func NewRollback(timeout time.Duration) *Rollback {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Rollback{timeout: timeout}
}

// Push registers undo to run if the workflow is abandoned.
func (r *Rollback) Push(name string, undo func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, rollbackStep{name: name, undo: undo})
}

// Len reports how many actions are pending.
func (r *Rollback) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// Discard drops every pending action.
func (r *Rollback) Discard() {
	r.mu.Lock()
	r.steps = nil
	r.mu.Unlock()
}

// Run executes pending actions in reverse registration order and clears them, so
// a second call is a no-op. ctx only contributes its values: the actions run on
// a context that survives the caller's cancellation. Failures are logged and
// the remaining actions still run.
func (r *Rollback) Run(ctx context.Context) int {
	r.mu.Lock()
	steps := r.steps
	r.steps = nil
	r.mu.Unlock()

	if len(steps) == 0 {
		return 0
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	logger := logging.FromContext(ctx)
	failed := 0
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.undo(runCtx); err != nil {
			failed++
			logger.Error("rollback step failed", "step", step.name, "error", err)
			continue
		}
		logger.Debug("rollback step completed", "step", step.name)
	}
	return failed
}
