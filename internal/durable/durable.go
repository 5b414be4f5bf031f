// Package durable is a minimal durable-execution engine: each workflow
// instance runs as a sequence of named steps whose results are checkpointed
// in the store. Re-delivery of an instance after a crash replays completed
// steps from their memoized results instead of re-running their side effects.
package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"atelier/internal/logging"
)

// ErrCancelled is returned from a run that was cancelled between steps.
var ErrCancelled = errors.New("workflow cancelled")

// CheckpointStore persists memoized step results keyed by instance and step.
type CheckpointStore interface {
	LoadStep(ctx context.Context, instanceID, step string) (string, bool, error)
	SaveStep(ctx context.Context, instanceID, step, result string) error
}

// retry policy for transient step failures
const (
	maxStepAttempts  = 4
	initialStepDelay = time.Second
	maxStepDelay     = 8 * time.Second
)

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

// Fatal marks err as non-retriable: the step fails immediately and the whole
// run aborts into its failure handler.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries the non-retriable marker.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Engine schedules workflow runs and routes cancellation events to them.
type Engine struct {
	checkpoints CheckpointStore

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewEngine(checkpoints CheckpointStore) *Engine {
	return &Engine{
		checkpoints: checkpoints,
		active:      make(map[string]context.CancelFunc),
	}
}

// Cancel aborts the in-flight run with the given instance id. It reports
// whether a matching run was found. Cancellation is cooperative: the run
// stops at its next step boundary, a step already executing runs out.
func (e *Engine) Cancel(instanceID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[instanceID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Execute drives one workflow instance. The instance id doubles as the
// idempotency key for its checkpoints and as the cancellation handle.
func (e *Engine) Execute(ctx context.Context, instanceID string, fn func(ctx context.Context, r *Run) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.active[instanceID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.active, instanceID)
		e.mu.Unlock()
	}()

	err := fn(runCtx, &Run{engine: e, instanceID: instanceID})
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return ErrCancelled
	}
	return err
}

// Run is the handle a workflow uses to execute checkpointed steps.
type Run struct {
	engine     *Engine
	instanceID string
}

// InstanceID returns the workflow instance id.
func (r *Run) InstanceID() string {
	return r.instanceID
}

// Step executes fn under the named checkpoint. A previously completed step
// returns its memoized result without re-running fn. Transient failures are
// retried with exponential backoff; fatal and cancellation errors are not.
//
// Cancellation is observed only at the entry boundary and between retry
// attempts. An executing fn runs on a context shielded from the run's
// cancel signal, so a step already in flight always runs to completion and
// its result is checkpointed even when the run is cancelled meanwhile.
func Step[T any](ctx context.Context, r *Run, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	// cooperative cancellation boundary
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	stepCtx := context.WithoutCancel(ctx)

	cached, ok, err := r.engine.checkpoints.LoadStep(stepCtx, r.instanceID, name)
	if err != nil {
		return zero, err
	}
	if ok {
		var out T
		if err := json.Unmarshal([]byte(cached), &out); err != nil {
			return zero, fmt.Errorf("decode checkpoint %s/%s: %w", r.instanceID, name, err)
		}
		logging.DevLog("durable: step %s/%s replayed from checkpoint", r.instanceID, name)
		return out, nil
	}

	out, err := runWithRetry(ctx, stepCtx, r.instanceID, name, fn)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("encode checkpoint %s/%s: %w", r.instanceID, name, err)
	}
	if err := r.engine.checkpoints.SaveStep(stepCtx, r.instanceID, name, string(encoded)); err != nil {
		return zero, err
	}
	return out, nil
}

// runWithRetry drives fn on stepCtx, which never carries the run's cancel
// signal; ctx is consulted only between attempts and during backoff waits.
func runWithRetry[T any](ctx, stepCtx context.Context, instanceID, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := initialStepDelay
	var lastErr error
	for attempt := 1; attempt <= maxStepAttempts; attempt++ {
		out, err := fn(stepCtx)
		if err == nil {
			return out, nil
		}
		if IsFatal(err) || errors.Is(err, context.Canceled) {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		lastErr = err
		if attempt == maxStepAttempts {
			break
		}
		logging.ErrorLog("durable: step %s/%s failed (attempt %d/%d), retrying in %s: %v",
			instanceID, name, attempt, maxStepAttempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxStepDelay {
			delay = maxStepDelay
		}
	}
	return zero, fmt.Errorf("step %s exhausted %d attempts: %w", name, maxStepAttempts, lastErr)
}
