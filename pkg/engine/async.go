package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tracelab/opexec/pkg/batch"
	"github.com/tracelab/opexec/pkg/operation"
)

// ErrAsyncDisabled is returned when the engine was built without a
// unit-of-work factory.
var ErrAsyncDisabled = errors.New("asynchronous execution is not configured")

// ExecuteAsynchronous validates and enqueues a batch as a durable execution
// and returns its id immediately. The batch runs in its own unit of work;
// progress and outcome are observed through the execution store.
//
// Batches that can never execute (unknown kinds are caught later; unresolvable
// or circular references here) are rejected at submission, leaving a FAILED
// record behind for the returned id.
func (e *Engine) ExecuteAsynchronous(ctx context.Context, ops []operation.Operation, opts Options) (string, error) {
	if e.uow == nil {
		return "", ErrAsyncDisabled
	}

	id := opts.ExecutionID
	if id == "" {
		id = uuid.New().String()
	}

	if err := e.createRecord(ctx, id, ops, opts); err != nil {
		return "", err
	}

	plan := batch.Group(ops)
	if _, err := batch.Resolve(plan); err != nil {
		e.failRecord(ctx, id, err)
		return id, err
	}

	if err := e.store.MarkScheduled(ctx, id); err != nil {
		return id, fmt.Errorf("schedule execution: %w", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		shutdownErr := errors.New("engine is shutting down")
		e.failRecord(ctx, id, shutdownErr)
		return id, shutdownErr
	}
	jobs := e.jobs
	e.mu.Unlock()

	select {
	case jobs <- asyncJob{id: id, ops: ops}:
		return id, nil
	case <-ctx.Done():
		// The caller's context is already cancelled; finalize the record on
		// a detached context so it does not strand in SCHEDULED.
		e.failRecord(context.WithoutCancel(ctx), id, ctx.Err())
		return id, fmt.Errorf("enqueue execution: %w", ctx.Err())
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for job := range e.jobs {
		e.runAsync(job)
	}
}

// runAsync executes one scheduled batch in a fresh unit of work.
func (e *Engine) runAsync(job asyncJob) {
	ctx := context.Background()
	log := e.log.With(zap.String("execution_id", job.id))

	if err := e.store.MarkInProgress(ctx, job.id, e.now()); err != nil {
		log.Error("mark execution in progress failed", zap.Error(err))
		return
	}

	uow, err := e.uow.Begin(ctx)
	if err != nil {
		e.failRecord(ctx, job.id, fmt.Errorf("begin unit of work: %w", err))
		log.Error("begin unit of work failed", zap.Error(err))
		return
	}

	plan := batch.Group(job.ops)
	table, err := batch.Resolve(plan)
	if err == nil {
		var results []operation.Result
		results, err = e.runPlan(ctx, uow, plan, table)
		if err == nil {
			if commitErr := uow.Commit(); commitErr != nil {
				err = fmt.Errorf("commit unit of work: %w", commitErr)
			} else {
				e.finishRecord(ctx, job.id, results)
				log.Info("execution finished", zap.Int("operations", plan.Size))
				return
			}
		}
	}

	if rbErr := uow.Rollback(); rbErr != nil {
		log.Warn("rollback unit of work failed", zap.Error(rbErr))
	}
	e.failRecord(ctx, job.id, err)
	log.Info("execution failed", zap.Error(err))
}
