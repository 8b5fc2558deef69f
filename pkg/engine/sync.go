package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tracelab/opexec/pkg/batch"
	"github.com/tracelab/opexec/pkg/operation"
)

// ExecuteSynchronous runs a batch inside the caller's unit of work and
// returns the results in submission order. The engine never commits uow; on
// the first failure it marks uow rollback-only and returns the failure, so
// the caller's eventual commit cannot persist partial effects.
//
// When opts.ExecutionID is set the execution is additionally tracked in the
// execution store, and reusing an existing id rejects the batch with a
// conflict before any work happens.
func (e *Engine) ExecuteSynchronous(ctx context.Context, uow operation.UnitOfWork, ops []operation.Operation, opts Options) ([]operation.Result, error) {
	tracked := opts.ExecutionID != ""
	if tracked {
		if err := e.createRecord(ctx, opts.ExecutionID, ops, opts); err != nil {
			return nil, err
		}
	}

	plan := batch.Group(ops)
	table, err := batch.Resolve(plan)
	if err != nil {
		markRollbackOnly(uow)
		if tracked {
			e.failRecord(ctx, opts.ExecutionID, err)
		}
		return nil, err
	}

	if tracked {
		if err := e.store.MarkInProgress(ctx, opts.ExecutionID, e.now()); err != nil {
			e.log.Warn("mark execution in progress failed", zap.String("execution_id", opts.ExecutionID), zap.Error(err))
		}
	}

	results, err := e.runPlan(ctx, uow, plan, table)
	if err != nil {
		markRollbackOnly(uow)
		if tracked {
			e.failRecord(ctx, opts.ExecutionID, err)
		}
		return nil, err
	}

	if tracked {
		e.finishRecord(ctx, opts.ExecutionID, results)
	}
	return results, nil
}

// ExecuteInOwnUnitOfWork is ExecuteSynchronous for callers without an open
// unit of work: it begins one from the engine's factory, commits it on
// success and rolls it back on failure.
func (e *Engine) ExecuteInOwnUnitOfWork(ctx context.Context, ops []operation.Operation, opts Options) ([]operation.Result, error) {
	if e.uow == nil {
		return nil, errors.New("no unit-of-work factory configured")
	}
	uow, err := e.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}

	results, err := e.ExecuteSynchronous(ctx, uow, ops, opts)
	if err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			e.log.Warn("rollback unit of work failed", zap.Error(rbErr))
		}
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("commit unit of work: %w", err)
	}
	return results, nil
}
