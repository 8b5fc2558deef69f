package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracelab/opexec/pkg/batch"
	"github.com/tracelab/opexec/pkg/operation"
)

// runPlan executes a grouped, reference-checked plan against one unit of
// work. It stops at the first failure; the caller decides the fate of the
// unit of work. Results come back indexed by original submission position.
func (e *Engine) runPlan(ctx context.Context, uow operation.UnitOfWork, plan *batch.Plan, table *batch.RefTable) ([]operation.Result, error) {
	results := make([]operation.Result, plan.Size)

	for _, sb := range plan.SubBatches {
		handler, err := e.registry.Handler(sb.Kind)
		if err != nil {
			first := sb.Ops[0]
			return nil, &operation.ValidationError{
				Index:   first.Index,
				Kind:    sb.Kind,
				Message: fmt.Sprintf("unknown operation kind %q", sb.Kind),
			}
		}

		for _, po := range sb.Ops {
			if err := ctx.Err(); err != nil {
				return nil, &operation.HandlerError{Index: po.Index, Kind: sb.Kind, Err: err}
			}

			refs, err := table.For(po.Op)
			if err != nil {
				return nil, &operation.HandlerError{Index: po.Index, Kind: sb.Kind, Err: err}
			}

			res, err := handler.Handle(ctx, uow, po.Op, refs)
			if err != nil {
				return nil, classify(po.Index, sb.Kind, err)
			}
			if res.Kind == "" {
				res.Kind = sb.Kind
			}

			if minter, ok := po.Op.(operation.TokenMinter); ok {
				table.Bind(minter.CreationToken(), res.ObjectID)
			}
			results[po.Index] = res
		}
	}
	return results, nil
}

// classify stamps the failing operation's position onto handler errors while
// keeping the error's category intact.
func classify(index int, kind operation.Kind, err error) error {
	var ve *operation.ValidationError
	if errors.As(err, &ve) {
		return &operation.ValidationError{Index: index, Kind: kind, Message: ve.Message}
	}
	var ae *operation.AuthorizationError
	if errors.As(err, &ae) {
		return &operation.AuthorizationError{Index: index, Kind: kind, Message: ae.Message}
	}
	return &operation.HandlerError{Index: index, Kind: kind, Err: err}
}

// markRollbackOnly poisons the unit of work when it supports it, so a later
// commit by the caller cannot persist partial effects.
func markRollbackOnly(uow operation.UnitOfWork) {
	if m, ok := uow.(operation.RollbackOnlyMarker); ok {
		m.MarkRollbackOnly()
	}
}
