// Package batch prepares a heterogeneous list of operations for execution:
// it groups operations into homogeneous sub-batches ordered by phase
// (creates, then updates, then deletes) and validates symbolic
// cross-references between them, all before any handler runs.
//
// Grouping is purely an execution-order optimization. The index recorded on
// every planned operation restores the caller's submission order in the
// result list, so the regrouping is invisible at the contract boundary.
package batch

import "github.com/tracelab/opexec/pkg/operation"

// PlannedOp pairs an operation with its position in the submitted batch.
type PlannedOp struct {
	// Index is the operation's zero-based position in the original batch.
	// results[Index] receives this operation's result.
	Index int
	Op    operation.Operation
}

// SubBatch is a run of operations of one kind, executed together. Operations
// inside a sub-batch keep their relative submission order.
type SubBatch struct {
	Kind operation.Kind
	Ops  []PlannedOp
}

// Plan is a grouped, reference-checked batch ready for execution.
type Plan struct {
	// SubBatches in execution order: create kinds first (in first-seen
	// order), then update kinds, then delete kinds.
	SubBatches []SubBatch

	// Size is the number of operations in the original batch.
	Size int
}

// Ordered returns the planned operations in execution order.
func (p *Plan) Ordered() []PlannedOp {
	out := make([]PlannedOp, 0, p.Size)
	for _, sb := range p.SubBatches {
		out = append(out, sb.Ops...)
	}
	return out
}
