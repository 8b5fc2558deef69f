package batch

import (
	"sort"

	"github.com/tracelab/opexec/pkg/operation"
)

// Group splits a batch into homogeneous sub-batches without touching the
// input slice. Sub-batches are ordered by verb phase (create, update,
// delete); within a phase, kinds appear in the order they were first seen.
func Group(ops []operation.Operation) *Plan {
	byKind := make(map[operation.Kind][]PlannedOp)
	firstSeen := make(map[operation.Kind]int)
	order := make([]operation.Kind, 0, len(ops))

	for i, op := range ops {
		kind := op.OperationKind()
		if _, seen := byKind[kind]; !seen {
			firstSeen[kind] = i
			order = append(order, kind)
		}
		byKind[kind] = append(byKind[kind], PlannedOp{Index: i, Op: op})
	}

	sort.SliceStable(order, func(i, j int) bool {
		pi, pj := order[i].Verb().Phase(), order[j].Verb().Phase()
		if pi != pj {
			return pi < pj
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	plan := &Plan{Size: len(ops), SubBatches: make([]SubBatch, 0, len(order))}
	for _, kind := range order {
		plan.SubBatches = append(plan.SubBatches, SubBatch{Kind: kind, Ops: byKind[kind]})
	}
	return plan
}
