package batch

import (
	"fmt"

	"github.com/tracelab/opexec/pkg/operation"
)

// Resolve validates every symbolic cross-reference in a grouped plan. It
// fails before any handler runs when a reference can never be satisfied:
// a token no create in the batch mints, a token minted twice, a reference to
// a token whose create executes later, or a reference cycle.
//
// Objects referenced by their stable natural identifier need no entry here;
// identifiers are looked up fresh at execution time by the handlers.
func Resolve(plan *Plan) (*RefTable, error) {
	ordered := plan.Ordered()

	// Execution position and minting create per token.
	execPos := make(map[operation.TokenRef]int)
	mintIndex := make(map[operation.TokenRef]int)
	for pos, po := range ordered {
		minter, ok := po.Op.(operation.TokenMinter)
		if !ok {
			continue
		}
		token := minter.CreationToken()
		if token == "" {
			continue
		}
		if prev, dup := mintIndex[token]; dup {
			return nil, &operation.ValidationError{
				Index:   po.Index,
				Kind:    po.Op.OperationKind(),
				Message: fmt.Sprintf("creation token %q already used by operation %d", token, prev),
			}
		}
		mintIndex[token] = po.Index
		execPos[token] = pos
	}

	if err := checkCycles(ordered, mintIndex); err != nil {
		return nil, err
	}

	for pos, po := range ordered {
		ref, ok := po.Op.(operation.Referencer)
		if !ok {
			continue
		}
		for _, token := range ref.References() {
			mintPos, minted := execPos[token]
			if !minted {
				return nil, &operation.ValidationError{
					Index:   po.Index,
					Kind:    po.Op.OperationKind(),
					Message: fmt.Sprintf("creation token %q is never created in this batch", token),
				}
			}
			if mintPos >= pos {
				return nil, &operation.ValidationError{
					Index: po.Index,
					Kind:  po.Op.OperationKind(),
					Message: fmt.Sprintf("creation token %q is created by operation %d, which executes later in the batch",
						token, mintIndex[token]),
				}
			}
		}
	}

	return newRefTable(), nil
}

// checkCycles walks the token-reference graph between operations. A cycle
// always also manifests as a forward reference, but reporting it as a cycle
// tells the caller reordering cannot fix the batch.
func checkCycles(ordered []PlannedOp, mintIndex map[operation.TokenRef]int) error {
	// edges: original index of referencing op -> original indexes it depends on
	edges := make(map[int][]int)
	byIndex := make(map[int]PlannedOp)
	for _, po := range ordered {
		byIndex[po.Index] = po
		ref, ok := po.Op.(operation.Referencer)
		if !ok {
			continue
		}
		for _, token := range ref.References() {
			if mint, minted := mintIndex[token]; minted {
				edges[po.Index] = append(edges[po.Index], mint)
			}
		}
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[int]int, len(byIndex))

	var visit func(idx int) error
	visit = func(idx int) error {
		color[idx] = grey
		for _, dep := range edges[idx] {
			switch color[dep] {
			case grey:
				po := byIndex[idx]
				return &operation.ValidationError{
					Index:   po.Index,
					Kind:    po.Op.OperationKind(),
					Message: fmt.Sprintf("circular reference between operations %d and %d", idx, dep),
				}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[idx] = black
		return nil
	}

	for _, po := range ordered {
		if color[po.Index] == white {
			if err := visit(po.Index); err != nil {
				return err
			}
		}
	}
	return nil
}

// RefTable collects the identifiers minted by executed creates and hands each
// operation the subset of tokens it references.
type RefTable struct {
	ids map[operation.TokenRef]string
}

func newRefTable() *RefTable {
	return &RefTable{ids: make(map[operation.TokenRef]string)}
}

// Bind records the persistent identifier produced for a creation token.
func (t *RefTable) Bind(token operation.TokenRef, id string) {
	if token == "" {
		return
	}
	t.ids[token] = id
}

// For returns the resolved references an operation needs. After a successful
// Resolve pass every referenced token is guaranteed to be bound by the time
// the operation executes.
func (t *RefTable) For(op operation.Operation) (operation.ResolvedRefs, error) {
	ref, ok := op.(operation.Referencer)
	if !ok {
		return nil, nil
	}

	refs := make(operation.ResolvedRefs)
	for _, token := range ref.References() {
		id, bound := t.ids[token]
		if !bound {
			return nil, fmt.Errorf("creation token %q has no bound identifier", token)
		}
		refs[token] = id
	}
	return refs, nil
}
