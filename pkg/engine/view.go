package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/execstore"
)

// Execution is the caller-facing view of one tracked execution: the record
// with whatever facets are still available, plus the detail document while
// the details facet lives.
type Execution struct {
	Record  *execstore.Record     `json:"record"`
	Details *detailstore.Document `json:"details,omitempty"`
}

// GetExecution fetches one execution. Expired facets simply come back empty;
// looking at an execution never changes what remains of it. A purged or
// never-known id yields execstore.ErrNotFound.
//
// A facet in TIME_OUT_PENDING still serves its content; it only disappears
// once the purge sweep has nulled it. The purge clears DetailsRef, so the
// reference doubles as the visibility guard.
func (e *Engine) GetExecution(ctx context.Context, id string) (*Execution, error) {
	rec, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Execution{Record: rec}

	if rec.DetailsRef != "" {
		doc, err := e.details.Get(ctx, rec.DetailsRef)
		if err != nil && !errors.Is(err, detailstore.ErrNotFound) {
			return nil, fmt.Errorf("load execution details: %w", err)
		}
		out.Details = doc
	}
	return out, nil
}

// ListExecutions lists execution records, oldest first. An empty owner lists
// everything.
func (e *Engine) ListExecutions(ctx context.Context, owner string) ([]*execstore.Record, error) {
	return e.store.List(ctx, owner)
}
