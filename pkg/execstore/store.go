package execstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for execution ids with no (remaining) record.
	ErrNotFound = errors.New("execution not found")

	// ErrConflict is returned by Create when the execution id is already in
	// use anywhere in the store.
	ErrConflict = errors.New("execution id already in use")

	// ErrBadTransition is returned for state or availability writes that
	// would move a record backwards in its one-way progression.
	ErrBadTransition = errors.New("illegal state transition")
)

// Store is the durable key-value store of execution records.
//
// Implementations must make Create an atomic check-and-insert: two
// submissions racing on the same id must not both succeed. All other writes
// are per-record atomic updates; the runner (terminal state, content) and the
// sweeper (availability facets, deletion) touch disjoint fields, so no
// coordination beyond that is required. Reads never mutate availability.
type Store interface {
	// Create inserts a NEW record, failing with ErrConflict when the id is
	// already present.
	Create(ctx context.Context, rec *Record) error

	// Get returns a copy of the record, or ErrNotFound once it was purged.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records sorted by creation time, oldest first. A
	// non-empty owner restricts the listing to that owner's records. Purged
	// records never appear.
	List(ctx context.Context, owner string) ([]*Record, error)

	// MarkScheduled moves NEW to SCHEDULED.
	MarkScheduled(ctx context.Context, id string) error

	// MarkInProgress moves to IN_PROGRESS and stamps the start time.
	MarkInProgress(ctx context.Context, id string, now time.Time) error

	// MarkFinished finalizes the record as FINISHED, stores the per-operation
	// result messages and the details reference, and starts the facet clocks.
	MarkFinished(ctx context.Context, id string, results []string, detailsRef string, now time.Time) error

	// MarkFailed finalizes the record as FAILED with the failure message and
	// starts the facet clocks.
	MarkFailed(ctx context.Context, id string, errMsg string, detailsRef string, now time.Time) error

	// SetAvailability advances one facet. Moving to TimedOut nulls the
	// facet's content (summary fields or details reference); the record facet
	// is never set to TimedOut; the whole record is deleted instead.
	SetAvailability(ctx context.Context, id string, facet FacetKind, next Availability) error

	// Delete removes the record outright.
	Delete(ctx context.Context, id string) error

	// DueTimeOutPending returns records having at least one facet that is
	// AVAILABLE with an elapsed, started clock.
	DueTimeOutPending(ctx context.Context, now time.Time) ([]*Record, error)

	// DuePurge returns records having at least one facet in TIME_OUT_PENDING.
	DuePurge(ctx context.Context) ([]*Record, error)
}
