// Package engine executes heterogeneous operation batches: synchronously in
// the caller's unit of work, or asynchronously as durable executions that run
// in their own unit of work and are polled through the execution store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/operation"
)

// Config sizes the engine.
type Config struct {
	// Workers is the number of goroutines draining the asynchronous queue.
	Workers int

	// QueueDepth is the capacity of the asynchronous queue. Submissions
	// block once the queue is full.
	QueueDepth int

	// Availability clamps caller-requested availability windows.
	Availability execstore.AvailabilityConfig
}

const (
	defaultWorkers    = 2
	defaultQueueDepth = 64
)

// Engine wires the operation registry, the execution record store, the
// detail store and the unit-of-work factory together.
type Engine struct {
	registry *operation.Registry
	store    execstore.Store
	details  detailstore.Store
	uow      operation.UnitOfWorkFactory

	availability execstore.AvailabilityConfig
	log          *zap.Logger
	now          func() time.Time

	mu     sync.Mutex
	jobs   chan asyncJob
	closed bool
	wg     sync.WaitGroup
}

type asyncJob struct {
	id  string
	ops []operation.Operation
}

// New builds an engine and starts its asynchronous workers. uowFactory may be
// nil, which disables asynchronous execution.
func New(cfg Config, registry *operation.Registry, store execstore.Store, details detailstore.Store, uowFactory operation.UnitOfWorkFactory, log *zap.Logger) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.Availability == (execstore.AvailabilityConfig{}) {
		cfg.Availability = execstore.DefaultAvailabilityConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	e := &Engine{
		registry:     registry,
		store:        store,
		details:      details,
		uow:          uowFactory,
		availability: cfg.Availability,
		log:          log,
		now:          time.Now,
		jobs:         make(chan asyncJob, cfg.QueueDepth),
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// Options carries per-submission settings.
type Options struct {
	// ExecutionID is the caller-chosen execution id. Required for
	// synchronous tracking; asynchronous submissions get a generated id
	// when empty. Reusing an id of any existing execution is a conflict.
	ExecutionID string

	// Owner scopes listings; recorded verbatim.
	Owner string

	// Description is a free-form label recorded on the execution.
	Description string

	// Availability windows in seconds. Nil takes the system default;
	// negative values clamp to zero; values above the maximum fall back to
	// the default.
	RecordTime  *int
	SummaryTime *int
	DetailsTime *int
}

func (o Options) times(cfg execstore.AvailabilityConfig) execstore.Times {
	return cfg.Resolve(o.RecordTime, o.SummaryTime, o.DetailsTime)
}

// Shutdown stops accepting asynchronous submissions and waits for in-flight
// executions to finish, or for the context to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown: %w", ctx.Err())
	}
}

// describe captures the submission-time operation summaries.
func describe(ops []operation.Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Describe()
	}
	return out
}

func detailEntries(ops []operation.Operation) []detailstore.Entry {
	out := make([]detailstore.Entry, len(ops))
	for i, op := range ops {
		out[i] = detailstore.Entry{
			Index:   i,
			Kind:    string(op.OperationKind()),
			Details: op.Describe(),
		}
	}
	return out
}

func resultStrings(results []operation.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.String()
	}
	return out
}

func resultEntries(results []operation.Result) []detailstore.ResultEntry {
	out := make([]detailstore.ResultEntry, len(results))
	for i, r := range results {
		out[i] = detailstore.ResultEntry{
			Index:    i,
			Kind:     string(r.Kind),
			ObjectID: r.ObjectID,
			Message:  r.Message,
		}
	}
	return out
}

// createRecord inserts the NEW execution record and writes the operation
// details, translating a store conflict into the caller-facing error.
func (e *Engine) createRecord(ctx context.Context, id string, ops []operation.Operation, opts Options) error {
	rec := execstore.NewRecord(id, opts.Owner, opts.Description, describe(ops), opts.times(e.availability), e.now())
	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, execstore.ErrConflict) {
			return &operation.ConflictError{ExecutionID: id}
		}
		return fmt.Errorf("create execution record: %w", err)
	}
	if err := e.details.WriteOperations(ctx, id, detailEntries(ops)); err != nil {
		e.log.Warn("write execution details failed", zap.String("execution_id", id), zap.Error(err))
	}
	return nil
}

// finishRecord finalizes a successful execution.
func (e *Engine) finishRecord(ctx context.Context, id string, results []operation.Result) {
	if err := e.details.WriteResults(ctx, id, resultEntries(results)); err != nil {
		e.log.Warn("write execution results failed", zap.String("execution_id", id), zap.Error(err))
	}
	if err := e.store.MarkFinished(ctx, id, resultStrings(results), id, e.now()); err != nil {
		e.log.Error("finalize execution failed", zap.String("execution_id", id), zap.Error(err))
	}
}

// failRecord finalizes a failed execution.
func (e *Engine) failRecord(ctx context.Context, id string, cause error) {
	if err := e.details.WriteError(ctx, id, cause.Error()); err != nil {
		e.log.Warn("write execution error failed", zap.String("execution_id", id), zap.Error(err))
	}
	if err := e.store.MarkFailed(ctx, id, cause.Error(), id, e.now()); err != nil {
		e.log.Error("finalize execution failed", zap.String("execution_id", id), zap.Error(err))
	}
}
