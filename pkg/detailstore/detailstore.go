// Package detailstore keeps the full per-operation detail documents of an
// execution out of the execution database. Details are written incrementally
// (operations at submission, results or the failure on completion) and purged
// independently of the execution record when the details facet expires.
package detailstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no detail document exists for an execution.
var ErrNotFound = errors.New("execution details not found")

// Entry is one submitted operation as captured at submission time.
type Entry struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Details string `json:"details"`
}

// ResultEntry is the full outcome of one operation.
type ResultEntry struct {
	Index    int    `json:"index"`
	Kind     string `json:"kind"`
	ObjectID string `json:"object_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Document is the assembled detail view of one execution.
type Document struct {
	Operations []Entry       `json:"operations,omitempty"`
	Results    []ResultEntry `json:"results,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Store persists detail documents keyed by execution id.
type Store interface {
	// WriteOperations records the submitted operations.
	WriteOperations(ctx context.Context, id string, ops []Entry) error

	// WriteResults records the per-operation outcomes of a finished execution.
	WriteResults(ctx context.Context, id string, results []ResultEntry) error

	// WriteError records the failure of a failed execution.
	WriteError(ctx context.Context, id string, message string) error

	// Get assembles the detail document, or ErrNotFound once purged.
	Get(ctx context.Context, id string) (*Document, error)

	// Delete removes all details of the execution. Deleting an absent id is
	// not an error; purge sweeps retry freely.
	Delete(ctx context.Context, id string) error
}
