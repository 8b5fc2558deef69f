package operation

import (
	"context"
	"strings"
)

// Verb is the mutating action an operation performs. Batches execute all
// creates first, then updates, then deletes, regardless of submission order.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Phase returns the execution phase of the verb; lower phases run first.
func (v Verb) Phase() int {
	switch v {
	case VerbCreate:
		return 0
	case VerbUpdate:
		return 1
	case VerbDelete:
		return 2
	default:
		return 3
	}
}

// Kind tags an operation with its verb and target entity, e.g. "create-samples".
//
// NOTE: Kind strings appear in batch manifests, HTTP payloads and persisted
// execution details. They are part of the stable contract.
type Kind string

// Verb extracts the verb prefix of the kind ("create-samples" -> "create").
func (k Kind) Verb() Verb {
	s := string(k)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return Verb(s[:i])
	}
	return Verb(s)
}

// Entity extracts the entity suffix of the kind ("create-samples" -> "samples").
func (k Kind) Entity() string {
	s := string(k)
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[i+1:]
	}
	return ""
}

// TokenRef is a caller-chosen symbolic name for an object created earlier in
// the same batch, usable before the object has a persistent identifier.
type TokenRef string

// Operation is a single mutating command inside a batch. Operations are
// immutable once submitted; cross-batch references are handed to handlers as
// a resolved token table instead of being rewritten in place.
type Operation interface {
	// OperationKind selects the handler and the result type.
	OperationKind() Kind

	// Describe returns a short human-readable summary, recorded verbatim in
	// the execution summary at submission time.
	Describe() string
}

// TokenMinter is implemented by create operations that register a symbolic
// creation token other operations in the same batch may reference.
type TokenMinter interface {
	Operation
	CreationToken() TokenRef
}

// Referencer is implemented by operations whose payload references creation
// tokens minted elsewhere in the batch.
type Referencer interface {
	Operation
	References() []TokenRef
}

// ResolvedRefs maps creation tokens to the persistent identifiers produced by
// the creates that minted them. Handlers look their references up here.
type ResolvedRefs map[TokenRef]string

// UnitOfWork is the transactional scope a batch executes in. The engine
// commits or rolls it back as a whole; handlers assert it to their store's
// concrete transaction type.
type UnitOfWork interface {
	Commit() error
	Rollback() error
}

// RollbackOnlyMarker is an optional UnitOfWork extension. In synchronous mode
// the engine marks the caller's unit of work rollback-only on the first
// failure so a later Commit cannot silently persist partial effects.
type RollbackOnlyMarker interface {
	MarkRollbackOnly()
}

// UnitOfWorkFactory opens fresh units of work for asynchronous executions.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Handler executes one operation kind against an open unit of work.
//
// Handlers report payload problems as *ValidationError and permission
// problems as *AuthorizationError; any other error aborts the batch as a
// handler failure. A handler must not commit or roll back the unit of work.
type Handler interface {
	Handle(ctx context.Context, uow UnitOfWork, op Operation, refs ResolvedRefs) (Result, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, uow UnitOfWork, op Operation, refs ResolvedRefs) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, uow UnitOfWork, op Operation, refs ResolvedRefs) (Result, error) {
	return f(ctx, uow, op, refs)
}
