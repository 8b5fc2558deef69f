package operation

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// PayloadFactory produces an empty operation of one kind so wire payloads
// (JSON bodies, YAML manifests) can be decoded into the concrete type.
type PayloadFactory func() Operation

// Registry maps operation kinds to their handlers and payload factories.
//
// The kind set is closed at wiring time: collaborators register every kind
// they serve during startup, and dispatch of an unregistered kind is a
// validation error rather than a panic.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[Kind]Handler
	factories map[Kind]PayloadFactory
}

func NewRegistry() *Registry {
	return &Registry{
		handlers:  make(map[Kind]Handler),
		factories: make(map[Kind]PayloadFactory),
	}
}

// Register binds a kind to its handler and payload factory. Registering the
// same kind twice is a wiring bug and panics, matching the closed-set model.
func (r *Registry) Register(kind Kind, factory PayloadFactory, handler Handler) {
	if kind == "" || factory == nil || handler == nil {
		panic("operation: Register requires kind, factory and handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.handlers[kind]; dup {
		panic(fmt.Sprintf("operation: kind %q registered twice", kind))
	}
	r.handlers[kind] = handler
	r.factories[kind] = factory
}

// Handler returns the handler for a kind, or a *ValidationError when the kind
// is not registered.
func (r *Registry) Handler(kind Kind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown operation kind %q", kind)}
	}
	return h, nil
}

// Decode unmarshals a raw JSON payload into the concrete operation type of
// the given kind.
func (r *Registry) Decode(kind Kind, payload json.RawMessage) (Operation, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown operation kind %q", kind)}
	}

	op := factory()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, op); err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("decode %s payload: %v", kind, err)}
		}
	}
	if op.OperationKind() != kind {
		return nil, &ValidationError{Message: fmt.Sprintf("payload factory for %q produced kind %q", kind, op.OperationKind())}
	}
	return op, nil
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
