package operation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestKindVerbAndEntity(t *testing.T) {
	tests := []struct {
		kind   Kind
		verb   Verb
		entity string
	}{
		{"create-samples", VerbCreate, "samples"},
		{"update-vocabulary-terms", VerbUpdate, "vocabulary-terms"},
		{"delete-spaces", VerbDelete, "spaces"},
		{"create", Verb("create"), ""},
	}

	for _, tt := range tests {
		if got := tt.kind.Verb(); got != tt.verb {
			t.Errorf("%q verb = %q, want %q", tt.kind, got, tt.verb)
		}
		if got := tt.kind.Entity(); got != tt.entity {
			t.Errorf("%q entity = %q, want %q", tt.kind, got, tt.entity)
		}
	}
}

func TestVerbPhaseOrdering(t *testing.T) {
	if !(VerbCreate.Phase() < VerbUpdate.Phase() && VerbUpdate.Phase() < VerbDelete.Phase()) {
		t.Fatal("verb phases out of order")
	}
	if Verb("unknown").Phase() <= VerbDelete.Phase() {
		t.Fatal("unknown verbs must sort after delete")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Index: 3, Kind: "create-samples", Message: "code is required"}
	want := "operation 3 (create-samples): code is required"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	bare := &ValidationError{Index: -1, Message: "empty batch"}
	if bare.Error() != "empty batch" {
		t.Errorf("error = %q, want bare message", bare.Error())
	}
}

func TestHandlerErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &HandlerError{Index: 1, Kind: "delete-spaces", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("handler error must unwrap to its cause")
	}
}

type probeOp struct {
	Code string `json:"code"`
}

func (o *probeOp) OperationKind() Kind { return "create-probes" }
func (o *probeOp) Describe() string    { return "create probe " + o.Code }

type probeHandler struct{}

func (probeHandler) Handle(ctx context.Context, uow UnitOfWork, op Operation, refs ResolvedRefs) (Result, error) {
	return Result{Kind: op.OperationKind()}, nil
}

func newProbeRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("create-probes", func() Operation { return &probeOp{} }, probeHandler{})
	return reg
}

func TestRegistryDecode(t *testing.T) {
	reg := newProbeRegistry()

	op, err := reg.Decode("create-probes", json.RawMessage(`{"code":"P1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	probe, ok := op.(*probeOp)
	if !ok {
		t.Fatalf("decoded type %T", op)
	}
	if probe.Code != "P1" {
		t.Errorf("code = %q, want P1", probe.Code)
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	reg := newProbeRegistry()

	_, err := reg.Decode("create-ghosts", nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := reg.Handler("create-ghosts"); err == nil {
		t.Fatal("expected error for unknown handler")
	}
}

func TestRegistryMalformedPayload(t *testing.T) {
	reg := newProbeRegistry()

	_, err := reg.Decode("create-probes", json.RawMessage(`{`))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	reg := newProbeRegistry()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	reg.Register("create-probes", func() Operation { return &probeOp{} }, probeHandler{})
}

func TestRegistryKindsSorted(t *testing.T) {
	reg := newProbeRegistry()
	reg.Register("create-anchors", func() Operation { return &probeOp{} }, probeHandler{})

	kinds := reg.Kinds()
	if len(kinds) != 2 || kinds[0] != "create-anchors" || kinds[1] != "create-probes" {
		t.Fatalf("kinds = %v", kinds)
	}
}
