package batch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tracelab/opexec/pkg/operation"
)

// fakeOp is a minimal operation for grouping and reference tests.
type fakeOp struct {
	kind  operation.Kind
	token operation.TokenRef
	refs  []operation.TokenRef
}

func (o *fakeOp) OperationKind() operation.Kind { return o.kind }
func (o *fakeOp) Describe() string              { return string(o.kind) }

func (o *fakeOp) CreationToken() operation.TokenRef { return o.token }

func (o *fakeOp) References() []operation.TokenRef { return o.refs }

func op(kind string) *fakeOp { return &fakeOp{kind: operation.Kind(kind)} }

func minting(kind, token string) *fakeOp {
	return &fakeOp{kind: operation.Kind(kind), token: operation.TokenRef(token)}
}

func referring(kind string, refs ...string) *fakeOp {
	o := op(kind)
	for _, r := range refs {
		o.refs = append(o.refs, operation.TokenRef(r))
	}
	return o
}

func kinds(plan *Plan) []string {
	out := make([]string, 0, len(plan.SubBatches))
	for _, sb := range plan.SubBatches {
		out = append(out, string(sb.Kind))
	}
	return out
}

func TestGroupOrdersPhasesThenFirstSeen(t *testing.T) {
	plan := Group([]operation.Operation{
		op("delete-samples"),
		op("update-spaces"),
		op("create-samples"),
		op("create-spaces"),
		op("create-samples"),
		op("delete-projects"),
	})

	want := []string{"create-samples", "create-spaces", "update-spaces", "delete-samples", "delete-projects"}
	got := kinds(plan)
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("sub-batch order = %v, want %v", got, want)
	}

	if plan.Size != 6 {
		t.Errorf("plan size = %d, want 6", plan.Size)
	}
}

func TestGroupKeepsSubmissionIndexes(t *testing.T) {
	plan := Group([]operation.Operation{
		op("update-samples"),
		op("create-samples"),
		op("update-samples"),
	})

	ordered := plan.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("ordered length = %d", len(ordered))
	}
	// create executes first but carries its original index
	if ordered[0].Index != 1 {
		t.Errorf("first executed index = %d, want 1", ordered[0].Index)
	}
	// updates keep their relative submission order
	if ordered[1].Index != 0 || ordered[2].Index != 2 {
		t.Errorf("update indexes = %d, %d, want 0, 2", ordered[1].Index, ordered[2].Index)
	}
}

func TestResolveAcceptsBackwardReference(t *testing.T) {
	plan := Group([]operation.Operation{
		minting("create-spaces", "$space"),
		referring("create-samples", "$space"),
	})

	if _, err := Resolve(plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveAcceptsReferenceSatisfiedByRegrouping(t *testing.T) {
	// The create is submitted after the update, but creates execute first.
	plan := Group([]operation.Operation{
		referring("update-samples", "$space"),
		minting("create-spaces", "$space"),
	})

	if _, err := Resolve(plan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveRejectsUnknownToken(t *testing.T) {
	plan := Group([]operation.Operation{
		referring("create-samples", "$ghost"),
	})

	_, err := Resolve(plan)
	var verr *operation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Index != 0 {
		t.Errorf("error index = %d, want 0", verr.Index)
	}
}

func TestResolveRejectsForwardReference(t *testing.T) {
	// Both are creates, so grouping cannot repair the order.
	plan := Group([]operation.Operation{
		referring("create-samples", "$space"),
		minting("create-spaces", "$space"),
	})

	_, err := Resolve(plan)
	var verr *operation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveRejectsDuplicateToken(t *testing.T) {
	plan := Group([]operation.Operation{
		minting("create-spaces", "$dup"),
		minting("create-projects", "$dup"),
	})

	_, err := Resolve(plan)
	var verr *operation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Index != 1 {
		t.Errorf("error index = %d, want 1", verr.Index)
	}
}

func TestResolveRejectsCycle(t *testing.T) {
	a := minting("create-samples", "$a")
	a.refs = []operation.TokenRef{"$b"}
	b := minting("create-samples", "$b")
	b.refs = []operation.TokenRef{"$a"}

	plan := Group([]operation.Operation{a, b})

	_, err := Resolve(plan)
	var verr *operation.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRefTableBindAndFor(t *testing.T) {
	plan := Group([]operation.Operation{
		minting("create-spaces", "$space"),
		referring("create-samples", "$space"),
	})

	table, err := Resolve(plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	table.Bind("$space", "LAB")

	refs, err := table.For(plan.Ordered()[1].Op)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refs["$space"] != "LAB" {
		t.Errorf("resolved id = %q, want LAB", refs["$space"])
	}
}

func TestRefTableUnboundToken(t *testing.T) {
	table := newRefTable()
	if _, err := table.For(referring("create-samples", "$missing")); err == nil {
		t.Fatal("expected error for unbound token")
	}
}
