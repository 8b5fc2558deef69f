package entity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/operation"
)

type rig struct {
	engine *engine.Engine
	store  *Store
	execs  *execstore.MemoryStore
}

func newRig(t *testing.T) *rig {
	t.Helper()

	registry := operation.NewRegistry()
	RegisterAll(registry)

	store := NewStore()
	execs := execstore.NewMemoryStore()
	eng := engine.New(engine.Config{Workers: 1}, registry, execs, detailstore.NewFSStore(t.TempDir()), store, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
	})
	return &rig{engine: eng, store: store, execs: execs}
}

func (r *rig) waitTerminal(t *testing.T, id string) *execstore.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := r.execs.Get(context.Background(), id)
		if err == nil && rec.State.Terminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("execution %s never reached a terminal state", id)
	return nil
}

func TestSpacesCreateUpdateCreateKeepsSubmissionOrder(t *testing.T) {
	r := newRig(t)
	desc := "updated description"

	txn := r.store.BeginTxn()
	ops := []operation.Operation{
		&CreateSpace{Code: "ALPHA"},
		&UpdateSpace{Code: "ALPHA", Description: &desc},
		&CreateSpace{Code: "BETA"},
	}
	results, err := r.engine.ExecuteSynchronous(context.Background(), txn, ops, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	// Results in submission order even though the update ran after both
	// creates.
	require.Len(t, results, 3)
	assert.Equal(t, "ALPHA", results[0].ObjectID)
	assert.Equal(t, KindUpdateSpaces, results[1].Kind)
	assert.Equal(t, "BETA", results[2].ObjectID)

	alpha, ok := r.store.Space("ALPHA")
	require.True(t, ok)
	assert.Equal(t, desc, alpha.Description)
	_, ok = r.store.Space("BETA")
	assert.True(t, ok)
}

func TestSampleParentByCreationToken(t *testing.T) {
	r := newRig(t)

	txn := r.store.BeginTxn()
	ops := []operation.Operation{
		&CreateSpace{Code: "LAB", Token: "$lab"},
		&CreateSample{Code: "PARENT", SpaceToken: "$lab", Token: "$parent"},
		&CreateSample{Code: "CHILD", SpaceToken: "$lab", ParentTokens: []operation.TokenRef{"$parent"}},
	}
	results, err := r.engine.ExecuteSynchronous(context.Background(), txn, ops, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	assert.Equal(t, "/LAB/PARENT", results[1].ObjectID)
	child, ok := r.store.Sample("/LAB/CHILD")
	require.True(t, ok)
	require.Len(t, child.Parents, 1)
	assert.Equal(t, "/LAB/PARENT", child.Parents[0])
}

func TestFailedAsynchronousBatchLeavesNoPartialObjects(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	ops := []operation.Operation{
		&CreateSpace{Code: "LAB"},
		// Fails: the referenced space is never created in this batch.
		&CreateSample{Code: "S1", Space: "NOWHERE"},
	}
	id, err := r.engine.ExecuteAsynchronous(ctx, ops, engine.Options{})
	require.NoError(t, err)

	rec := r.waitTerminal(t, id)
	assert.Equal(t, execstore.StateFailed, rec.State)
	require.NotNil(t, rec.Summary)
	assert.Contains(t, rec.Summary.Error, "space NOWHERE does not exist")

	// All-or-nothing: the successful create must not have leaked.
	counts := r.store.Counts()
	for entity, n := range counts {
		assert.Zerof(t, n, "%s leaked from failed batch", entity)
	}
}

func TestCrossEntityBatchWithTokens(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	ops := []operation.Operation{
		&CreateSpace{Code: "LAB", Token: "$space"},
		&CreateProject{Code: "SCREENING", SpaceToken: "$space", Token: "$project"},
		&CreateExperiment{Code: "EXP-1", ProjectToken: "$project", Token: "$exp"},
		&CreateSample{Code: "S1", SpaceToken: "$space", ExperimentToken: "$exp", Token: "$sample"},
		&CreateDataSet{Code: "DS-1", SampleToken: "$sample"},
	}
	id, err := r.engine.ExecuteAsynchronous(ctx, ops, engine.Options{})
	require.NoError(t, err)

	rec := r.waitTerminal(t, id)
	require.Equal(t, execstore.StateFinished, rec.State)
	require.Len(t, rec.Summary.Results, 5)
	assert.Equal(t, "create-datasets DS-1", rec.Summary.Results[4])

	counts := r.store.Counts()
	assert.Equal(t, 1, counts["spaces"])
	assert.Equal(t, 1, counts["projects"])
	assert.Equal(t, 1, counts["experiments"])
	assert.Equal(t, 1, counts["samples"])
	assert.Equal(t, 1, counts["datasets"])
}

func TestVocabularyTermLifecycle(t *testing.T) {
	r := newRig(t)
	label := "Homo sapiens"

	txn := r.store.BeginTxn()
	ops := []operation.Operation{
		&CreateVocabulary{Code: "ORGANISM", Terms: []VocabularyTerm{{Code: "MOUSE"}}, Token: "$vocab"},
		&CreateVocabularyTerm{Code: "HUMAN", VocabularyToken: "$vocab"},
		&UpdateVocabularyTerm{Code: "HUMAN", Vocabulary: "ORGANISM", Label: &label},
		&DeleteVocabularyTerm{Code: "MOUSE", Vocabulary: "ORGANISM"},
	}
	results, err := r.engine.ExecuteSynchronous(context.Background(), txn, ops, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	assert.Equal(t, "HUMAN (ORGANISM)", results[1].ObjectID)

	var vocab *Vocabulary
	r.store.view(func(w *world) {
		v := *w.vocabularies["ORGANISM"]
		vocab = &v
	})
	require.NotNil(t, vocab)
	require.Len(t, vocab.Terms, 1)
	assert.Equal(t, "HUMAN", vocab.Terms[0].Code)
	assert.Equal(t, label, vocab.Terms[0].Label)
}

func TestDeleteGuards(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	setup := r.store.BeginTxn()
	_, err := r.engine.ExecuteSynchronous(ctx, setup, []operation.Operation{
		&CreateSpace{Code: "LAB", Token: "$lab"},
		&CreateSample{Code: "S1", SpaceToken: "$lab"},
	}, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, setup.Commit())

	// A space with contents cannot be deleted.
	txn := r.store.BeginTxn()
	_, err = r.engine.ExecuteSynchronous(ctx, txn, []operation.Operation{
		&DeleteSpace{Code: "LAB"},
	}, engine.Options{})
	var ve *operation.ValidationError
	require.ErrorAs(t, err, &ve)
	require.NoError(t, txn.Rollback())

	// Deleting the sample first, then the space, works in one batch because
	// deletes keep their relative order.
	txn = r.store.BeginTxn()
	_, err = r.engine.ExecuteSynchronous(ctx, txn, []operation.Operation{
		&DeleteSample{Sample: "/LAB/S1"},
		&DeleteSpace{Code: "LAB"},
	}, engine.Options{})
	require.NoError(t, err)
	require.NoError(t, txn.Commit())
	assert.Zero(t, r.store.Counts()["spaces"])
}

func TestRegistryServesTheFullKindSet(t *testing.T) {
	registry := operation.NewRegistry()
	RegisterAll(registry)
	assert.Len(t, registry.Kinds(), 27)
}

func TestRollbackOnlyTxnRefusesCommit(t *testing.T) {
	store := NewStore()
	txn := store.BeginTxn()
	txn.MarkRollbackOnly()
	require.ErrorIs(t, txn.Commit(), ErrRollbackOnly)
}
