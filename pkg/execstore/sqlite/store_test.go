package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tracelab/opexec/pkg/execstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, Config{Path: filepath.Join(t.TempDir(), "executions.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func newTestRecord(id, owner string, now time.Time) *execstore.Record {
	times := execstore.DefaultAvailabilityConfig().Resolve(nil, nil, nil)
	return execstore.NewRecord(id, owner, "test batch", []string{"create spaces (1)"}, times, now)
}

func TestSQLiteCreateConflict(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now()

	if err := store.Create(ctx, newTestRecord("exec-1", "alice", now)); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := store.Create(ctx, newTestRecord("exec-1", "bob", now))
	if !errors.Is(err, execstore.ErrConflict) {
		t.Fatalf("second create: got %v, want ErrConflict", err)
	}
	got, err := store.Get(ctx, "exec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != "alice" {
		t.Errorf("owner = %q, want alice", got.Owner)
	}
}

func TestSQLiteLifecycleRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.Create(ctx, newTestRecord("exec-2", "alice", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkScheduled(ctx, "exec-2"); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := store.MarkInProgress(ctx, "exec-2", now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.MarkFinished(ctx, "exec-2", []string{"SPACE-1"}, "exec-2", now); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := store.Get(ctx, "exec-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != execstore.StateFinished {
		t.Errorf("state = %q, want FINISHED", got.State)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(now) {
		t.Errorf("started at = %v, want %v", got.StartedAt, now)
	}
	if got.FinishedAt == nil {
		t.Error("finished at not set")
	}
	if got.Summary == nil {
		t.Fatal("summary missing after round trip")
	}
	if len(got.Summary.Operations) != 1 || got.Summary.Operations[0] != "create spaces (1)" {
		t.Errorf("operations = %v", got.Summary.Operations)
	}
	if len(got.Summary.Results) != 1 || got.Summary.Results[0] != "SPACE-1" {
		t.Errorf("results = %v", got.Summary.Results)
	}
	if got.DetailsRef != "exec-2" {
		t.Errorf("details ref = %q", got.DetailsRef)
	}
	for _, kind := range []execstore.FacetKind{execstore.FacetRecord, execstore.FacetSummary, execstore.FacetDetails} {
		if got.Facet(kind).ExpiresAt.IsZero() {
			t.Errorf("%s clock not started", kind)
		}
	}

	// Terminal states stay terminal.
	err = store.MarkInProgress(ctx, "exec-2", now)
	if !errors.Is(err, execstore.ErrBadTransition) {
		t.Errorf("restart finished execution: got %v, want ErrBadTransition", err)
	}
}

func TestSQLiteAvailabilityGuardAndNulling(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now()

	if err := store.Create(ctx, newTestRecord("exec-3", "", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.MarkFinished(ctx, "exec-3", nil, "exec-3", now); err != nil {
		t.Fatalf("finish: %v", err)
	}

	err := store.SetAvailability(ctx, "exec-3", execstore.FacetSummary, execstore.TimedOut)
	if !errors.Is(err, execstore.ErrBadTransition) {
		t.Fatalf("skip pending step: got %v, want ErrBadTransition", err)
	}
	if err := store.SetAvailability(ctx, "exec-3", execstore.FacetSummary, execstore.TimeOutPending); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	if err := store.SetAvailability(ctx, "exec-3", execstore.FacetSummary, execstore.TimedOut); err != nil {
		t.Fatalf("time out: %v", err)
	}

	got, err := store.Get(ctx, "exec-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != nil {
		t.Error("summary content survived TIMED_OUT")
	}
	if got.DetailsRef != "exec-3" {
		t.Errorf("details ref = %q, want untouched", got.DetailsRef)
	}
}

func TestSQLiteDueScans(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	short := 60
	times := execstore.DefaultAvailabilityConfig().Resolve(nil, nil, &short)
	rec := execstore.NewRecord("exec-4", "", "", nil, times, now)
	if err := store.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := store.DueTimeOutPending(ctx, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("due scan: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("unfinished execution reported due: %d", len(due))
	}

	if err := store.MarkFinished(ctx, "exec-4", nil, "", now); err != nil {
		t.Fatalf("finish: %v", err)
	}
	due, err = store.DueTimeOutPending(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("due scan: %v", err)
	}
	if len(due) != 1 || due[0].ID != "exec-4" {
		t.Fatalf("due after details window: %v", due)
	}

	if err := store.SetAvailability(ctx, "exec-4", execstore.FacetDetails, execstore.TimeOutPending); err != nil {
		t.Fatalf("mark pending: %v", err)
	}
	pending, err := store.DuePurge(ctx)
	if err != nil {
		t.Fatalf("purge scan: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("purge scan returned %d records", len(pending))
	}
}

func TestSQLiteListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	for i, owner := range []string{"alice", "bob", "alice"} {
		rec := newTestRecord(string(rune('a'+i)), owner, base.Add(time.Duration(i)*time.Second))
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("list all = %v", all)
	}
	mine, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list owner: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("owner listing returned %d records", len(mine))
	}

	if err := store.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "b"); !errors.Is(err, execstore.ErrNotFound) {
		t.Fatalf("get deleted: got %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "b"); !errors.Is(err, execstore.ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteOpenMemory(t *testing.T) {
	db, err := Open(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("open :memory:: %v", err)
	}
	defer func() { _ = db.Close() }()
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate :memory:: %v", err)
	}
}
