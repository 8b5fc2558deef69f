package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tracelab/opexec/internal/errors"
	"github.com/tracelab/opexec/internal/server/handlers"
	"github.com/tracelab/opexec/pkg/detailstore"
	"github.com/tracelab/opexec/pkg/engine"
	"github.com/tracelab/opexec/pkg/entity"
	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/operation"
)

func newTestServer(t *testing.T) (*Server, *execstore.MemoryStore) {
	t.Helper()

	registry := operation.NewRegistry()
	entity.RegisterAll(registry)

	store := execstore.NewMemoryStore()
	details := detailstore.NewFSStore(t.TempDir())
	eng := engine.New(engine.Config{Workers: 1}, registry, store, details, entity.NewStore(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
	})

	return New("127.0.0.1", 0, handlers.New(eng, registry)), store
}

func postJSON(t *testing.T, srv *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func batchBody(ops ...map[string]any) map[string]any {
	return map[string]any{"operations": ops}
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := operation.NewRegistry()
			srv := New("127.0.0.1", tt.port, handlers.New(nil, registry))
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv, _ := newTestServer(t)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/v1/executions", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_ExecuteSync(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/v1/operations/execute", batchBody(
		map[string]any{"kind": "create-spaces", "payload": map[string]any{"code": "LAB", "token": "$lab"}},
		map[string]any{"kind": "create-projects", "payload": map[string]any{"code": "PROJ", "space_token": "$lab"}},
	))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Results []operation.Result `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "LAB", body.Results[0].ObjectID)
	assert.Equal(t, "/LAB/PROJ", body.Results[1].ObjectID)
}

func TestServer_ExecuteSyncValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/v1/operations/execute", batchBody(
		map[string]any{"kind": "create-projects", "payload": map[string]any{"code": "PROJ", "space_token": "$missing"}},
	))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "VALIDATION_FAILED", body.Error.Code)
}

func TestServer_ExecuteSyncEmptyBatchRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv, "/v1/operations/execute", map[string]any{"operations": []any{}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ExecuteSyncConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	body := batchBody(map[string]any{"kind": "create-spaces", "payload": map[string]any{"code": "ONE"}})
	body["execution_id"] = "exec-dup"

	rec := postJSON(t, srv, "/v1/operations/execute", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body = batchBody(map[string]any{"kind": "create-spaces", "payload": map[string]any{"code": "TWO"}})
	body["execution_id"] = "exec-dup"

	rec = postJSON(t, srv, "/v1/operations/execute", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
}

func TestServer_ExecuteAsyncAndPoll(t *testing.T) {
	srv, store := newTestServer(t)

	rec := postJSON(t, srv, "/v1/operations/execute-async", batchBody(
		map[string]any{"kind": "create-spaces", "payload": map[string]any{"code": "ASYNC"}},
	))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var accepted struct {
		ExecutionID string `json:"execution_id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&accepted))
	require.NotEmpty(t, accepted.ExecutionID)

	deadline := time.Now().Add(5 * time.Second)
	for {
		recState, err := store.Get(context.Background(), accepted.ExecutionID)
		require.NoError(t, err)
		if recState.State == execstore.StateFinished {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("execution %s stuck in state %s", accepted.ExecutionID, recState.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/executions/"+accepted.ExecutionID, nil)
	poll := httptest.NewRecorder()
	srv.Handler().ServeHTTP(poll, req)

	require.Equal(t, http.StatusOK, poll.Code, poll.Body.String())

	var view struct {
		Record struct {
			State   string             `json:"state"`
			Summary *execstore.Summary `json:"summary"`
		} `json:"record"`
	}
	require.NoError(t, json.NewDecoder(poll.Body).Decode(&view))
	assert.Equal(t, string(execstore.StateFinished), view.Record.State)
	require.NotNil(t, view.Record.Summary)
	assert.Equal(t, []string{"create-spaces ASYNC"}, view.Record.Summary.Results)
}

func TestServer_GetUnknownExecution(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/executions/nope", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestServer_RequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
