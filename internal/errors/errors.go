// Package errors defines the HTTP error envelope and the mapping from the
// engine's error taxonomy to status codes.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tracelab/opexec/pkg/execstore"
	"github.com/tracelab/opexec/pkg/operation"
)

// Stable error codes carried in the envelope.
const (
	CodeConflict         = "CONFLICT"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeInternalError    = "INTERNAL_ERROR"
)

// HTTPErrorResponse is the JSON error envelope of every non-2xx response.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

type HTTPError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Respond writes the error envelope with the given status.
func Respond(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(r),
		},
	})
}

// RespondWithError maps an engine or store error onto the envelope.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	Respond(w, r, status, code, err.Error())
}

// Classify maps the engine's error taxonomy to an HTTP status and code.
func Classify(err error) (int, string) {
	var conflict *operation.ConflictError
	if errors.As(err, &conflict) {
		return http.StatusConflict, CodeConflict
	}
	var validation *operation.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest, CodeValidationFailed
	}
	var authz *operation.AuthorizationError
	if errors.As(err, &authz) {
		return http.StatusForbidden, CodeForbidden
	}
	if errors.Is(err, execstore.ErrNotFound) {
		return http.StatusNotFound, CodeNotFound
	}
	return http.StatusInternalServerError, CodeInternalError
}

// NotFoundHandler serves unmatched routes with the standard envelope.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Respond(w, r, http.StatusNotFound, CodeNotFound, "resource not found: "+r.URL.Path)
	}
}

// MethodNotAllowedHandler serves mismatched methods with the standard envelope.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Respond(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed: "+r.Method)
	}
}

type ctxKey string

// RequestIDKey carries the request id through the request context.
const RequestIDKey ctxKey = "request_id"

func requestIDFrom(r *http.Request) string {
	if r == nil {
		return ""
	}
	if v, ok := r.Context().Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
