// Package middleware carries the server's request plumbing: request id
// propagation, panic recovery with the standard error envelope, and request
// metrics.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/tracelab/opexec/internal/errors"
	"github.com/tracelab/opexec/internal/metrics"
	"github.com/tracelab/opexec/internal/observability"
)

// RequestID attaches the inbound X-Request-ID (or a generated one) to the
// request context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), apperrors.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recovery turns panics into 500 responses with the standard envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observability.Logger.Error("request panic",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				apperrors.Respond(w, r, http.StatusInternalServerError,
					apperrors.CodeInternalError, fmt.Sprintf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Metrics counts requests by path pattern, method and status code. The chi
// route pattern keeps the label cardinality bounded; path parameters such as
// execution ids never become label values.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		metrics.HTTPRequestsTotal.WithLabelValues(
			routePattern(r), r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}

// routePattern returns the matched chi route pattern, falling back to the
// raw path when the request never went through a chi router.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
