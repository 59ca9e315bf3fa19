package middleware

import (
	"context"
	"net/http"

	"github.com/davewasmer/foraker/pkg/common"
	"github.com/google/uuid"
)

// traceIDKey is the context key under which the trace ID is stored.
type traceIDKey struct{}

// TraceHeader is the request header consulted for an incoming trace ID.
const TraceHeader = "X-Trace-Id"

// Trace creates a middleware that attaches a trace ID to every request
// context. An ID arriving in the X-Trace-Id header is reused so traces span
// upstream services; otherwise a fresh UUID is generated. The ID is echoed
// back on the response for client-side correlation.
func Trace() common.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(TraceHeader)
			if traceID == "" {
				traceID = uuid.New().String()
			}

			w.Header().Set(TraceHeader, traceID)

			ctx := context.WithValue(r.Context(), traceIDKey{}, traceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTraceID extracts the trace ID from the request context.
// Returns an empty string if no trace ID is found.
func GetTraceID(r *http.Request) string {
	return GetTraceIDFromContext(r.Context())
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
