package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestTraceGeneratesID tests that the trace middleware generates an ID,
// stores it in the context, and echoes it on the response.
func TestTraceGeneratesID(t *testing.T) {
	var fromContext string
	handler := Trace()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetTraceID(r)
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if fromContext == "" {
		t.Fatal("Expected a trace ID in the request context")
	}
	if got := w.Header().Get(TraceHeader); got != fromContext {
		t.Errorf("Expected response header %q, got %q", fromContext, got)
	}
}

// TestTraceReusesIncomingID tests that an upstream trace ID is propagated
// instead of replaced.
func TestTraceReusesIncomingID(t *testing.T) {
	var fromContext string
	handler := Trace()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetTraceID(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TraceHeader, "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if fromContext != "upstream-id" {
		t.Errorf("Expected the upstream trace ID to be reused, got %q", fromContext)
	}
}

// TestGetTraceIDWithoutMiddleware tests the empty-string fallback.
func TestGetTraceIDWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := GetTraceID(req); got != "" {
		t.Errorf("Expected empty trace ID, got %q", got)
	}
}
