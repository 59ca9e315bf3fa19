package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *DispatchMetrics {
	t.Helper()
	m, err := New(Config{Registry: prometheus.NewRegistry(), Namespace: "foraker", Subsystem: "test"})
	if err != nil {
		t.Fatalf("Expected collector registration to succeed, got %v", err)
	}
	return m
}

// TestObserveDispatch tests that dispatch outcomes are counted under their
// labels.
func TestObserveDispatch(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveDispatch("widgets", "show", "completed", 5*time.Millisecond)
	m.ObserveDispatch("widgets", "show", "completed", 7*time.Millisecond)
	m.ObserveDispatch("widgets", "show", "failed", time.Millisecond)

	completed := testutil.ToFloat64(m.dispatches.WithLabelValues("widgets", "show", "completed"))
	if completed != 2 {
		t.Errorf("Expected 2 completed dispatches, got %v", completed)
	}
	failed := testutil.ToFloat64(m.dispatches.WithLabelValues("widgets", "show", "failed"))
	if failed != 1 {
		t.Errorf("Expected 1 failed dispatch, got %v", failed)
	}
}

// TestDuplicateRegistrationFails tests that registering the collectors twice
// on one registry surfaces an error instead of panicking.
func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	if _, err := New(Config{Registry: registry}); err != nil {
		t.Fatalf("Expected first registration to succeed, got %v", err)
	}
	if _, err := New(Config{Registry: registry}); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

// TestMiddlewareCountsRequests tests that the HTTP middleware records the
// request with its final status code.
func TestMiddlewareCountsRequests(t *testing.T) {
	m := newTestMetrics(t)

	handler := m.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/missing", nil))

	count := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/missing", "404"))
	if count != 1 {
		t.Errorf("Expected 1 recorded request, got %v", count)
	}
}
