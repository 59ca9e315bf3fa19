package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// headerMiddleware returns a middleware that records its name in a response
// header, so tests can observe execution order.
func headerMiddleware(name string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Order", name)
			next.ServeHTTP(w, r)
		})
	}
}

func runChain(t *testing.T, chain MiddlewareChain) *httptest.ResponseRecorder {
	t.Helper()

	handler := chain.ThenFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Order", "final")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "http://example.com/foo", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// TestMiddlewareChainOrder tests that appended middleware runs in the order
// it was added, before the final handler.
func TestMiddlewareChainOrder(t *testing.T) {
	chain := NewMiddlewareChain(headerMiddleware("first")).Append(headerMiddleware("second"))

	w := runChain(t, chain)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}

	order := w.Header().Values("X-Order")
	expected := []string{"first", "second", "final"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d X-Order values, got %d: %v", len(expected), len(order), order)
	}
	for i, name := range expected {
		if order[i] != name {
			t.Errorf("Expected X-Order[%d] to be %q, got %q", i, name, order[i])
		}
	}
}

// TestMiddlewareChainPrepend tests that prepended middleware runs before any
// previously added middleware.
func TestMiddlewareChainPrepend(t *testing.T) {
	chain := NewMiddlewareChain(headerMiddleware("inner"))
	chain = chain.Prepend(headerMiddleware("outer"))

	w := runChain(t, chain)

	order := w.Header().Values("X-Order")
	expected := []string{"outer", "inner", "final"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d X-Order values, got %d: %v", len(expected), len(order), order)
	}
	for i, name := range expected {
		if order[i] != name {
			t.Errorf("Expected X-Order[%d] to be %q, got %q", i, name, order[i])
		}
	}
}

// TestMiddlewareChainPrependDoesNotMutate tests that Prepend returns a new
// chain without mutating the original.
func TestMiddlewareChainPrependDoesNotMutate(t *testing.T) {
	original := NewMiddlewareChain(headerMiddleware("inner"))
	extended := original.Prepend(headerMiddleware("outer"))

	if len(original) != 1 {
		t.Errorf("Expected original chain to keep length 1, got %d", len(original))
	}
	if len(extended) != 2 {
		t.Errorf("Expected extended chain to have length 2, got %d", len(extended))
	}
}

// TestEmptyMiddlewareChain tests that an empty chain passes the request
// straight through to the handler.
func TestEmptyMiddlewareChain(t *testing.T) {
	w := runChain(t, NewMiddlewareChain())

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "OK" {
		t.Errorf("Expected body %q, got %q", "OK", w.Body.String())
	}
}
