package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func extractIP(t *testing.T, config *IPConfig, setup func(*http.Request)) string {
	t.Helper()

	var ip string
	handler := ClientIPMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = ClientIP(r)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	if setup != nil {
		setup(req)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return ip
}

// TestClientIPFromXForwardedFor tests that the leftmost X-Forwarded-For
// entry wins when proxies are trusted.
func TestClientIPFromXForwardedFor(t *testing.T) {
	ip := extractIP(t, nil, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	})
	if ip != "203.0.113.7" {
		t.Errorf("Expected client IP %q, got %q", "203.0.113.7", ip)
	}
}

// TestClientIPFromXRealIP tests the X-Real-IP source.
func TestClientIPFromXRealIP(t *testing.T) {
	config := &IPConfig{Source: IPSourceXRealIP, TrustProxy: true}
	ip := extractIP(t, config, func(r *http.Request) {
		r.Header.Set("X-Real-IP", "203.0.113.9")
	})
	if ip != "203.0.113.9" {
		t.Errorf("Expected client IP %q, got %q", "203.0.113.9", ip)
	}
}

// TestClientIPUntrustedProxy tests that proxy headers are ignored when
// TrustProxy is false.
func TestClientIPUntrustedProxy(t *testing.T) {
	config := &IPConfig{Source: IPSourceXForwardedFor, TrustProxy: false}
	ip := extractIP(t, config, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
	})
	if ip != "192.0.2.1" {
		t.Errorf("Expected RemoteAddr fallback %q, got %q", "192.0.2.1", ip)
	}
}

// TestClientIPRemoteAddrFallback tests the fallback when no header is set,
// including port stripping.
func TestClientIPRemoteAddrFallback(t *testing.T) {
	ip := extractIP(t, nil, nil)
	if ip != "192.0.2.1" {
		t.Errorf("Expected %q, got %q", "192.0.2.1", ip)
	}
}

// TestStripPort tests the port-stripping edge cases.
func TestStripPort(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"192.0.2.1:8080", "192.0.2.1"},
		{"192.0.2.1", "192.0.2.1"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"2001:db8::1", "2001:db8::1"},
	}
	for _, c := range cases {
		if got := stripPort(c.in); got != c.out {
			t.Errorf("stripPort(%q): expected %q, got %q", c.in, c.out, got)
		}
	}
}
