package middleware

import (
	"context"
	"net/http"
	"strings"
)

// IPSourceType defines the source for client IP addresses.
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field.
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the leftmost entry of the X-Forwarded-For
	// header.
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header.
	IPSourceXRealIP IPSourceType = "x_real_ip"
)

// IPConfig defines configuration for client IP extraction.
type IPConfig struct {
	// Source specifies where to extract the client IP from.
	Source IPSourceType

	// TrustProxy determines whether proxy headers are trusted. When false,
	// RemoteAddr is always used regardless of Source.
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration.
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// clientIPKey is the context key under which the client IP is stored.
type clientIPKey struct{}

// ClientIP extracts the client IP from the request context.
// Returns an empty string if the ClientIPMiddleware did not run.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that extracts the client IP from
// the request and stores it in the request context, where rate limiting and
// logging pick it up.
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPKey{}, extractClientIP(r, config))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractClientIP(r *http.Request, config *IPConfig) string {
	var ip string
	if config.TrustProxy {
		switch config.Source {
		case IPSourceXForwardedFor:
			// The header is a comma-separated chain; the leftmost entry is
			// the originating client.
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				ip = strings.TrimSpace(strings.Split(xff, ",")[0])
			}
		case IPSourceXRealIP:
			ip = r.Header.Get("X-Real-IP")
		}
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return stripPort(ip)
}

// stripPort removes a trailing :port from an address, leaving bracketed IPv6
// hosts intact.
func stripPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i != -1 {
		host := addr[:i]
		// More than one colon without brackets means a bare IPv6 address.
		if strings.HasPrefix(addr, "[") {
			return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
		}
		if !strings.Contains(host, ":") {
			return host
		}
	}
	return addr
}
