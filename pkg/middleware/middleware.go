// Package middleware provides a collection of HTTP middleware components for
// the foraker framework.
package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/davewasmer/foraker/pkg/common"
	"go.uber.org/zap"
)

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// Chain chains multiple middlewares together.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		return common.MiddlewareChain(middlewares).Then(next)
	}
}

// Recovery is a middleware that recovers from panics in handlers.
// It logs the panic and returns a 500 Internal Server Error response, so a
// panicking handler cannot take the server down.
func Recovery(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
					)

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Logging is a middleware that logs each request once it completes, with the
// log level escalating by status class: 5xx at Error, 4xx and slow requests
// at Warn, everything else at Debug to avoid log spam.
// If enableTraceID is true, the trace ID is included in the fields when
// present.
func Logging(logger *zap.Logger, enableTraceID bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.statusCode),
				zap.Duration("duration", duration),
			}
			if enableTraceID {
				if traceID := GetTraceID(r); traceID != "" {
					fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.Error("Server error", fields...)
			case rw.statusCode >= 400:
				logger.Warn("Client error", fields...)
			case duration > time.Second:
				logger.Warn("Slow request", fields...)
			default:
				logger.Debug("Request", fields...)
			}
		})
	}
}

// MaxBodySize is a middleware that limits the size of the request body.
func MaxBodySize(maxSize int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout is a middleware that enforces a deadline on the request. The
// handler runs in its own goroutine against a mutex-guarded writer; when the
// deadline passes first, a 408 Request Timeout is written and the handler's
// later writes are discarded by net/http.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			var mu sync.Mutex
			wrapped := &mutexWriter{ResponseWriter: w, mu: &mu}

			done := make(chan struct{})
			go func() {
				next.ServeHTTP(wrapped, r)
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				mu.Lock()
				http.Error(w, "Request Timeout", http.StatusRequestTimeout)
				mu.Unlock()
			}
		})
	}
}

// statusWriter is a wrapper around http.ResponseWriter that captures the
// status code for logging.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and calls the underlying
// ResponseWriter.WriteHeader.
func (w *statusWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush calls the underlying ResponseWriter.Flush if it implements
// http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// mutexWriter is a wrapper around http.ResponseWriter that serializes access
// with a mutex, for handlers that may race a timeout response.
type mutexWriter struct {
	http.ResponseWriter
	mu *sync.Mutex
}

// WriteHeader acquires the mutex and calls the underlying
// ResponseWriter.WriteHeader.
func (w *mutexWriter) WriteHeader(statusCode int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write acquires the mutex and calls the underlying ResponseWriter.Write.
func (w *mutexWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ResponseWriter.Write(b)
}

// Flush acquires the mutex and calls the underlying ResponseWriter.Flush if
// it implements http.Flusher.
func (w *mutexWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
