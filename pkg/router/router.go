package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/davewasmer/foraker/pkg/common"
	"github.com/davewasmer/foraker/pkg/metrics"
	"github.com/davewasmer/foraker/pkg/middleware"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Router mounts controllers and plain handlers on an httprouter instance and
// implements http.Handler. It owns the outer request pipeline and graceful
// shutdown; dispatch semantics belong to the controller package.
type Router struct {
	config      RouterConfig
	router      *httprouter.Router
	logger      *zap.Logger
	middlewares []common.Middleware
	rateLimiter middleware.RateLimiter
	metrics     *metrics.DispatchMetrics
	wg          sync.WaitGroup
	shutdown    bool
	shutdownMu  sync.RWMutex
}

// contextKey is a type for context keys.
type contextKey string

// ParamsKey is the key used to store httprouter.Params in the request
// context, so route parameters can be accessed from handlers and middleware.
const ParamsKey contextKey = "params"

// New creates a new Router with the given configuration. It initializes the
// underlying httprouter, sets up logging and metrics, and registers routes
// from sub-routers.
func New(config RouterConfig) *Router {
	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	r := &Router{
		config:      config,
		router:      httprouter.New(),
		logger:      logger,
		rateLimiter: middleware.NewUberRateLimiter(),
	}

	if config.EnableMetrics {
		r.metrics = config.Metrics
		if r.metrics == nil {
			metricsConfig := metrics.Config{}
			if config.MetricsConfig != nil {
				metricsConfig = *config.MetricsConfig
			}
			m, err := metrics.New(metricsConfig)
			if err != nil {
				logger.Error("Failed to register metrics collectors", zap.Error(err))
			} else {
				r.metrics = m
			}
		}
	}

	// Client IP extraction runs ahead of everything else so the IP is
	// available to rate limiting and logging; the trace middleware wraps
	// even that so every log line can carry the trace ID.
	r.middlewares = append([]common.Middleware{middleware.ClientIPMiddleware(config.IPConfig)}, config.Middlewares...)
	if config.EnableTraceID {
		r.middlewares = append([]common.Middleware{middleware.Trace()}, r.middlewares...)
	}
	if r.metrics != nil {
		r.middlewares = append(r.middlewares, r.metrics.Middleware())
	}

	for _, sr := range config.SubRouters {
		r.registerSubRouter(sr)
	}

	return r
}

// registerSubRouter registers all routes in a sub-router, applying the
// sub-router's path prefix, overrides, and middlewares to each route.
func (r *Router) registerSubRouter(sr SubRouterConfig) {
	for _, route := range sr.Routes {
		fullPath := sr.PathPrefix + route.Path

		timeout := r.effectiveTimeout(route.Timeout, sr.TimeoutOverride)
		maxBodySize := r.effectiveMaxBodySize(route.MaxBodySize, sr.MaxBodySizeOverride)
		rateLimit := r.effectiveRateLimit(route.RateLimit, sr.RateLimitOverride)

		handler := r.wrapHandler(r.routeHandler(route), timeout, maxBodySize, rateLimit, append(sr.Middlewares, route.Middlewares...))
		for _, method := range route.Methods {
			r.router.Handle(method, fullPath, wrapParams(handler))
		}
	}
}

// RegisterRoute registers a single route with the router.
func (r *Router) RegisterRoute(route RouteConfig) {
	timeout := r.effectiveTimeout(route.Timeout, 0)
	maxBodySize := r.effectiveMaxBodySize(route.MaxBodySize, 0)
	rateLimit := r.effectiveRateLimit(route.RateLimit, nil)

	handler := r.wrapHandler(r.routeHandler(route), timeout, maxBodySize, rateLimit, route.Middlewares)
	for _, method := range route.Methods {
		r.router.Handle(method, route.Path, wrapParams(handler))
	}
}

// routeHandler builds the innermost handler for a route: a controller
// dispatch when a controller is bound, the plain handler otherwise.
func (r *Router) routeHandler(route RouteConfig) http.HandlerFunc {
	if route.Controller == nil {
		if route.Handler == nil {
			panic(fmt.Sprintf("router: route %q has neither a controller nor a handler", route.Path))
		}
		return route.Handler
	}

	ctrl := route.Controller
	action := route.Action
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &sentWriter{ResponseWriter: w}
		outcome, _ := ctrl.Dispatch(action, sw, req, func(err error) {
			if err != nil {
				r.handleError(sw, req, err, http.StatusInternalServerError, "Dispatch failed")
				return
			}
			// A skipped dispatch hands the request back to the framework.
			// When the declining handler already sent the response there is
			// nothing to fall through to; otherwise it is a 404.
			if sw.wrote {
				return
			}
			http.NotFound(sw, req)
		})
		if r.metrics != nil {
			r.metrics.ObserveDispatch(ctrl.Name(), action, outcome.String(), time.Since(start))
		}
	}
}

// sentWriter records whether the response has been started, so the dispatch
// continuation can tell a declined request that was already answered from one
// that still needs a fallthrough response.
type sentWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *sentWriter) WriteHeader(statusCode int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *sentWriter) Write(b []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(b)
}

func (w *sentWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// wrapHandler wraps a handler with the full request pipeline: recovery,
// global and route middlewares, rate limiting, body size limits, and
// timeouts, with a shutdown guard closest to the handler.
func (r *Router) wrapHandler(handler http.HandlerFunc, timeout time.Duration, maxBodySize int64, rateLimit *middleware.RateLimitConfig, middlewares []common.Middleware) http.Handler {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Register with the wait group before checking shutdown status so
		// Shutdown cannot miss an in-flight request.
		r.wg.Add(1)
		defer r.wg.Done()

		r.shutdownMu.RLock()
		isShutdown := r.shutdown
		r.shutdownMu.RUnlock()
		if isShutdown {
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}

		handler(w, req)
	}))

	chain := common.NewMiddlewareChain(middleware.Recovery(r.logger))
	chain = chain.Append(r.middlewares...)
	chain = chain.Append(middlewares...)
	if rateLimit != nil {
		chain = chain.Append(middleware.RateLimit(rateLimit, r.rateLimiter, r.logger))
	}
	if maxBodySize > 0 {
		chain = chain.Append(middleware.MaxBodySize(maxBodySize))
	}
	if timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout))
	}

	return chain.Then(h)
}

// wrapParams converts an http.Handler to an httprouter.Handle, storing the
// route parameters in the request context so handlers can access them.
func wrapParams(handler http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(req.Context(), ParamsKey, ps)
		handler.ServeHTTP(w, req.WithContext(ctx))
	}
}

// ServeHTTP implements the http.Handler interface by delegating to the
// underlying httprouter. The per-route pipeline is baked in at registration
// time.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Shutdown gracefully shuts down the router. It stops accepting new requests
// and waits for existing requests to complete. If the context is canceled
// before all requests complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetParams retrieves the httprouter.Params from the request context.
func GetParams(r *http.Request) httprouter.Params {
	params, _ := r.Context().Value(ParamsKey).(httprouter.Params)
	return params
}

// GetParam retrieves a specific route parameter from the request context.
func GetParam(r *http.Request, name string) string {
	return GetParams(r).ByName(name)
}

// handleError handles an error by logging it and returning an appropriate
// HTTP response. A *HTTPError overrides the default status code and message.
func (r *Router) handleError(w http.ResponseWriter, req *http.Request, err error, statusCode int, message string) {
	fields := []zap.Field{
		zap.Error(err),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	if r.config.EnableTraceID {
		if traceID := middleware.GetTraceID(req); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
	}
	r.logger.Error(message, fields...)

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		statusCode = httpErr.StatusCode
		message = httpErr.Message
	}

	http.Error(w, message, statusCode)
}

// effectiveTimeout returns the effective timeout for a route, considering
// route, sub-router, and global settings in that order of precedence.
func (r *Router) effectiveTimeout(routeTimeout, subRouterTimeout time.Duration) time.Duration {
	if routeTimeout > 0 {
		return routeTimeout
	}
	if subRouterTimeout > 0 {
		return subRouterTimeout
	}
	return r.config.GlobalTimeout
}

// effectiveMaxBodySize returns the effective max body size for a route,
// considering route, sub-router, and global settings in that order of
// precedence.
func (r *Router) effectiveMaxBodySize(routeMaxBodySize, subRouterMaxBodySize int64) int64 {
	if routeMaxBodySize > 0 {
		return routeMaxBodySize
	}
	if subRouterMaxBodySize > 0 {
		return subRouterMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

// effectiveRateLimit returns the effective rate limit for a route,
// considering route, sub-router, and global settings in that order of
// precedence.
func (r *Router) effectiveRateLimit(routeRateLimit, subRouterRateLimit *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if routeRateLimit != nil {
		return routeRateLimit
	}
	if subRouterRateLimit != nil {
		return subRouterRateLimit
	}
	return r.config.GlobalRateLimit
}

// HTTPError represents an HTTP error with a status code and message. A
// handler or filter that fails a dispatch with an HTTPError controls the
// exact error response sent to the client.
type HTTPError struct {
	StatusCode int    // HTTP status code (e.g., 400, 404, 500)
	Message    string // Error message to be sent in the response body
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the specified status code and
// message.
func NewHTTPError(statusCode int, message string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message}
}
