// Package router mounts foraker controllers on an httprouter instance and
// provides the surrounding request pipeline: recovery, logging, rate
// limiting, timeouts, metrics, and graceful shutdown.
package router

import (
	"net/http"
	"time"

	"github.com/davewasmer/foraker/pkg/common"
	"github.com/davewasmer/foraker/pkg/controller"
	"github.com/davewasmer/foraker/pkg/metrics"
	"github.com/davewasmer/foraker/pkg/middleware"
	"go.uber.org/zap"
)

// RouterConfig defines the global configuration for the router.
type RouterConfig struct {
	Logger            *zap.Logger                 // Logger for all router operations
	GlobalTimeout     time.Duration               // Default response timeout for all routes
	GlobalMaxBodySize int64                       // Default maximum request body size in bytes
	GlobalRateLimit   *middleware.RateLimitConfig // Default rate limit for all routes
	IPConfig          *middleware.IPConfig        // Configuration for client IP extraction
	EnableMetrics     bool                        // Enable Prometheus metrics collection
	EnableTraceID     bool                        // Attach trace IDs to requests and logs
	Metrics           *metrics.DispatchMetrics    // Pre-built collectors; created on demand when nil and EnableMetrics is set
	MetricsConfig     *metrics.Config             // Configuration used when collectors are created on demand
	SubRouters        []SubRouterConfig           // Sub-routers with their own configurations
	Middlewares       []common.Middleware         // Global middlewares applied to all routes
}

// SubRouterConfig defines configuration for a group of routes with a common
// path prefix. This allows for organizing routes into logical groups and
// applying shared configuration.
type SubRouterConfig struct {
	PathPrefix          string                      // Common path prefix for all routes in this sub-router
	TimeoutOverride     time.Duration               // Override global timeout for all routes in this sub-router
	MaxBodySizeOverride int64                       // Override global max body size for all routes in this sub-router
	RateLimitOverride   *middleware.RateLimitConfig // Override global rate limit for all routes in this sub-router
	Routes              []RouteConfig               // Routes in this sub-router
	Middlewares         []common.Middleware         // Middlewares applied to all routes in this sub-router
}

// RouteConfig binds a path to either a controller action or a plain handler.
// Exactly one of Controller/Action or Handler should be set; Controller wins
// when both are.
type RouteConfig struct {
	Path        string                      // Route path (prefixed with the sub-router path prefix if applicable)
	Methods     []string                    // HTTP methods this route handles
	Controller  *controller.Controller      // Controller whose action serves this route
	Action      string                      // Action name dispatched on the controller
	Handler     http.HandlerFunc            // Plain handler for routes without a controller
	Timeout     time.Duration               // Override timeout for this specific route
	MaxBodySize int64                       // Override max body size for this specific route
	RateLimit   *middleware.RateLimitConfig // Rate limit for this specific route
	Middlewares []common.Middleware         // Middlewares applied to this specific route
}
