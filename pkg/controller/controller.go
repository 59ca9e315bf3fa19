package controller

import (
	"slices"

	"go.uber.org/zap"
)

// Handler processes one step of a dispatch chain: a filter or the action
// itself. It receives the dispatch Context and a single-shot done trigger,
// and must signal completion exactly one way before returning:
//
//   - return a Future (the dispatcher suspends until it settles),
//   - fire done (nil skips the rest of the chain, an error aborts it), or
//   - send the response through ctx.Writer and return nil.
//
// Returning nil without any of the above is a MissingCompletionSignalError
// under the default strict policy. Returning a Future and also firing done
// is always a DualCompletionError.
type Handler func(ctx *Context, done Done) *Future

// Def describes one level of a controller hierarchy. Levels form a chain
// through Extends; filter declarations compose ancestor-first, so an
// authentication filter declared on a base Def runs before anything a
// descendant adds, for both stages.
type Def struct {
	// Name identifies the controller in errors, logs, and metrics.
	// Only the leaf Def's name is used.
	Name string

	// Extends points at the parent level, or nil for a root Def.
	Extends *Def

	// Filters declares this level's filters against the shared registry.
	// Invoked once per New, after every ancestor level's Filters.
	Filters func(*Registry)

	// Actions maps action names to their handlers. Dispatch only consults
	// the leaf Def's Actions; an action merely inherited from an ancestor is
	// an UndefinedActionError.
	Actions map[string]Handler

	// FilterHandlers maps filter names to their handlers. Lookups merge the
	// whole chain ancestor-first, so a descendant level can override an
	// inherited filter handler by redefining its name.
	FilterHandlers map[string]Handler

	// Lenient relaxes the completion-signal policy: a handler that returns
	// without signaling completion is treated as an implicit success instead
	// of a MissingCompletionSignalError. Read from the leaf Def only.
	Lenient bool

	// Logger is used for dispatch diagnostics. Defaults to a production zap
	// logger when nil.
	Logger *zap.Logger
}

// Controller is a constructed, dispatch-ready controller. The filter
// registry is composed once here and read-only afterward; Dispatch may be
// called from concurrent requests.
type Controller struct {
	name     string
	registry *Registry
	actions  map[string]Handler
	handlers map[string]Handler
	lenient  bool
	logger   *zap.Logger
}

// New composes a controller from a Def chain. It walks from the leaf up to
// the root, then applies each level's filter declarations ancestor-first
// against one shared registry. Any declaration error (conflicting options,
// skipping an undeclared filter) aborts construction.
func New(def *Def) (*Controller, error) {
	// Collect the chain leaf-first, then reverse it so the most ancestral
	// level registers its filters and handlers first.
	var levels []*Def
	for level := def; level != nil; level = level.Extends {
		levels = append(levels, level)
	}
	slices.Reverse(levels)

	registry := NewRegistry()
	handlers := make(map[string]Handler)
	for _, level := range levels {
		for name, h := range level.Actions {
			handlers[name] = h
		}
		for name, h := range level.FilterHandlers {
			handlers[name] = h
		}
		if level.Filters != nil {
			level.Filters(registry)
		}
		if err := registry.Err(); err != nil {
			return nil, err
		}
	}

	name := def.Name
	if name == "" {
		name = "controller"
	}

	logger := def.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
	}

	return &Controller{
		name:     name,
		registry: registry,
		actions:  def.Actions,
		handlers: handlers,
		lenient:  def.Lenient,
		logger:   logger,
	}, nil
}

// Name returns the controller's name.
func (c *Controller) Name() string {
	return c.name
}

// Lenient reports whether the relaxed completion-signal policy is active.
func (c *Controller) Lenient() bool {
	return c.lenient
}
