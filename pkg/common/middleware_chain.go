package common

import (
	"net/http"
)

// MiddlewareChain is an ordered list of middleware. The first entry is the
// outermost wrapper when the chain is applied to a handler.
type MiddlewareChain []Middleware

// NewMiddlewareChain creates a new middleware chain from the given middleware.
func NewMiddlewareChain(middlewares ...Middleware) MiddlewareChain {
	return middlewares
}

// Append adds middleware to the end of the chain.
func (c MiddlewareChain) Append(middlewares ...Middleware) MiddlewareChain {
	return append(c, middlewares...)
}

// Prepend adds middleware to the beginning of the chain.
func (c MiddlewareChain) Prepend(middlewares ...Middleware) MiddlewareChain {
	result := make(MiddlewareChain, 0, len(middlewares)+len(c))
	result = append(result, middlewares...)
	return append(result, c...)
}

// Then applies the middleware chain to a handler, wrapping it so that the
// chain's first middleware runs first.
func (c MiddlewareChain) Then(h http.Handler) http.Handler {
	for i := len(c) - 1; i >= 0; i-- {
		h = c[i](h)
	}
	return h
}

// ThenFunc applies the middleware chain to a handler function.
func (c MiddlewareChain) ThenFunc(h http.HandlerFunc) http.Handler {
	return c.Then(h)
}
