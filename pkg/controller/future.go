package controller

import (
	"fmt"
	"sync"
)

// Future represents a handler computation that outlives the handler call.
// A handler that needs to do asynchronous work returns a Future and settles
// it from its own goroutine; the dispatcher suspends until the Future
// settles before advancing the chain.
//
// A Future settles exactly once. Resolve and Reject calls after the first
// settlement are no-ops, so a computation that races past an aborted chain
// cannot resurrect it.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewFuture returns an unsettled Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Go runs fn in a new goroutine and returns a Future that settles with fn's
// result. A panic in fn rejects the Future instead of crashing the process.
func Go(fn func() error) *Future {
	f := NewFuture()
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				f.Reject(panicError(rec))
			}
		}()
		if err := fn(); err != nil {
			f.Reject(err)
		} else {
			f.Resolve()
		}
	}()
	return f
}

// Resolved returns a Future that is already resolved.
func Resolved() *Future {
	f := NewFuture()
	f.Resolve()
	return f
}

// Rejected returns a Future that is already rejected with err.
func Rejected(err error) *Future {
	f := NewFuture()
	f.Reject(err)
	return f
}

// Resolve settles the Future successfully. No-op if already settled.
func (f *Future) Resolve() {
	f.settle(nil)
}

// Reject settles the Future with err. No-op if already settled.
func (f *Future) Reject(err error) {
	f.settle(err)
}

// Settled returns a channel that is closed once the Future settles.
func (f *Future) Settled() <-chan struct{} {
	return f.done
}

// Err returns the rejection error, or nil for a resolved Future.
// Only valid once Settled is closed.
func (f *Future) Err() error {
	return f.err
}

func (f *Future) settle(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is the single-shot continuation trigger handed to every handler.
// Firing it with nil skips the rest of the chain and hands control back to
// the surrounding framework; firing it with an error aborts the chain with
// that error. Calls after the first are no-ops.
type Done func(err error)

// signal records the first firing of a handler's done trigger. The buffered
// channel lets the dispatcher observe a late firing while it is suspended on
// a returned Future (which is a dual-completion error).
type signal struct {
	mu    sync.Mutex
	fired bool
	err   error
	ch    chan error
}

func newSignal() *signal {
	return &signal{ch: make(chan error, 1)}
}

// trigger records the firing. Subsequent calls are ignored.
func (s *signal) trigger(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return
	}
	s.fired = true
	s.err = err
	s.ch <- err
}

// state reports whether the trigger has fired and with what error.
func (s *signal) state() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired, s.err
}

// panicError converts a recovered panic value into an error, passing through
// values that already are errors.
func panicError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("handler panic: %v", rec)
}
