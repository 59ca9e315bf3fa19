package controller

import (
	"net/http"

	"go.uber.org/zap"
)

// Outcome is the terminal state of one dispatch.
type Outcome int

const (
	// OutcomeCompleted means every applicable handler ran and the response
	// was sent. The framework continuation is not invoked.
	OutcomeCompleted Outcome = iota

	// OutcomeSkipped means a handler declined the dispatch by firing done
	// with no error; remaining handlers did not run and control was handed
	// back to the surrounding framework.
	OutcomeSkipped

	// OutcomeFailed means a handler errored, panicked, or misused the
	// completion protocol; remaining handlers did not run and the error was
	// passed to the surrounding framework.
	OutcomeFailed
)

// String returns the outcome name, as used in logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "completed"
	}
}

// chainStep is one resolved entry of a handler chain.
type chainStep struct {
	name    string
	handler Handler
}

// stepResult is the dispatcher's verdict after running one handler.
type stepResult int

const (
	stepContinue stepResult = iota // advance to the next handler
	stepSkip                       // abort, hand control back to the framework
	stepFail                       // abort with an error
)

// Dispatch executes the handler chain for one action: the applicable before
// filters, the action handler, then the applicable after filters, strictly
// in sequence. Handlers run in declaration order, ancestors first.
//
// next is the surrounding framework's continuation. It is invoked at most
// once: with nil when a handler skips the chain, with the error when the
// dispatch fails, and not at all when the chain completes and the response
// was sent. The returned Outcome and error mirror what next observes.
func (c *Controller) Dispatch(action string, w http.ResponseWriter, r *http.Request, next func(error)) (Outcome, error) {
	ctx := &Context{
		Request:    r,
		writer:     &trackingWriter{ResponseWriter: w},
		logger:     c.logger.With(zap.String("controller", c.name), zap.String("action", action)),
		controller: c.name,
		action:     action,
	}

	chain, err := c.resolveChain(action)
	if err != nil {
		return c.fail(ctx, err, next)
	}

	for _, step := range chain {
		result, err := c.runHandler(ctx, step)
		switch result {
		case stepSkip:
			ctx.logger.Debug("Dispatch skipped", zap.String("handler", step.name))
			next(nil)
			return OutcomeSkipped, nil
		case stepFail:
			ctx.logger.Error("Dispatch failed",
				zap.String("handler", step.name),
				zap.Error(err),
			)
			next(err)
			return OutcomeFailed, err
		}
	}

	if !ctx.Sent() {
		return c.fail(ctx, &IncompleteActionError{Controller: c.name, Action: action}, next)
	}

	ctx.logger.Debug("Dispatch completed")
	return OutcomeCompleted, nil
}

// Handler adapts an action to a plain http.Handler. Dispatch failures render
// a 500 and a skip falls through to a 404; mounting through the router
// package gives richer error rendering.
func (c *Controller) Handler(action string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &trackingWriter{ResponseWriter: w}
		c.Dispatch(action, tw, r, func(err error) {
			if err != nil {
				http.Error(tw, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			// A skip after the declining handler already sent the response
			// leaves nothing for the fallthrough to do.
			if tw.sent() {
				return
			}
			http.NotFound(tw, r)
		})
	})
}

// resolveChain validates the dispatch preconditions and builds the ordered
// handler chain. The chain is computed fresh per dispatch; only/except
// evaluation depends on the action name.
func (c *Controller) resolveChain(action string) ([]chainStep, error) {
	actionHandler, ok := c.actions[action]
	if !ok {
		return nil, &UndefinedActionError{Controller: c.name, Action: action}
	}

	before := c.registry.filtersFor(action, StageBefore)
	after := c.registry.filtersFor(action, StageAfter)

	chain := make([]chainStep, 0, len(before)+len(after)+1)
	for _, name := range before {
		h, ok := c.handlers[name]
		if !ok {
			return nil, &UndefinedFilterError{Controller: c.name, Filter: name}
		}
		chain = append(chain, chainStep{name: name, handler: h})
	}
	chain = append(chain, chainStep{name: action, handler: actionHandler})
	for _, name := range after {
		h, ok := c.handlers[name]
		if !ok {
			return nil, &UndefinedFilterError{Controller: c.name, Filter: name}
		}
		chain = append(chain, chainStep{name: name, handler: h})
	}
	return chain, nil
}

// runHandler invokes one handler and reconciles its completion signals into
// a single verdict:
//
//   - done fired with an error: abort with that error
//   - done fired without an error: skip the rest of the chain
//   - Future returned: suspend until it settles, then fail on rejection or
//     continue on resolution (skip instead if the response was sent while
//     the handler ran)
//   - both: DualCompletionError, even when done fires late during the
//     suspension
//   - neither: implicit success when the response was sent or the lenient
//     policy is active, MissingCompletionSignalError otherwise
//
// A synchronous panic aborts the chain with the recovered value.
func (c *Controller) runHandler(ctx *Context, step chainStep) (stepResult, error) {
	sig := newSignal()
	fut, err := invokeHandler(step.handler, ctx, sig.trigger)
	if err != nil {
		return stepFail, err
	}

	fired, sigErr := sig.state()
	if fut != nil {
		if fired {
			return stepFail, &DualCompletionError{Controller: c.name, Handler: step.name}
		}
		select {
		case <-fut.Settled():
			// The select can take this branch even when the done trigger
			// fired while the dispatcher was suspended and both channels are
			// ready, so the trigger has to be re-checked.
			if fired, _ := sig.state(); fired {
				return stepFail, &DualCompletionError{Controller: c.name, Handler: step.name}
			}
			if ferr := fut.Err(); ferr != nil {
				return stepFail, ferr
			}
			if ctx.Sent() {
				// The handler's side effects finished the response; the
				// rest of the chain is moot.
				return stepSkip, nil
			}
			return stepContinue, nil
		case <-sig.ch:
			return stepFail, &DualCompletionError{Controller: c.name, Handler: step.name}
		}
	}

	if fired {
		if sigErr != nil {
			return stepFail, sigErr
		}
		return stepSkip, nil
	}

	if ctx.Sent() || c.lenient {
		return stepContinue, nil
	}
	return stepFail, &MissingCompletionSignalError{Controller: c.name, Handler: step.name}
}

// fail reports a dispatch-level failure through the log, the framework
// continuation, and the return values.
func (c *Controller) fail(ctx *Context, err error, next func(error)) (Outcome, error) {
	ctx.logger.Error("Dispatch failed", zap.Error(err))
	next(err)
	return OutcomeFailed, err
}

// invokeHandler calls the handler, converting a synchronous panic into an
// error so a throwing handler aborts the chain instead of the request
// goroutine.
func invokeHandler(h Handler, ctx *Context, done Done) (fut *Future, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fut = nil
			err = panicError(rec)
		}
	}()
	return h(ctx, done), nil
}
