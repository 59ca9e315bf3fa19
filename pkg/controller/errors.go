package controller

import (
	"fmt"
)

// ConflictingOptionsError is returned when a filter declaration supplies both
// Only and Except. The two lists are mutually exclusive; a filter is either
// allow-listed or deny-listed, never both.
type ConflictingOptionsError struct {
	Filter string // Name of the filter being declared
}

// Error implements the error interface.
func (e *ConflictingOptionsError) Error() string {
	return fmt.Sprintf("filter %q declares both Only and Except; supply at most one", e.Filter)
}

// InvalidFilterNameError is returned when a filter is declared with an empty
// name. Filters are referenced by name at dispatch time, so every declaration
// needs one.
type InvalidFilterNameError struct {
	Stage Stage // Stage the declaration targeted
}

// Error implements the error interface.
func (e *InvalidFilterNameError) Error() string {
	return fmt.Sprintf("%s filter declared with an empty name", e.Stage)
}

// UnknownFilterError is returned when a skip operation targets a filter that
// was never declared for the given stage.
type UnknownFilterError struct {
	Filter string // Name of the filter the skip targeted
	Stage  Stage  // Stage the skip targeted
}

// Error implements the error interface.
func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("cannot skip %s filter %q: no such filter declared", e.Stage, e.Filter)
}

// UndefinedActionError is returned by Dispatch when the requested action has
// no handler defined at the controller's own level. Inherited handlers do not
// satisfy an action lookup; each controller must define the actions it serves.
type UndefinedActionError struct {
	Controller string // Name of the controller
	Action     string // Name of the requested action
}

// Error implements the error interface.
func (e *UndefinedActionError) Error() string {
	return fmt.Sprintf("controller %q does not define action %q", e.Controller, e.Action)
}

// UndefinedFilterError is returned by Dispatch when a declared filter name
// does not resolve to any handler in the controller's handler table.
type UndefinedFilterError struct {
	Controller string // Name of the controller
	Filter     string // Name of the unresolved filter
}

// Error implements the error interface.
func (e *UndefinedFilterError) Error() string {
	return fmt.Sprintf("controller %q declares filter %q but defines no handler for it", e.Controller, e.Filter)
}

// DualCompletionError is returned when a handler signals completion two ways:
// it returned a Future and also fired its done trigger. Exactly one of the
// two is allowed per invocation.
type DualCompletionError struct {
	Controller string // Name of the controller
	Handler    string // Name of the offending handler
}

// Error implements the error interface.
func (e *DualCompletionError) Error() string {
	return fmt.Sprintf("handler %q on controller %q signaled completion two ways (returned a future and fired its done trigger)", e.Handler, e.Controller)
}

// MissingCompletionSignalError is returned under the strict completion policy
// when a handler returns without sending a response, returning a Future, or
// firing its done trigger. A silent handler is almost always a bug; an auth
// filter that forgets to signal would otherwise no-op the whole chain.
type MissingCompletionSignalError struct {
	Controller string // Name of the controller
	Handler    string // Name of the offending handler
}

// Error implements the error interface.
func (e *MissingCompletionSignalError) Error() string {
	return fmt.Sprintf("handler %q on controller %q finished without signaling completion (return a future, fire done, or send a response)", e.Handler, e.Controller)
}

// IncompleteActionError is returned when the entire handler chain runs to
// completion but no handler sent a response. Every action must either send a
// response or explicitly error or skip.
type IncompleteActionError struct {
	Controller string // Name of the controller
	Action     string // Name of the dispatched action
}

// Error implements the error interface.
func (e *IncompleteActionError) Error() string {
	return fmt.Sprintf("action %q on controller %q completed without sending a response", e.Action, e.Controller)
}
