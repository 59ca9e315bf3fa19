// Package controller provides declarative before/after filter chains for HTTP
// actions. Controllers declare named filters with allow/deny lists, inherit
// declarations from ancestor definitions, and dispatch requests through the
// resulting handler chain with a single reconciled completion outcome.
package controller

import (
	"slices"
)

// Stage identifies when a filter runs relative to the action.
type Stage int

const (
	// StageBefore filters run ahead of the action. They typically guard the
	// action (authentication, validation) and may abort the chain.
	StageBefore Stage = iota

	// StageAfter filters run once the action has finished. They typically
	// handle cross-cutting follow-up work (notification, audit logging).
	StageAfter
)

// String returns the stage name as used in the DSL.
func (s Stage) String() string {
	if s == StageAfter {
		return "after"
	}
	return "before"
}

// FilterOptions narrows the set of actions a filter applies to.
// Only and Except are mutually exclusive on a declaration; supplying both
// fails with ConflictingOptionsError. Skip operations interpret them
// differently, see Registry.SkipBefore.
type FilterOptions struct {
	Only   []string // Allow-list of action names
	Except []string // Deny-list of action names
}

// Only is a convenience constructor for FilterOptions with an allow-list.
func Only(actions ...string) FilterOptions {
	return FilterOptions{Only: actions}
}

// Except is a convenience constructor for FilterOptions with a deny-list.
func Except(actions ...string) FilterOptions {
	return FilterOptions{Except: actions}
}

// mergeOptions flattens a variadic option list into a single FilterOptions.
// Options are always normalized to slices; a declaration with no options
// yields empty lists, never nil semantics the resolution code must special
// case.
func mergeOptions(opts []FilterOptions) FilterOptions {
	var merged FilterOptions
	for _, o := range opts {
		merged.Only = append(merged.Only, o.Only...)
		merged.Except = append(merged.Except, o.Except...)
	}
	return merged
}

// filterDeclaration is one entry in a Registry. Declarations are created by
// Before/After and mutated only by a later skip targeting the same name and
// stage; they are never removed.
type filterDeclaration struct {
	name   string
	stage  Stage
	only   []string
	except []string
	skip   bool
}

// appliesTo reports whether the filter runs for the given action.
func (d *filterDeclaration) appliesTo(action string) bool {
	if d.skip {
		return false
	}
	if slices.Contains(d.except, action) {
		return false
	}
	return len(d.only) == 0 || slices.Contains(d.only, action)
}

// Registry accumulates ordered filter declarations for one controller.
// Declaration order is execution order within a stage, so ancestor levels
// must register before descendant levels (New takes care of that).
//
// Registry methods record the first declaration error instead of returning
// it; this keeps the DSL chainable inside a Def's Filters callback. New
// checks Err after running all levels and fails construction on any error.
type Registry struct {
	declarations []*filterDeclaration
	err          error
}

// NewRegistry returns an empty filter registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Before declares a filter that runs ahead of the action.
func (r *Registry) Before(name string, opts ...FilterOptions) *Registry {
	return r.declare(name, StageBefore, opts)
}

// After declares a filter that runs once the action has finished.
func (r *Registry) After(name string, opts ...FilterOptions) *Registry {
	return r.declare(name, StageAfter, opts)
}

// SkipBefore narrows or disables a previously declared before filter.
// With Only, the named actions are merged into the filter's deny-list (the
// filter still runs everywhere else). With Except, the named actions are
// merged into the filter's allow-list (the filter now runs only there). With
// no options the filter is disabled for every action.
// Skipping a filter that was never declared fails with UnknownFilterError.
func (r *Registry) SkipBefore(name string, opts ...FilterOptions) *Registry {
	return r.skipDeclaration(name, StageBefore, opts)
}

// SkipAfter narrows or disables a previously declared after filter.
// See SkipBefore for the option semantics.
func (r *Registry) SkipAfter(name string, opts ...FilterOptions) *Registry {
	return r.skipDeclaration(name, StageAfter, opts)
}

// Err returns the first error recorded by a declaration, if any.
func (r *Registry) Err() error {
	return r.err
}

func (r *Registry) declare(name string, stage Stage, opts []FilterOptions) *Registry {
	if r.err != nil {
		return r
	}
	if name == "" {
		r.err = &InvalidFilterNameError{Stage: stage}
		return r
	}
	merged := mergeOptions(opts)
	if len(merged.Only) > 0 && len(merged.Except) > 0 {
		r.err = &ConflictingOptionsError{Filter: name}
		return r
	}
	r.declarations = append(r.declarations, &filterDeclaration{
		name:   name,
		stage:  stage,
		only:   merged.Only,
		except: merged.Except,
	})
	return r
}

func (r *Registry) skipDeclaration(name string, stage Stage, opts []FilterOptions) *Registry {
	if r.err != nil {
		return r
	}
	decl := r.find(name, stage)
	if decl == nil {
		r.err = &UnknownFilterError{Filter: name, Stage: stage}
		return r
	}
	merged := mergeOptions(opts)
	if len(merged.Only) == 0 && len(merged.Except) == 0 {
		decl.skip = true
		return r
	}
	// Skip-with-Only removes the filter from those actions, so they join the
	// deny-list. Skip-with-Except keeps the filter on those actions only, so
	// they join the allow-list. Merges are deduplicating and order-stable.
	decl.except = mergeNames(decl.except, merged.Only)
	decl.only = mergeNames(decl.only, merged.Except)
	return r
}

// find locates the declaration matching name and stage, or nil.
func (r *Registry) find(name string, stage Stage) *filterDeclaration {
	for _, d := range r.declarations {
		if d.name == name && d.stage == stage {
			return d
		}
	}
	return nil
}

// filtersFor resolves the ordered list of filter names that apply to the
// given action for one stage. The list is computed fresh per dispatch;
// applicability depends on the action name, so there is nothing stable to
// cache.
func (r *Registry) filtersFor(action string, stage Stage) []string {
	var names []string
	for _, d := range r.declarations {
		if d.stage == stage && d.appliesTo(action) {
			names = append(names, d.name)
		}
	}
	return names
}

// mergeNames appends the entries of extra that are not already present in
// base, preserving declaration order.
func mergeNames(base, extra []string) []string {
	for _, name := range extra {
		if !slices.Contains(base, name) {
			base = append(base, name)
		}
	}
	return base
}
