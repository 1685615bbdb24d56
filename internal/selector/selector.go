// Package selector implements subscriber interest for the propagation engine.
//
// A Selector is a pure predicate/projector pair: Match decides whether an
// event concerns a subscriber, Project produces the (possibly transformed)
// view delivered to it. Purity matters: predicates must depend only on the
// event, so that evaluation order across subscribers is inconsequential.
//
// Two standard selectors are provided - path-prefix and field-mask - plus
// And/Or combinators and a Func escape hatch for user-supplied pairs.
package selector

import (
	"github.com/roach88/helix/internal/change"
)

// View is the projected materialization of one matching event.
//
// Event is the underlying change, re-stamped by composite relays. Data is the
// projector's output: for identity projections it is the event's new value
// nested under its path; for field-mask projections it is the masked subset.
type View struct {
	Event change.Event
	Data  change.Value
}

// Selector decides whether an event is relevant and, if so, how it is
// presented to the subscriber.
//
// Both methods must be pure functions of the event: no side effects, no
// dependence on mutable external state.
type Selector interface {
	// Match reports whether the event concerns this selector at all.
	Match(ev change.Event) bool

	// Project transforms a matching event into the delivered view. The
	// second return is false when the projection suppresses delivery
	// entirely (a field-mask over an event that changed none of its
	// fields). Project is only called for events Match accepted.
	Project(ev change.Event) (View, bool)
}

// Prefix returns a selector matching any event whose path starts with the
// given prefix. Projection nests the event's new value under its full path;
// a Replace above the prefix is trimmed to the prefix subtree, so the view
// never carries data outside the subscriber's interest. Remove events carry
// no data; the removal is described by the event path itself.
func Prefix(prefix ...string) Selector {
	return prefixSelector{prefix: change.Path(prefix).Clone()}
}

// All returns the catch-all selector: prefix [], matching every path.
// Persistence collaborators subscribe with All.
func All() Selector {
	return prefixSelector{}
}

type prefixSelector struct {
	prefix change.Path
}

func (s prefixSelector) Match(ev change.Event) bool {
	// A Replace above the prefix still covers it.
	return ev.Path.HasPrefix(s.prefix) ||
		(ev.Kind == change.Replace && s.prefix.HasPrefix(ev.Path))
}

func (s prefixSelector) Project(ev change.Event) (View, bool) {
	if ev.Kind == change.Remove {
		return View{Event: ev}, true
	}
	if ev.Kind == change.Replace && len(ev.Path) < len(s.prefix) {
		// Match guaranteed ev.Path is an ancestor of the prefix, so the
		// remainder resolves inside the replaced value. A missing subtree
		// means the replace erased it.
		rest := s.prefix[len(ev.Path):]
		sub, ok := change.Resolve(ev.NewValue, rest)
		if !ok {
			return View{Event: ev}, true
		}
		return View{Event: ev, Data: change.Nest(s.prefix, sub)}, true
	}
	return View{Event: ev, Data: change.Nest(ev.Path, ev.NewValue)}, true
}

// Func wraps a user-supplied predicate/projector pair. Both functions must
// be pure. A nil projector means identity projection.
func Func(pred func(change.Event) bool, proj func(change.Event) (View, bool)) Selector {
	return funcSelector{pred: pred, proj: proj}
}

type funcSelector struct {
	pred func(change.Event) bool
	proj func(change.Event) (View, bool)
}

func (s funcSelector) Match(ev change.Event) bool {
	return s.pred != nil && s.pred(ev)
}

func (s funcSelector) Project(ev change.Event) (View, bool) {
	if s.proj == nil {
		return prefixSelector{}.Project(ev)
	}
	return s.proj(ev)
}

// Valid reports whether a selector is well formed enough to register. A nil
// selector, or a Func with a nil predicate, is malformed.
func Valid(s Selector) bool {
	if s == nil {
		return false
	}
	if fs, ok := s.(funcSelector); ok {
		return fs.pred != nil
	}
	return true
}
