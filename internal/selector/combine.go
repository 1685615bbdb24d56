package selector

import (
	"github.com/roach88/helix/internal/change"
)

// And returns a selector matching only events every child matches. The
// delivered view is the last child's projection, on the grounds that later
// children narrow earlier ones; delivery is suppressed if any child's
// projector suppresses.
func And(children ...Selector) Selector {
	return andSelector{children: children}
}

type andSelector struct {
	children []Selector
}

func (s andSelector) Match(ev change.Event) bool {
	if len(s.children) == 0 {
		return false
	}
	for _, c := range s.children {
		if !c.Match(ev) {
			return false
		}
	}
	return true
}

func (s andSelector) Project(ev change.Event) (View, bool) {
	var view View
	for _, c := range s.children {
		v, ok := c.Project(ev)
		if !ok {
			return View{}, false
		}
		view = v
	}
	return view, true
}

// Or returns a selector matching events any child matches. The delivered
// view is the first matching child's projection.
func Or(children ...Selector) Selector {
	return orSelector{children: children}
}

type orSelector struct {
	children []Selector
}

func (s orSelector) Match(ev change.Event) bool {
	for _, c := range s.children {
		if c.Match(ev) {
			return true
		}
	}
	return false
}

func (s orSelector) Project(ev change.Event) (View, bool) {
	for _, c := range s.children {
		if c.Match(ev) {
			return c.Project(ev)
		}
	}
	return View{}, false
}
