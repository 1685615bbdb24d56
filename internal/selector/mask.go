package selector

import (
	"github.com/roach88/helix/internal/change"
)

// FieldMask returns a selector that matches Update and Replace events
// touching any of the named fields, at any depth, and projects only those
// fields from the new value. An event that changed none of the masked fields
// is suppressed entirely, so a subscriber can declare "I only care about
// field F two levels deep" and hear nothing else.
func FieldMask(fields ...string) Selector {
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return maskSelector{fields: set}
}

type maskSelector struct {
	fields map[string]bool
}

func (s maskSelector) Match(ev change.Event) bool {
	if ev.Kind != change.Update && ev.Kind != change.Replace {
		return false
	}
	_, okNew := s.masked(ev.Path, ev.NewValue)
	_, okOld := s.masked(ev.Path, ev.OldValue)
	return okNew || okOld
}

func (s maskSelector) Project(ev change.Event) (View, bool) {
	newMasked, okNew := s.masked(ev.Path, ev.NewValue)
	oldMasked, okOld := s.masked(ev.Path, ev.OldValue)

	if !okNew && !okOld {
		return View{}, false
	}
	// Idempotence: identical masked content delivers nothing.
	if okNew && okOld && change.Equal(newMasked, oldMasked) {
		return View{}, false
	}

	data := newMasked
	if !okNew {
		// Every masked field vanished; deliver the emptied shape so the
		// subscriber's cache converges rather than going stale.
		data = change.Object{}
	}
	return View{Event: ev, Data: data}, true
}

// masked nests value under path and filters the result down to the masked
// fields. The second return is false when nothing masked remains.
func (s maskSelector) masked(path change.Path, value change.Value) (change.Value, bool) {
	if value == nil {
		return nil, false
	}
	// A masked field on the path itself keeps the whole subtree under it.
	for i, key := range path {
		if s.fields[key] {
			return change.Nest(path[:i+1], value), true
		}
	}
	filtered, ok := filterFields(value, s.fields)
	if !ok {
		return nil, false
	}
	return change.Nest(path, filtered), true
}

// filterFields keeps masked keys (with their full subtrees) and any object
// branches that transitively contain masked keys.
func filterFields(v change.Value, fields map[string]bool) (change.Value, bool) {
	obj, ok := v.(change.Object)
	if !ok {
		return nil, false
	}

	out := make(change.Object)
	for k, child := range obj {
		if fields[k] {
			out[k] = change.Clone(child)
			continue
		}
		if sub, ok := filterFields(child, fields); ok {
			out[k] = sub
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
