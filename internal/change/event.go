package change

import (
	"fmt"
	"strings"
)

// Kind classifies one atomic mutation to a canonical data set.
type Kind int

const (
	// Insert adds a value at a path that does not yet resolve.
	Insert Kind = iota
	// Remove deletes the value at an existing path.
	Remove
	// Update overwrites the value at an existing path, preserving its
	// structural class (scalar stays scalar, object stays object).
	Update
	// Replace swaps the entire subtree at a path, shape unconstrained.
	// A Replace at the empty path swaps the whole canonical data set.
	Replace
)

var kindNames = map[Kind]string{
	Insert:  "insert",
	Remove:  "remove",
	Update:  "update",
	Replace: "replace",
}

// String returns the lowercase wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind converts a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown change kind %q", s)
}

// Path is an ordered sequence of keys identifying a location in a canonical
// data set. The empty path addresses the root.
type Path []string

// String renders the path as "/a/b/c"; the empty path renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// HasPrefix reports whether p starts with prefix. Every path has the empty
// prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, k := range prefix {
		if p[i] != k {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Event is the immutable description of one committed mutation.
//
// Seq strictly increases per origin and is never reused; consumers may use
// it to detect missed events or reordering. OldValue and NewValue are deep
// copies taken at commit time, so an Event stays valid however the canonical
// data evolves afterwards.
type Event struct {
	// Origin identifies the master that committed the mutation.
	Origin string

	// Kind is the mutation class.
	Kind Kind

	// Path addresses the mutated location.
	Path Path

	// OldValue is the value before the mutation, nil for Insert.
	OldValue Value

	// NewValue is the value after the mutation, nil for Remove.
	NewValue Value

	// Seq is the origin's logical clock reading for this mutation.
	Seq int64
}

// EditRequest is a mutation proposed by an expression node. It carries no
// authority: the nearest true master validates and either commits or rejects
// it through its ordinary mutate path.
type EditRequest struct {
	Path  Path
	Kind  Kind
	Value Value
}

// canonicalObject builds the hashable shape of an event. Absent values hash
// as null so that Insert and Remove events stay distinguishable from Updates
// carrying explicit nulls only by their kind.
func (e Event) canonicalObject() Object {
	path := make(Array, len(e.Path))
	for i, k := range e.Path {
		path[i] = String(k)
	}
	obj := Object{
		"origin": String(e.Origin),
		"kind":   String(e.Kind.String()),
		"path":   path,
		"seq":    Int(e.Seq),
	}
	if e.OldValue != nil {
		obj["old"] = e.OldValue
	} else {
		obj["old"] = Null{}
	}
	if e.NewValue != nil {
		obj["new"] = e.NewValue
	} else {
		obj["new"] = Null{}
	}
	return obj
}
