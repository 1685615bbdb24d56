package topology

import (
	"fmt"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/selector"
)

// Spec is a declarative description of a node graph: which masters exist
// and what data they start with, which composites relay from which
// upstreams, and which expressions observe what through which selectors.
type Spec struct {
	Masters     []MasterSpec
	Composites  []CompositeSpec
	Expressions []ExpressionSpec
}

// MasterSpec declares one master node and its initial canonical data.
type MasterSpec struct {
	Name string
	Data change.Object
}

// CompositeSpec declares a relay node. Upstream names the master or
// composite it links to; Select filters what it accepts before relaying.
type CompositeSpec struct {
	Name     string
	Upstream string
	Select   SelectorSpec
}

// ExpressionSpec declares a derived-view node. Upstream lists the masters
// or composites it links to, each filtered by the same selector.
type ExpressionSpec struct {
	Name     string
	Upstream []string
	Select   SelectorSpec
}

// SelectorSpec is the declarative form of a selector. All takes
// precedence; Prefix and Fields compose conjunctively when both are set.
// An empty spec means match everything.
type SelectorSpec struct {
	All    bool
	Prefix []string
	Fields []string
}

// Build materializes the declared selector.
func (s SelectorSpec) Build() selector.Selector {
	if s.All {
		return selector.All()
	}
	var parts []selector.Selector
	if len(s.Prefix) > 0 {
		parts = append(parts, selector.Prefix(s.Prefix...))
	}
	if len(s.Fields) > 0 {
		parts = append(parts, selector.FieldMask(s.Fields...))
	}
	switch len(parts) {
	case 0:
		return selector.All()
	case 1:
		return parts[0]
	default:
		return selector.And(parts...)
	}
}

// nodeNames returns every declared node name, for reference checking.
func (s *Spec) nodeNames() map[string]string {
	names := make(map[string]string)
	for _, m := range s.Masters {
		names[m.Name] = "master"
	}
	for _, c := range s.Composites {
		names[c.Name] = "composite"
	}
	for _, e := range s.Expressions {
		names[e.Name] = "expression"
	}
	return names
}

// Validate checks the spec for structural problems before any node is
// built: duplicate names, dangling upstream references, expressions
// targeting other expressions, and relay cycles among composites.
func (s *Spec) Validate() []error {
	var errs []error

	seen := make(map[string]bool)
	check := func(kind, name string) {
		if name == "" {
			errs = append(errs, fmt.Errorf("%s with empty name", kind))
			return
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("duplicate node name %q", name))
		}
		seen[name] = true
	}
	for _, m := range s.Masters {
		check("master", m.Name)
	}
	for _, c := range s.Composites {
		check("composite", c.Name)
	}
	for _, e := range s.Expressions {
		check("expression", e.Name)
	}
	if len(errs) > 0 {
		return errs
	}

	names := s.nodeNames()
	for _, c := range s.Composites {
		kind, ok := names[c.Upstream]
		if !ok {
			errs = append(errs, fmt.Errorf("composite %q: unknown upstream %q", c.Name, c.Upstream))
			continue
		}
		if kind == "expression" {
			errs = append(errs, fmt.Errorf("composite %q: upstream %q is an expression, not a source", c.Name, c.Upstream))
		}
	}
	for _, e := range s.Expressions {
		if len(e.Upstream) == 0 {
			errs = append(errs, fmt.Errorf("expression %q: no upstream", e.Name))
		}
		for _, up := range e.Upstream {
			kind, ok := names[up]
			if !ok {
				errs = append(errs, fmt.Errorf("expression %q: unknown upstream %q", e.Name, up))
				continue
			}
			if kind == "expression" {
				errs = append(errs, fmt.Errorf("expression %q: upstream %q is an expression, not a source", e.Name, up))
			}
		}
	}

	errs = append(errs, detectRelayCycles(s.Composites)...)
	return errs
}
