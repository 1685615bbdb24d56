package topology

import (
	"errors"
	"fmt"

	"github.com/roach88/helix/internal/node"
)

// Graph is a materialized topology: live nodes, linked and ready to
// mutate and observe.
type Graph struct {
	Masters     map[string]*node.Master
	Composites  map[string]*node.Composite
	Expressions map[string]*node.Expression
}

// Source looks up a master or composite by name.
func (g *Graph) Source(name string) (node.Source, bool) {
	if m, ok := g.Masters[name]; ok {
		return m, true
	}
	if c, ok := g.Composites[name]; ok {
		return c, true
	}
	return nil, false
}

// Build materializes the spec into a live node graph. Masters come up
// first, then composites in upstream order, then expressions link last so
// their initial snapshots see fully relayed data.
func Build(spec *Spec) (*Graph, error) {
	if errs := spec.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid topology: %w", errors.Join(errs...))
	}

	g := &Graph{
		Masters:     make(map[string]*node.Master, len(spec.Masters)),
		Composites:  make(map[string]*node.Composite, len(spec.Composites)),
		Expressions: make(map[string]*node.Expression, len(spec.Expressions)),
	}

	for _, m := range spec.Masters {
		g.Masters[m.Name] = node.NewMaster(m.Data, node.WithIdentity(m.Name))
	}

	// Composites may chain off each other; link each as soon as its
	// upstream exists. Validate ruled out cycles, so every pass links at
	// least one remaining composite.
	pending := append([]CompositeSpec(nil), spec.Composites...)
	for len(pending) > 0 {
		progressed := false
		var next []CompositeSpec
		for _, c := range pending {
			upstream, ok := g.Source(c.Upstream)
			if !ok {
				next = append(next, c)
				continue
			}
			comp := node.NewComposite(node.WithCompositeIdentity(c.Name))
			if _, err := comp.Link(upstream, c.Select.Build()); err != nil {
				return nil, fmt.Errorf("link composite %q to %q: %w", c.Name, c.Upstream, err)
			}
			g.Composites[c.Name] = comp
			progressed = true
		}
		if !progressed {
			return nil, fmt.Errorf("composites %v could not be linked", pendingNames(next))
		}
		pending = next
	}

	for _, e := range spec.Expressions {
		expr := node.NewExpression()
		for _, up := range e.Upstream {
			upstream, _ := g.Source(up)
			if _, err := expr.Link(upstream, e.Select.Build()); err != nil {
				return nil, fmt.Errorf("link expression %q to %q: %w", e.Name, up, err)
			}
		}
		g.Expressions[e.Name] = expr
	}

	return g, nil
}

func pendingNames(pending []CompositeSpec) []string {
	names := make([]string, len(pending))
	for i, c := range pending {
		names[i] = c.Name
	}
	return names
}
