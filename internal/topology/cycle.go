package topology

import (
	"fmt"
	"strings"
)

// detectRelayCycles finds cycles in the composite upstream graph. The
// runtime rejects cycle-forming links too, but catching them here means a
// bad topology fails at compile time with the full cycle path instead of
// halfway through graph construction.
//
// Uses Tarjan's strongly connected components over the upstream edges.
// Masters never have upstreams, so only composite-to-composite edges can
// participate in a cycle.
func detectRelayCycles(composites []CompositeSpec) []error {
	if len(composites) == 0 {
		return nil
	}

	isComposite := make(map[string]bool, len(composites))
	for _, c := range composites {
		isComposite[c.Name] = true
	}

	graph := make(map[string][]string, len(composites))
	for _, c := range composites {
		if graph[c.Name] == nil {
			graph[c.Name] = []string{}
		}
		if isComposite[c.Upstream] {
			graph[c.Name] = append(graph[c.Name], c.Upstream)
		}
	}

	var errs []error
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			errs = append(errs, fmt.Errorf("relay cycle: %s", strings.Join(cyclePath(scc), " -> ")))
		}
	}
	return errs
}

func hasSelfLoop(node string, graph map[string][]string) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components. Single nodes without a
// self-loop are not cycles.
func tarjanSCC(graph map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for node := range graph {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cyclePath renders an SCC as a closed path for the error message.
func cyclePath(scc []string) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}
	// Tarjan pops members in reverse traversal order; reversing gives a
	// readable walk, closed back on the first node.
	path := make([]string, 0, len(scc)+1)
	for i := len(scc) - 1; i >= 0; i-- {
		path = append(path, scc[i])
	}
	return append(path, path[0])
}
