package harness

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/node"
	"github.com/roach88/helix/internal/selector"
	"github.com/roach88/helix/internal/topology"
)

// Run executes a scenario and returns the result.
//
// Each scenario builds a fresh node graph from its topology, so runs are
// isolated and deterministic: node identities come from the topology's
// declared names, sequence numbers start at 1, and the trace records
// events in synchronous delivery order.
func Run(scenario *Scenario) (*Result, error) {
	spec, errs := topology.Load(scenario.Topology, topology.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load topology: %w", errs[0])
	}
	graph, err := topology.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build topology: %w", err)
	}

	result := NewResult()

	// Trace every committed event, masters and composite relays alike.
	// Sorted attach order keeps multi-origin traces deterministic.
	tracer := &traceHandler{result: result}
	for _, name := range sortedNames(graph) {
		src, _ := graph.Source(name)
		if _, err := src.Subscribe(selector.All(), tracer); err != nil {
			return nil, fmt.Errorf("failed to attach tracer to %s: %w", name, err)
		}
	}

	for i, step := range scenario.Steps {
		if err := executeStep(graph, i, step, result); err != nil {
			return nil, err
		}
	}

	collectViews(graph, result)

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// traceHandler records every delivered event into the result.
type traceHandler struct {
	result *Result
}

func (h *traceHandler) OnChange(view selector.View) {
	h.result.addEventTrace(view.Event)
}

// executeStep runs one mutation or edit request and validates its expect
// clause. Step rejections that the scenario anticipated are not failures.
func executeStep(graph *topology.Graph, index int, step Step, result *Result) error {
	kind, err := change.ParseKind(step.Kind)
	if err != nil {
		return fmt.Errorf("step %d: %w", index, err)
	}
	path := parsePath(step.Path)

	var value change.Value
	if step.Value != nil {
		value, err = change.FromGo(step.Value)
		if err != nil {
			return fmt.Errorf("step %d: value: %w", index, err)
		}
	}

	ev, err := applyStep(graph, step, path, kind, value)

	wantErr := step.Expect != nil && step.Expect.Error != ""
	if err != nil {
		if !wantErr {
			result.AddError(fmt.Sprintf("step %d: unexpected rejection: %v", index, err))
			return nil
		}
		var nodeErr *node.Error
		if !errors.As(err, &nodeErr) || string(nodeErr.Code) != step.Expect.Error {
			result.AddError(fmt.Sprintf("step %d: expected rejection %s, got: %v",
				index, step.Expect.Error, err))
		}
		return nil
	}
	if wantErr {
		result.AddError(fmt.Sprintf("step %d: expected rejection %s, but step committed seq=%d",
			index, step.Expect.Error, ev.Seq))
		return nil
	}

	if step.Expect != nil {
		if step.Expect.Origin != "" && ev.Origin != step.Expect.Origin {
			result.AddError(fmt.Sprintf("step %d: expected origin %s, got %s",
				index, step.Expect.Origin, ev.Origin))
		}
		if step.Expect.Seq != 0 && ev.Seq != step.Expect.Seq {
			result.AddError(fmt.Sprintf("step %d: expected seq %d, got %d",
				index, step.Expect.Seq, ev.Seq))
		}
	}
	return nil
}

func applyStep(graph *topology.Graph, step Step, path change.Path, kind change.Kind, value change.Value) (change.Event, error) {
	if step.Node != "" {
		master, ok := graph.Masters[step.Node]
		if !ok {
			return change.Event{}, fmt.Errorf("unknown master %q", step.Node)
		}
		return master.Mutate(path, kind, value)
	}

	expr, ok := graph.Expressions[step.Expression]
	if !ok {
		return change.Event{}, fmt.Errorf("unknown expression %q", step.Expression)
	}
	return expr.RequestEdit(change.EditRequest{Path: path, Kind: kind, Value: value})
}

// parsePath splits a slash-separated path. "/" and "" address the root.
func parsePath(s string) change.Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return change.Path{}
	}
	return change.Path(strings.Split(s, "/"))
}

func collectViews(graph *topology.Graph, result *Result) {
	for name, m := range graph.Masters {
		data, _ := m.Snapshot()
		result.Views[name] = data
	}
	for name, c := range graph.Composites {
		data, _ := c.Snapshot()
		result.Views[name] = data
	}
	for name, e := range graph.Expressions {
		result.Views[name] = e.View()
	}
}

func sortedNames(graph *topology.Graph) []string {
	names := make([]string, 0, len(graph.Masters)+len(graph.Composites))
	for name := range graph.Masters {
		names = append(names, name)
	}
	for name := range graph.Composites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
