package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/helix/internal/change"
)

// Scenario defines a propagation test scenario. Scenarios build a node
// graph from a topology, run a sequence of mutations and edit requests,
// and assert on the resulting event trace and final views.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Topology is the directory holding the CUE topology declarations.
	// Relative paths resolve against the scenario file location.
	Topology string `yaml:"topology"`

	// Steps contains the mutations and edit requests to run, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final views.
	// Supported types: view_equals, event_contains, event_count, event_order
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one mutation or edit request. Node targets a master directly;
// Expression routes the step through an expression's edit path.
type Step struct {
	Node       string      `yaml:"node,omitempty"`
	Expression string      `yaml:"expression,omitempty"`
	Path       string      `yaml:"path"`
	Kind       string      `yaml:"kind"`
	Value      interface{} `yaml:"value,omitempty"`

	// Expect validates the step's outcome. If nil, the step must simply
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Origin is the expected committing node of the event.
	Origin string `yaml:"origin,omitempty"`

	// Seq is the expected sequence number, when nonzero.
	Seq int64 `yaml:"seq,omitempty"`

	// Error is the expected rejection code (e.g. "INVALID_PATH"). When
	// set, the step must fail with that code and commits nothing.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or a final view.
type Assertion struct {
	// Type specifies the assertion type:
	// - "view_equals": a node's final view equals the expected data
	// - "event_contains": the trace contains a matching event
	// - "event_count": an origin committed exactly N events
	// - "event_order": an origin's events touched paths in order
	Type string `yaml:"type"`

	// Node names the node whose view to check (view_equals).
	Node string `yaml:"node,omitempty"`

	// Expect is the expected view data (view_equals). Subject to the
	// same value rules as topology data: no floats.
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Origin filters trace events (event_contains, event_count,
	// event_order).
	Origin string `yaml:"origin,omitempty"`

	// Kind is the expected event kind (event_contains).
	Kind string `yaml:"kind,omitempty"`

	// Path is the expected event path (event_contains).
	Path string `yaml:"path,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Paths is the expected path order (event_order).
	Paths []string `yaml:"paths,omitempty"`
}

// Assertion type constants.
const (
	AssertViewEquals    = "view_equals"
	AssertEventContains = "event_contains"
	AssertEventCount    = "event_count"
	AssertEventOrder    = "event_order"
)

// LoadScenario reads and parses a scenario YAML file. The topology path
// resolves relative to the scenario file's directory. Returns an error if
// the file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Topology != "" && !filepath.IsAbs(scenario.Topology) {
		scenario.Topology = filepath.Join(filepath.Dir(path), scenario.Topology)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Topology == "" {
		return fmt.Errorf("topology is required")
	}
	if info, err := os.Stat(s.Topology); err != nil || !info.IsDir() {
		return fmt.Errorf("topology directory not found: %s", s.Topology)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Node == "" && step.Expression == "" {
			return fmt.Errorf("steps[%d]: node or expression is required", i)
		}
		if step.Node != "" && step.Expression != "" {
			return fmt.Errorf("steps[%d]: node and expression are mutually exclusive", i)
		}
		if _, err := change.ParseKind(step.Kind); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertViewEquals:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for view_equals", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for view_equals", index)
		}
	case AssertEventContains:
		if a.Origin == "" {
			return fmt.Errorf("assertions[%d]: origin is required for event_contains", index)
		}
		if a.Kind != "" {
			if _, err := change.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertEventCount:
		if a.Origin == "" {
			return fmt.Errorf("assertions[%d]: origin is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventOrder:
		if a.Origin == "" {
			return fmt.Errorf("assertions[%d]: origin is required for event_order", index)
		}
		if len(a.Paths) == 0 {
			return fmt.Errorf("assertions[%d]: paths list is required for event_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
