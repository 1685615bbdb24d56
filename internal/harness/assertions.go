package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/helix/internal/change"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s seq=%d %s %s\n", i+1, event.Origin, event.Seq, event.Kind, event.Path)
		}
	}

	return buf.String()
}

// assertViewEquals checks that a node's final view equals the expected
// data. The expected map goes through the same value conversion as
// topology data, so comparison is structural, not textual.
func assertViewEquals(result *Result, assertion Assertion) error {
	actual, ok := result.Views[assertion.Node]
	if !ok {
		return &AssertionError{
			Type:     AssertViewEquals,
			Expected: fmt.Sprintf("view of node %s", assertion.Node),
			Actual:   "node not found in topology",
			Trace:    result.Trace,
		}
	}

	expected, err := change.FromGo(assertion.Expect)
	if err != nil {
		return fmt.Errorf("view_equals expect value: %w", err)
	}

	if !change.Equal(actual, expected) {
		return &AssertionError{
			Type:     AssertViewEquals,
			Expected: renderValue(expected),
			Actual:   renderValue(actual),
			Trace:    result.Trace,
		}
	}

	return nil
}

// assertEventContains checks that the trace contains an event from the
// given origin, optionally narrowed by kind and path.
func assertEventContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Origin != assertion.Origin {
			continue
		}
		if assertion.Kind != "" && event.Kind != assertion.Kind {
			continue
		}
		if assertion.Path != "" && event.Path != normalizePath(assertion.Path) {
			continue
		}
		return nil // Found matching event
	}

	return &AssertionError{
		Type:     AssertEventContains,
		Expected: describeEvent(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertEventCount checks that the origin committed exactly the specified
// number of events.
func assertEventCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Origin == assertion.Origin {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d event(s) from %s", assertion.Count, assertion.Origin),
			Actual:   fmt.Sprintf("%d event(s)", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertEventOrder checks that the origin's events touched paths in the
// specified order. Paths don't need to be consecutive (intervening events
// are allowed).
func assertEventOrder(trace []TraceEvent, assertion Assertion) error {
	// Record first position of each expected path, 1-indexed for
	// readability.
	positions := make(map[string]int)

	for i, event := range trace {
		if event.Origin != assertion.Origin {
			continue
		}
		for _, expectedPath := range assertion.Paths {
			if event.Path == normalizePath(expectedPath) && positions[expectedPath] == 0 {
				positions[expectedPath] = i + 1
			}
		}
	}

	for _, path := range assertion.Paths {
		if positions[path] == 0 {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all paths present: %v", assertion.Paths),
				Actual:   fmt.Sprintf("missing path: %s", path),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Paths); i++ {
		prev := assertion.Paths[i-1]
		curr := assertion.Paths[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("paths in order: %v", assertion.Paths),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertViewEquals:
			err = assertViewEquals(result, assertion)
		case AssertEventContains:
			err = assertEventContains(result.Trace, assertion)
		case AssertEventCount:
			err = assertEventCount(result.Trace, assertion)
		case AssertEventOrder:
			err = assertEventOrder(result.Trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func describeEvent(a Assertion) string {
	desc := fmt.Sprintf("event from %s", a.Origin)
	if a.Kind != "" {
		desc += fmt.Sprintf(" kind=%s", a.Kind)
	}
	if a.Path != "" {
		desc += fmt.Sprintf(" path=%s", normalizePath(a.Path))
	}
	return desc
}

// normalizePath renders an assertion path the way TraceEvent records it.
func normalizePath(s string) string {
	return parsePath(s).String()
}

// renderValue formats a value in canonical JSON for error messages.
func renderValue(v change.Value) string {
	data, err := change.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<unrenderable: %v>", err)
	}
	return string(data)
}
