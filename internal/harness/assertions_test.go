package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/helix/internal/change"
)

// pieTrace is a two-event trace: the kitchen relay lands first because
// composites re-broadcast inside the master's delivery.
func pieTrace() []TraceEvent {
	return []TraceEvent{
		{Origin: "kitchen", Seq: 2, Kind: "update", Path: "/alice/pie", Old: change.String("apple"), New: change.String("cherry")},
		{Origin: "pantry", Seq: 1, Kind: "update", Path: "/alice/pie", Old: change.String("apple"), New: change.String("cherry")},
	}
}

func pieResult() *Result {
	r := NewResult()
	r.Trace = pieTrace()
	r.Views["menu"] = change.Object{
		"alice": change.Object{"pie": change.String("cherry")},
	}
	return r
}

func TestAssertViewEquals_Pass(t *testing.T) {
	err := assertViewEquals(pieResult(), Assertion{
		Type: AssertViewEquals,
		Node: "menu",
		Expect: map[string]interface{}{
			"alice": map[string]interface{}{"pie": "cherry"},
		},
	})
	assert.NoError(t, err)
}

func TestAssertViewEquals_Mismatch(t *testing.T) {
	err := assertViewEquals(pieResult(), Assertion{
		Type: AssertViewEquals,
		Node: "menu",
		Expect: map[string]interface{}{
			"alice": map[string]interface{}{"pie": "apple"},
		},
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Expected, `"apple"`)
	assert.Contains(t, ae.Actual, `"cherry"`)
}

func TestAssertViewEquals_UnknownNode(t *testing.T) {
	err := assertViewEquals(pieResult(), Assertion{
		Type:   AssertViewEquals,
		Node:   "cellar",
		Expect: map[string]interface{}{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node not found")
}

func TestAssertEventContains_Pass(t *testing.T) {
	err := assertEventContains(pieTrace(), Assertion{
		Type:   AssertEventContains,
		Origin: "kitchen",
		Kind:   "update",
		Path:   "/alice/pie",
	})
	assert.NoError(t, err)
}

func TestAssertEventContains_OriginOnly(t *testing.T) {
	err := assertEventContains(pieTrace(), Assertion{
		Type:   AssertEventContains,
		Origin: "pantry",
	})
	assert.NoError(t, err)
}

func TestAssertEventContains_NotFound(t *testing.T) {
	err := assertEventContains(pieTrace(), Assertion{
		Type:   AssertEventContains,
		Origin: "pantry",
		Kind:   "remove",
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "not found in trace", ae.Actual)
	assert.Contains(t, ae.Expected, "kind=remove")
}

func TestAssertEventContains_PathNormalized(t *testing.T) {
	// Paths without a leading slash still compare against the trace form.
	err := assertEventContains(pieTrace(), Assertion{
		Type:   AssertEventContains,
		Origin: "pantry",
		Path:   "alice/pie",
	})
	assert.NoError(t, err)
}

func TestAssertEventCount(t *testing.T) {
	trace := pieTrace()

	assert.NoError(t, assertEventCount(trace, Assertion{Type: AssertEventCount, Origin: "pantry", Count: 1}))
	assert.NoError(t, assertEventCount(trace, Assertion{Type: AssertEventCount, Origin: "cellar", Count: 0}))

	err := assertEventCount(trace, Assertion{Type: AssertEventCount, Origin: "pantry", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 event(s) from pantry")
	assert.Contains(t, err.Error(), "1 event(s)")
}

func TestAssertEventOrder_Pass(t *testing.T) {
	trace := []TraceEvent{
		{Origin: "pantry", Seq: 1, Kind: "update", Path: "/alice/pie"},
		{Origin: "pantry", Seq: 2, Kind: "update", Path: "/bob/age"},
		{Origin: "pantry", Seq: 3, Kind: "remove", Path: "/alice/age"},
	}

	err := assertEventOrder(trace, Assertion{
		Type:   AssertEventOrder,
		Origin: "pantry",
		Paths:  []string{"/alice/pie", "/alice/age"},
	})
	assert.NoError(t, err)
}

func TestAssertEventOrder_MissingPath(t *testing.T) {
	err := assertEventOrder(pieTrace(), Assertion{
		Type:   AssertEventOrder,
		Origin: "pantry",
		Paths:  []string{"/alice/pie", "/bob/age"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path: /bob/age")
}

func TestAssertEventOrder_OutOfOrder(t *testing.T) {
	trace := []TraceEvent{
		{Origin: "pantry", Seq: 1, Kind: "update", Path: "/bob/age"},
		{Origin: "pantry", Seq: 2, Kind: "update", Path: "/alice/pie"},
	}

	err := assertEventOrder(trace, Assertion{
		Type:   AssertEventOrder,
		Origin: "pantry",
		Paths:  []string{"/alice/pie", "/bob/age"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")
}

func TestAssertEventOrder_IgnoresOtherOrigins(t *testing.T) {
	// kitchen's relay of /alice/pie precedes pantry's own event; ordering
	// only considers the asserted origin.
	trace := []TraceEvent{
		{Origin: "kitchen", Seq: 2, Kind: "update", Path: "/bob/age"},
		{Origin: "pantry", Seq: 1, Kind: "update", Path: "/alice/pie"},
		{Origin: "pantry", Seq: 2, Kind: "update", Path: "/bob/age"},
	}

	err := assertEventOrder(trace, Assertion{
		Type:   AssertEventOrder,
		Origin: "pantry",
		Paths:  []string{"/alice/pie", "/bob/age"},
	})
	assert.NoError(t, err)
}

func TestEvaluateAssertions_AllPass(t *testing.T) {
	errs := EvaluateAssertions(pieResult(), []Assertion{
		{Type: AssertEventContains, Origin: "pantry"},
		{Type: AssertEventCount, Origin: "kitchen", Count: 1},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_SomeFail(t *testing.T) {
	errs := EvaluateAssertions(pieResult(), []Assertion{
		{Type: AssertEventContains, Origin: "pantry"},
		{Type: AssertEventCount, Origin: "kitchen", Count: 5},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "event_count")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(pieResult(), []Assertion{
		{Type: "final_state"},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `unknown assertion type "final_state"`)
}

func TestAssertionError_Format(t *testing.T) {
	ae := &AssertionError{
		Type:     AssertEventCount,
		Expected: "2 event(s) from pantry",
		Actual:   "1 event(s)",
		Trace:    pieTrace(),
	}

	msg := ae.Error()
	assert.Contains(t, msg, "Assertion failed: event_count")
	assert.Contains(t, msg, "Expected: 2 event(s) from pantry")
	assert.Contains(t, msg, "Actual: 1 event(s)")
	assert.Contains(t, msg, "[1] kitchen seq=2 update /alice/pie")
}
