package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pantryScenario returns a scenario over the testdata pantry topology:
// master pantry, composite kitchen (prefix alice), expression menu (pie).
func pantryScenario(steps []Step, assertions []Assertion) *Scenario {
	return &Scenario{
		Name:        "pantry",
		Description: "pantry scenario",
		Topology:    "testdata/pantry",
		Steps:       steps,
		Assertions:  assertions,
	}
}

func TestRun_PropagatesThroughChain(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{Node: "pantry", Path: "/alice/pie", Kind: "update", Value: "cherry"},
		},
		[]Assertion{
			{Type: AssertViewEquals, Node: "menu", Expect: map[string]interface{}{
				"alice": map[string]interface{}{"pie": "cherry"},
			}},
			{Type: AssertEventContains, Origin: "kitchen", Kind: "update", Path: "/alice/pie"},
			{Type: AssertEventCount, Origin: "pantry", Count: 1},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	// The composite relays synchronously inside the master's broadcast, so
	// its re-sequenced event lands in the trace first.
	require.Len(t, result.Trace, 2)
	assert.Equal(t, "kitchen", result.Trace[0].Origin)
	assert.Equal(t, int64(2), result.Trace[0].Seq)
	assert.Equal(t, "pantry", result.Trace[1].Origin)
	assert.Equal(t, int64(1), result.Trace[1].Seq)
}

func TestRun_FilteredChangeNeverReachesMenu(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{Node: "pantry", Path: "/bob/pie", Kind: "update", Value: "mud"},
		},
		[]Assertion{
			{Type: AssertViewEquals, Node: "menu", Expect: map[string]interface{}{
				"alice": map[string]interface{}{"pie": "apple"},
			}},
			{Type: AssertEventCount, Origin: "kitchen", Count: 0},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EditRequestRoutesToMaster(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{
				Expression: "menu",
				Path:       "/alice/pie",
				Kind:       "update",
				Value:      "rhubarb",
				Expect:     &ExpectClause{Origin: "pantry", Seq: 1},
			},
		},
		[]Assertion{
			{Type: AssertViewEquals, Node: "menu", Expect: map[string]interface{}{
				"alice": map[string]interface{}{"pie": "rhubarb"},
			}},
			{Type: AssertEventContains, Origin: "pantry", Kind: "update", Path: "/alice/pie"},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectedRejection(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			// Insert at an existing path must be refused.
			{
				Node:   "pantry",
				Path:   "/alice",
				Kind:   "insert",
				Value:  map[string]interface{}{"age": 99},
				Expect: &ExpectClause{Error: "INVALID_PATH"},
			},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 0},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace, "a rejected mutation commits nothing")
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{Node: "pantry", Path: "/alice", Kind: "insert", Value: 1},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 0},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unexpected rejection")
}

func TestRun_WrongRejectionCodeFails(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{
				Node:   "pantry",
				Path:   "/alice",
				Kind:   "insert",
				Value:  1,
				Expect: &ExpectClause{Error: "TYPE_CONFLICT"},
			},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 0},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected rejection TYPE_CONFLICT")
}

func TestRun_ExpectedRejectionButStepCommits(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{
				Node:   "pantry",
				Path:   "/alice/pie",
				Kind:   "update",
				Value:  "cherry",
				Expect: &ExpectClause{Error: "INVALID_PATH"},
			},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 1},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "but step committed")
}

func TestRun_SeqMismatchFails(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{
				Node:   "pantry",
				Path:   "/alice/pie",
				Kind:   "update",
				Value:  "cherry",
				Expect: &ExpectClause{Seq: 7},
			},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 1},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "expected seq 7")
}

func TestRun_UnknownNode(t *testing.T) {
	scenario := pantryScenario(
		[]Step{
			{Node: "cellar", Path: "/wine", Kind: "insert", Value: "merlot"},
		},
		[]Assertion{
			{Type: AssertEventCount, Origin: "pantry", Count: 0},
		},
	)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], `unknown master "cellar"`)
}

func TestRun_InvalidTopologyDir(t *testing.T) {
	scenario := pantryScenario(
		[]Step{{Node: "pantry", Path: "/x", Kind: "insert", Value: 1}},
		[]Assertion{{Type: AssertEventCount, Origin: "pantry", Count: 0}},
	)
	scenario.Topology = "testdata/does-not-exist"

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load topology")
}

func TestRun_ViewsIncludeEveryNode(t *testing.T) {
	scenario := pantryScenario(
		[]Step{{Node: "pantry", Path: "/alice/pie", Kind: "update", Value: "cherry"}},
		[]Assertion{{Type: AssertEventCount, Origin: "pantry", Count: 1}},
	)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.Contains(t, result.Views, "pantry")
	assert.Contains(t, result.Views, "kitchen")
	assert.Contains(t, result.Views, "menu")
}
