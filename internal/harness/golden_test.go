package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/helix/internal/change"
)

func TestRunWithGolden_PiePropagation(t *testing.T) {
	// Golden file lives at testdata/golden/pie_propagation.golden.
	// Regenerate with: go test ./internal/harness -update
	scenario := &Scenario{
		Name:        "pie_propagation",
		Description: "Updating alice's pie relays through the kitchen to the menu",
		Topology:    "testdata/pantry",
		Steps: []Step{
			{Node: "pantry", Path: "/alice/pie", Kind: "update", Value: "cherry"},
		},
		Assertions: []Assertion{
			{Type: AssertViewEquals, Node: "menu", Expect: map[string]interface{}{
				"alice": map[string]interface{}{"pie": "cherry"},
			}},
		},
	}

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestTraceSnapshot_CanonicalForm(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "tiny",
		Trace: []TraceEvent{
			{Origin: "pantry", Seq: 1, Kind: "insert", Path: "/carol", New: change.Object{"age": change.Int(41)}},
		},
		Views: map[string]change.Value{
			"pantry": change.Object{"carol": change.Object{"age": change.Int(41)}},
		},
	}

	data, err := change.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)

	want := `{"scenario_name":"tiny",` +
		`"trace":[{"kind":"insert","new":{"age":41},"origin":"pantry","path":"/carol","seq":1}],` +
		`"views":{"pantry":{"carol":{"age":41}}}}`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_OmitsAbsentValues(t *testing.T) {
	// A remove carries only an old value; the snapshot drops absent sides
	// rather than serializing nulls.
	snapshot := TraceSnapshot{
		ScenarioName: "removal",
		Trace: []TraceEvent{
			{Origin: "pantry", Seq: 1, Kind: "remove", Path: "/bob", Old: change.Object{"age": change.Int(25)}},
		},
		Views: map[string]change.Value{},
	}

	data, err := change.MarshalCanonical(snapshot.toCanonicalValue())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"old":{"age":25}`)
	assert.NotContains(t, string(data), `"new"`)
}
