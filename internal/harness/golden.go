package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/helix/internal/change"
)

// TraceSnapshot captures the complete trace and final views for a scenario
// execution. Serialization uses canonical JSON so golden comparison is
// byte-deterministic.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Views        map[string]change.Value
}

// toCanonicalValue converts the snapshot into a change.Object so it can go
// through change.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalValue() change.Object {
	traceList := make(change.Array, len(s.Trace))
	for i, event := range s.Trace {
		eventObj := change.Object{
			"origin": change.String(event.Origin),
			"seq":    change.Int(event.Seq),
			"kind":   change.String(event.Kind),
			"path":   change.String(event.Path),
		}
		if event.Old != nil {
			eventObj["old"] = event.Old
		}
		if event.New != nil {
			eventObj["new"] = event.New
		}
		traceList[i] = eventObj
	}

	views := make(change.Object, len(s.Views))
	for name, view := range s.Views {
		views[name] = view
	}

	return change.Object{
		"scenario_name": change.String(s.ScenarioName),
		"trace":         traceList,
		"views":         views,
	}
}

// RunWithGolden executes a scenario and compares the trace and final views
// against a golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against a golden file.
// Useful when a test inspects the result before the golden comparison.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Views:        result.Views,
	}

	snapshotJSON, err := change.MarshalCanonical(snapshot.toCanonicalValue())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshotJSON)

	return nil
}
