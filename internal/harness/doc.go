// Package harness executes propagation scenarios as contract tests.
//
// The harness builds a node graph from a CUE topology, runs a sequence of
// mutations and edit requests against it, records every committed event,
// and validates assertions over the trace and the final views.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	topology: path/to/topology/dir
//	steps:
//	  - node: pantry
//	    path: /alice/pie
//	    kind: update
//	    value: cherry
//	  - expression: menu
//	    path: /alice/pie
//	    kind: update
//	    value: rhubarb
//	    expect:
//	      origin: pantry
//	  - node: pantry
//	    path: /alice
//	    kind: insert
//	    value: {}
//	    expect:
//	      error: INVALID_PATH
//	assertions:
//	  - type: view_equals
//	    node: menu
//	    expect: { alice: { pie: rhubarb } }
//	  - type: event_contains
//	    origin: kitchen
//	    kind: update
//	    path: /alice/pie
//	  - type: event_count
//	    origin: pantry
//	    count: 2
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - view_equals: Verifies a node's final view equals the expected data
//   - event_contains: Verifies the trace holds a matching event
//   - event_count: Verifies an origin committed exactly N events
//   - event_order: Verifies an origin's events touched paths in order
//
// # Deterministic Execution
//
// Each run builds a fresh graph, so scenarios are isolated and
// reproducible: node identities come from the topology's declared names,
// per-node sequence numbers restart, and delivery is synchronous in
// registration order. Identical runs produce identical traces, which is
// what makes golden snapshot comparison (RunWithGolden) meaningful.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/pie.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
