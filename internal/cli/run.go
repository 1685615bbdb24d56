package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/helix/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
}

// RunResult holds the scenario outcome for output.
type RunResult struct {
	Scenario string       `json:"scenario"`
	Pass     bool         `json:"pass"`
	Errors   []string     `json:"errors,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a propagation scenario",
		Long: `Run a YAML scenario against its declared topology.

The scenario builds a fresh node graph, executes its steps, records every
committed event, and evaluates its assertions. The command exits non-zero
when a step or assertion fails.

Example:
  helix run ./scenarios/pie.yaml
  helix run ./scenarios/pie.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	return cmd
}

func runScenario(opts *RunOptions, path string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	runResult := RunResult{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Errors:   result.Errors,
		Timeline: scenarioTimeline(result.Trace),
	}

	if opts.Format == "json" {
		status := "ok"
		if !result.Pass {
			status = "error"
		}
		if err := encodeJSON(cmd.OutOrStdout(), CLIResponse{Status: status, Data: runResult}); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, runResult)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func scenarioTimeline(trace []harness.TraceEvent) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(trace))
	for _, ev := range trace {
		te := TraceEvent{
			Origin: ev.Origin,
			Seq:    ev.Seq,
			Kind:   ev.Kind,
			Path:   ev.Path,
		}
		if ev.Old != nil {
			te.OldValue = valueToGo(ev.Old)
		}
		if ev.New != nil {
			te.NewValue = valueToGo(ev.New)
		}
		timeline = append(timeline, te)
	}
	return timeline
}

func outputRunText(cmd *cobra.Command, result RunResult) {
	w := cmd.OutOrStdout()

	if result.Pass {
		fmt.Fprintf(w, "✓ Scenario passed: %s\n", result.Scenario)
	} else {
		fmt.Fprintf(w, "✗ Scenario failed: %s\n", result.Scenario)
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
	}

	fmt.Fprintf(w, "\n%d event(s):\n", len(result.Timeline))
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%s:%d] %s %s\n", ev.Origin, ev.Seq, ev.Kind, ev.Path)
	}
}
