package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/helix/internal/journal"
	"github.com/roach88/helix/internal/topology"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	Origin  string // optional - replay only this origin
}

// ReplayResult holds the outcome of a replay.
type ReplayResult struct {
	Applied map[string]int         `json:"applied"` // origin -> events replayed
	Views   map[string]interface{} `json:"views"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <topology-dir>",
		Short: "Rebuild a node graph from a recorded journal",
		Long: `Build the topology's node graph from its declared initial data, then
replay the journal's events through each master's ordinary mutate path.

Derived views rebuild themselves from the replayed events, so the final
output shows the same views the original run ended with. Replay fails if
the journal diverged from the topology's initial data.

Examples:
  helix replay ./topology --journal ./events.db
  helix replay ./topology --journal ./events.db --origin pantry`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "replay only events from this origin")

	return cmd
}

func runReplay(opts *ReplayOptions, topologyDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec, errs := topology.Load(topologyDir, topology.LoadModeFailFast)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load topology", errs[0])
	}
	graph, err := topology.Build(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build topology", err)
	}

	jnl, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jnl.Close()

	origins, err := jnl.Origins(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read origins", err)
	}
	if opts.Origin != "" {
		origins = []string{opts.Origin}
	}

	result := &ReplayResult{Applied: make(map[string]int)}
	for _, origin := range origins {
		master, ok := graph.Masters[origin]
		if !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("journal origin %q has no master in topology", origin))
		}
		applied, err := jnl.Replay(ctx, origin, master)
		if err != nil {
			return WrapExitError(ExitFailure, "replay diverged", err)
		}
		formatter.VerboseLog("replayed %d event(s) into %s", applied, origin)
		result.Applied[origin] = applied
	}

	result.Views = collectViews(graph)

	if opts.Format == "json" {
		return encodeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}
	return outputReplayText(formatter, result)
}

func outputReplayText(formatter *OutputFormatter, result *ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintln(w, "=== Replayed ===")
	for _, origin := range sortedKeys(result.Applied) {
		fmt.Fprintf(w, "  %s: %d event(s)\n", origin, result.Applied[origin])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Views ===")
	for _, name := range sortedKeys(result.Views) {
		fmt.Fprintf(w, "  %s: %s\n", name, formatView(result.Views[name]))
	}
	return nil
}
