package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Origin  string // optional - filter to one origin
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Origin   string      `json:"origin"`
	Seq      int64       `json:"seq"`
	Kind     string      `json:"kind"`
	Path     string      `json:"path"`
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Origins  []string     `json:"origins"`
	Timeline []TraceEvent `json:"timeline"`
	Total    int          `json:"total"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the events recorded in a journal",
		Long: `List the change events recorded in a journal, in commit order.

Events are grouped by origin and ordered by sequence number within each
origin, so the listing reflects exactly what each master committed.

Examples:
  helix trace --journal ./events.db
  helix trace --journal ./events.db --origin pantry
  helix trace --journal ./events.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "filter to events from one origin")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	jnl, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jnl.Close()

	var events []change.Event
	if opts.Origin != "" {
		events, err = jnl.ReadEvents(ctx, opts.Origin)
	} else {
		events, err = jnl.ReadAll(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	origins, err := jnl.Origins(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read origins", err)
	}

	result := TraceResult{
		Origins:  origins,
		Timeline: buildTimeline(events),
		Total:    len(events),
	}

	if opts.Format == "json" {
		return encodeJSON(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

func buildTimeline(events []change.Event) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(events))
	for _, ev := range events {
		te := TraceEvent{
			Origin: ev.Origin,
			Seq:    ev.Seq,
			Kind:   ev.Kind.String(),
			Path:   ev.Path.String(),
		}
		if ev.OldValue != nil {
			te.OldValue = valueToGo(ev.OldValue)
		}
		if ev.NewValue != nil {
			te.NewValue = valueToGo(ev.NewValue)
		}
		timeline = append(timeline, te)
	}
	return timeline
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.Total == 0 {
		fmt.Fprintln(w, "No events in journal")
		return nil
	}

	fmt.Fprintf(w, "Journal: %d event(s) from %d origin(s)\n\n", result.Total, len(result.Origins))

	fmt.Fprintln(w, "=== Timeline ===")
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  [%s:%d] %s %s\n", ev.Origin, ev.Seq, ev.Kind, ev.Path)
		if verbose {
			if ev.OldValue != nil {
				fmt.Fprintf(w, "       old: %s\n", formatView(ev.OldValue))
			}
			if ev.NewValue != nil {
				fmt.Fprintf(w, "       new: %s\n", formatView(ev.NewValue))
			}
		}
	}

	return nil
}
