package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/helix/internal/change"
	"github.com/roach88/helix/internal/journal"
	"github.com/roach88/helix/internal/topology"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Journal string
}

// MutationScript is the YAML format consumed by apply.
type MutationScript struct {
	Description string         `yaml:"description"`
	Steps       []MutationStep `yaml:"steps"`
}

// MutationStep is one mutation or edit request. Node targets a master
// directly; Expression routes the step through an expression's edit path.
type MutationStep struct {
	Node       string      `yaml:"node"`
	Expression string      `yaml:"expression"`
	Path       string      `yaml:"path"`
	Kind       string      `yaml:"kind"`
	Value      interface{} `yaml:"value"`
}

// ApplyResult holds the outcome of an applied script.
type ApplyResult struct {
	Steps  int                    `json:"steps"`
	Events []AppliedEvent         `json:"events"`
	Views  map[string]interface{} `json:"views"`
}

// AppliedEvent is the committed event for one script step.
type AppliedEvent struct {
	Origin string `json:"origin"`
	Seq    int64  `json:"seq"`
	Kind   string `json:"kind"`
	Path   string `json:"path"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <topology-dir> <script.yaml>",
		Short: "Build a topology and run a mutation script against it",
		Long: `Build the node graph declared in a topology directory, then apply
the mutations and edit requests from a YAML script in order.

Each step targets a master (node:) or routes through an expression's
edit path (expression:). After the script runs, the final view of every
node is printed.

Example:
  helix apply ./topology ./script.yaml
  helix apply ./topology ./script.yaml --journal ./events.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "record committed events to this SQLite journal")

	return cmd
}

func runApply(opts *ApplyOptions, topologyDir, scriptPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec, errs := topology.Load(topologyDir, topology.LoadModeFailFast)
	if len(errs) > 0 {
		_ = formatter.Error(ErrCodeLoadFailed, errs[0].Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load topology", errs[0])
	}

	graph, err := topology.Build(spec)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to build topology", err)
	}
	formatter.VerboseLog("Built graph: %d master(s), %d composite(s), %d expression(s)",
		len(graph.Masters), len(graph.Composites), len(graph.Expressions))

	script, err := loadScript(scriptPath)
	if err != nil {
		_ = formatter.Error(ErrCodeBadScript, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	if opts.Journal != "" {
		jnl, err := journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer jnl.Close()

		rec := journal.NewRecorder(jnl)
		for _, name := range sortedKeys(graph.Masters) {
			if err := rec.Attach(graph.Masters[name]); err != nil {
				return WrapExitError(ExitCommandError, "failed to attach recorder", err)
			}
		}
		formatter.VerboseLog("Recording events to %s", opts.Journal)
	}

	result, err := applyScript(graph, script, formatter)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		return encodeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result})
	}
	return outputApplyText(formatter, result)
}

func loadScript(path string) (*MutationScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	var script MutationScript
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	return &script, nil
}

func applyScript(graph *topology.Graph, script *MutationScript, formatter *OutputFormatter) (*ApplyResult, error) {
	result := &ApplyResult{Steps: len(script.Steps)}

	for i, step := range script.Steps {
		ev, err := applyStep(graph, step)
		if err != nil {
			_ = formatter.Error(ErrCodeRejected, err.Error(), nil)
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("step %d rejected", i+1), err)
		}
		formatter.VerboseLog("step %d: %s seq=%d %s %s", i+1, ev.Origin, ev.Seq, ev.Kind, ev.Path)
		result.Events = append(result.Events, AppliedEvent{
			Origin: ev.Origin,
			Seq:    ev.Seq,
			Kind:   ev.Kind.String(),
			Path:   ev.Path.String(),
		})
	}

	result.Views = collectViews(graph)
	return result, nil
}

func applyStep(graph *topology.Graph, step MutationStep) (change.Event, error) {
	kind, err := change.ParseKind(step.Kind)
	if err != nil {
		return change.Event{}, err
	}
	path := parsePath(step.Path)

	var value change.Value
	if step.Value != nil {
		value, err = change.FromGo(step.Value)
		if err != nil {
			return change.Event{}, fmt.Errorf("step value: %w", err)
		}
	}

	switch {
	case step.Node != "":
		master, ok := graph.Masters[step.Node]
		if !ok {
			return change.Event{}, fmt.Errorf("unknown master %q", step.Node)
		}
		return master.Mutate(path, kind, value)
	case step.Expression != "":
		expr, ok := graph.Expressions[step.Expression]
		if !ok {
			return change.Event{}, fmt.Errorf("unknown expression %q", step.Expression)
		}
		return expr.RequestEdit(change.EditRequest{Path: path, Kind: kind, Value: value})
	default:
		return change.Event{}, fmt.Errorf("step targets neither a node nor an expression")
	}
}

// parsePath splits a slash-separated path. "/" and "" address the root.
func parsePath(s string) change.Path {
	s = strings.Trim(s, "/")
	if s == "" {
		return change.Path{}
	}
	return change.Path(strings.Split(s, "/"))
}

func collectViews(graph *topology.Graph) map[string]interface{} {
	views := make(map[string]interface{})
	for name, m := range graph.Masters {
		data, _ := m.Snapshot()
		views[name] = valueToGo(data)
	}
	for name, c := range graph.Composites {
		data, _ := c.Snapshot()
		views[name] = valueToGo(data)
	}
	for name, e := range graph.Expressions {
		views[name] = valueToGo(e.View())
	}
	return views
}

func outputApplyText(formatter *OutputFormatter, result *ApplyResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Applied %d step(s)\n\n", result.Steps)

	fmt.Fprintln(w, "=== Events ===")
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  [%d] %s %s %s\n", ev.Seq, ev.Origin, ev.Kind, ev.Path)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Views ===")
	for _, name := range sortedKeys(result.Views) {
		fmt.Fprintf(w, "  %s: %s\n", name, formatView(result.Views[name]))
	}
	return nil
}

// formatView renders a view deterministically with sorted keys.
func formatView(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		parts := make([]string, 0, len(val))
		for _, k := range sortedKeys(val) {
			parts = append(parts, fmt.Sprintf("%s=%s", k, formatView(val[k])))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatView(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
