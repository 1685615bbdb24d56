package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/helix/internal/topology"
)

// ValidationIssue is one problem found in a topology.
type ValidationIssue struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Issues []ValidationIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <topology-dir>",
		Short: "Validate a topology without building it",
		Long: `Validate CUE topology declarations without building the node graph.

Checks syntax, node declarations, upstream references, and relay
acyclicity. Faster than apply for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	spec, errs := topology.Load(dir, topology.LoadModeCollectAll)
	if spec == nil && len(errs) > 0 {
		_ = formatter.Error(ErrCodeNotFound, errs[0].Error(), nil)
		return NewExitError(ExitCommandError, errs[0].Error())
	}

	formatter.VerboseLog("Loaded %d master(s), %d composite(s), %d expression(s) from %s",
		len(spec.Masters), len(spec.Composites), len(spec.Expressions), dir)

	if len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	return outputValidateSuccess(formatter, spec)
}

func outputValidateSuccess(formatter *OutputFormatter, spec *topology.Spec) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ Topology valid: %d master(s), %d composite(s), %d expression(s)\n",
		len(spec.Masters), len(spec.Composites), len(spec.Expressions))
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, errs []error) error {
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issue := ValidationIssue{Message: err.Error()}
		var compileErr *topology.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			issue.Line = compileErr.Pos.Line()
		}
		issues = append(issues, issue)
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    ErrCodeLoadFailed,
				Message: issues[0].Message,
			},
		}
		if err := encodeJSON(formatter.Writer, response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n\n", issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
