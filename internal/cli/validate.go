package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/latex"
)

// ValidationResult holds validation output.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Expression string   `json:"expression,omitempty"`
	Refs       []string `json:"refs,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var recordingPath string

	cmd := &cobra.Command{
		Use:   "validate <latex>",
		Short: "Validate an expression against a recording",
		Long: `Translate a LaTeX expression and validate it against the channels of
a recording fixture: syntax, and that every referenced identifier names
an existing channel. No evaluation is performed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateExpr(rootOpts, recordingPath, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&recordingPath, "recording", "r", "", "recording fixture (JSON)")
	_ = cmd.MarkFlagRequired("recording")

	return cmd
}

func runValidateExpr(opts *RootOptions, recordingPath, src string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	rec, err := LoadRecording(recordingPath)
	if err != nil {
		_ = formatter.Error(ErrCodeFixture, err.Error(), nil)
		return err
	}
	formatter.VerboseLog("Loaded %d channel(s), %d samples", len(rec.IDs()), rec.SampleCount())

	if strings.TrimSpace(src) == "" {
		verr := eval.NewEmptyExpressionError()
		_ = formatter.Error(ClassifyError(verr), verr.Error(), nil)
		return NewExitError(ExitFailure, verr.Error())
	}

	expression := latex.Translate(src)
	v, err := eval.Validate(expression, rec)
	if err != nil {
		_ = formatter.Error(ClassifyError(err), err.Error(), map[string]string{"expression": expression})
		return NewExitError(ExitFailure, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Expression: v.Expression, Refs: v.Refs})
	}
	fmt.Fprintf(formatter.Writer, "valid: %s\n", v.Expression)
	fmt.Fprintf(formatter.Writer, "refs:  %s\n", strings.Join(v.Refs, ", "))
	return nil
}
