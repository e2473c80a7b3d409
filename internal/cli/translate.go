package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recwave/recwave/internal/latex"
)

// TranslateResult holds the translation output.
type TranslateResult struct {
	Source     string `json:"source"`
	Expression string `json:"expression"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "translate <latex>",
		Short: "Translate a LaTeX expression to evaluator syntax",
		Long: `Translate a LaTeX expression into the plain evaluator syntax the
worker runs, without validating it against a recording.

Subscripts fold into identifiers, \frac becomes division, RMS and AVG
expand to their definitions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(rootOpts, args[0], cmd)
		},
	}
}

func runTranslate(opts *RootOptions, src string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	expression := latex.Translate(src)

	if formatter.Format == "json" {
		return formatter.Success(TranslateResult{Source: src, Expression: expression})
	}
	fmt.Fprintln(formatter.Writer, expression)
	return nil
}
