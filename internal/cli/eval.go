package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/recwave/recwave/internal/channel"
	"github.com/recwave/recwave/internal/config"
	"github.com/recwave/recwave/internal/pipeline"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
	"github.com/recwave/recwave/internal/storage"
)

// EvalResult holds the evaluation output.
type EvalResult struct {
	ID         string    `json:"id"`
	Label      string    `json:"label,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Expression string    `json:"expression"`
	Refs       []string  `json:"refs"`
	Samples    []float64 `json:"samples"`
	ElapsedMs  float64   `json:"elapsed_ms"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		recordingPath string
		configPath    string
		storePath     string
		label         string
		unit          string
		channelID     string
	)

	cmd := &cobra.Command{
		Use:   "eval <latex>",
		Short: "Evaluate an expression into a computed channel",
		Long: `Run the full computed-channel pipeline for one LaTeX expression:
translate, validate, prepare, evaluate sample-by-sample in a background
worker, and integrate the result. With --store the computed channel is
also persisted to a SQLite database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, evalParams{
				recordingPath: recordingPath,
				configPath:    configPath,
				storePath:     storePath,
				label:         label,
				unit:          unit,
				channelID:     channelID,
				latex:         args[0],
			}, cmd)
		},
	}

	cmd.Flags().StringVarP(&recordingPath, "recording", "r", "", "recording fixture (JSON)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (YAML)")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database to persist the computed channel")
	cmd.Flags().StringVar(&label, "label", "", "label for the computed channel")
	cmd.Flags().StringVar(&unit, "unit", "", "unit for the computed channel")
	cmd.Flags().StringVar(&channelID, "id", "", "channel id (re-run replaces the persisted channel)")
	_ = cmd.MarkFlagRequired("recording")

	return cmd
}

type evalParams struct {
	recordingPath string
	configPath    string
	storePath     string
	label         string
	unit          string
	channelID     string
	latex         string
}

func runEval(opts *RootOptions, params evalParams, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg := config.Default()
	if params.configPath != "" {
		loaded, err := config.Load(params.configPath)
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "loading config", Err: err}
		}
		cfg = loaded
	}
	storePath := params.storePath
	if storePath == "" {
		storePath = cfg.StoragePath
	}

	rec, err := LoadRecording(params.recordingPath)
	if err != nil {
		_ = formatter.Error(ErrCodeFixture, err.Error(), nil)
		return err
	}
	formatter.VerboseLog("Loaded %d channel(s), %d samples", len(rec.IDs()), rec.SampleCount())

	log := commandLogger(opts, cfg)
	store := session.NewStore(rec, log)

	integratorOpts := []session.IntegratorOption{session.WithIntegratorLogger(log)}
	if storePath != "" {
		db, err := storage.Open(storePath)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "opening store", Err: err}
		}
		defer db.Close()
		integratorOpts = append(integratorOpts, session.WithPersister(db))
		formatter.VerboseLog("Persisting to %s", storePath)
	}
	integrator := session.NewIntegrator(store, rec, integratorOpts...)

	preparerOpts := []prepare.Option{}
	if cfg.ProgressCadence > 0 {
		preparerOpts = append(preparerOpts, prepare.WithCadence(cfg.ProgressCadence))
	}
	p := pipeline.New(rec, store, integrator, prepare.New(rec, preparerOpts...),
		pipeline.WithPolicy(cfg.ResubmitPolicy),
		pipeline.WithLogger(log),
	)

	run, err := p.Submit(pipeline.SubmitRequest{
		ChannelID: params.channelID,
		Label:     params.label,
		Unit:      params.unit,
		LaTeX:     params.latex,
	})
	if err != nil {
		_ = formatter.Error(ClassifyError(err), err.Error(), nil)
		return NewExitError(ExitFailure, err.Error())
	}
	formatter.VerboseLog("Evaluating %s as %s", run.Expression, run.ChannelID)

	outcome := waitEval(run, formatter)
	if outcome.Err != nil {
		_ = formatter.Error(ClassifyError(outcome.Err), outcome.Err.Error(), nil)
		return NewExitError(ExitFailure, outcome.Err.Error())
	}

	return outputEvalSuccess(formatter, outcome.Channel)
}

// waitEval drains progress frames until the terminal outcome arrives.
func waitEval(run *pipeline.Run, formatter *OutputFormatter) pipeline.Outcome {
	for {
		select {
		case pr := <-run.Progress:
			formatter.VerboseLog("progress %d%% (%d/%d)", pr.Percent, pr.Processed, pr.Total)
		case o := <-run.Done:
			return o
		}
	}
}

func outputEvalSuccess(formatter *OutputFormatter, ch *channel.ComputedChannel) error {
	if formatter.Format == "json" {
		return formatter.Success(EvalResult{
			ID:         ch.ID,
			Label:      ch.Label,
			Unit:       ch.Unit,
			Expression: ch.Expression,
			Refs:       ch.Refs,
			Samples:    ch.Samples,
			ElapsedMs:  ch.Provenance.ElapsedMs,
		})
	}

	fmt.Fprintf(formatter.Writer, "channel %s (%s)\n", ch.ID, ch.Label)
	fmt.Fprintf(formatter.Writer, "  expression: %s\n", ch.Expression)
	fmt.Fprintf(formatter.Writer, "  samples:    %d\n", ch.SampleCount())
	fmt.Fprintf(formatter.Writer, "  elapsed:    %.1fms\n", ch.Provenance.ElapsedMs)
	return nil
}

// commandLogger builds the slog logger for a command run. Structured logs go
// to stderr so they never corrupt JSON output; without --verbose only
// warnings and errors surface.
func commandLogger(opts *RootOptions, cfg config.Config) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = parseLogLevel(cfg.LogLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
