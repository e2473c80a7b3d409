package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/recwave/recwave/internal/storage"
)

// ChannelSummary is one row of the channels listing.
type ChannelSummary struct {
	ID          string  `json:"id"`
	Label       string  `json:"label,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	Expression  string  `json:"expression"`
	SampleCount int     `json:"sample_count"`
	ElapsedMs   float64 `json:"elapsed_ms"`
	CreatedAt   string  `json:"created_at"`
}

// ChannelsResult holds the channels listing.
type ChannelsResult struct {
	Channels []ChannelSummary `json:"channels"`
}

// NewChannelsCommand creates the channels command.
func NewChannelsCommand(rootOpts *RootOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List persisted computed channels",
		Long: `List the computed channels persisted in a SQLite store, in creation
order. Sample buffers are not printed; use eval --format json to see
samples.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannels(rootOpts, storePath, cmd)
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database path")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func runChannels(opts *RootOptions, storePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	db, err := storage.Open(storePath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "opening store", Err: err}
	}
	defer db.Close()

	channels, err := db.ListComputed(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "listing channels", Err: err}
	}

	result := ChannelsResult{Channels: make([]ChannelSummary, 0, len(channels))}
	for _, ch := range channels {
		result.Channels = append(result.Channels, ChannelSummary{
			ID:          ch.ID,
			Label:       ch.Label,
			Unit:        ch.Unit,
			Expression:  ch.Expression,
			SampleCount: ch.SampleCount(),
			ElapsedMs:   ch.Provenance.ElapsedMs,
			CreatedAt:   ch.Provenance.CreatedAt.Format(time.RFC3339),
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	if len(result.Channels) == 0 {
		fmt.Fprintln(formatter.Writer, "no computed channels")
		return nil
	}
	for _, ch := range result.Channels {
		fmt.Fprintf(formatter.Writer, "%s  %-20s %-8s %s\n", ch.ID, ch.Label, ch.Unit, ch.Expression)
	}
	return nil
}
