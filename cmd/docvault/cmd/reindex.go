package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/config"
	"github.com/kailas-cloud/docvault/internal/metrics"
)

func newReindexCmd(flags *globalFlags) *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the keyword and vector projections from the record store",
		Long: `Reindex walks every enumerated document in the record store and
re-projects it: live documents are written to the keyword index and, when
enabled, the vector index; soft-deleted documents are removed from both.

The record store itself is never modified.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Reindex.Concurrency = concurrency
			}
			return runReindex(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Documents re-projected in parallel (overrides reindex.concurrency)")

	return cmd
}

func runReindex(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	a, err := newApp(ctx, cfg, logger)
	defer a.Close()
	if err != nil {
		return err
	}

	report, err := a.reindex.Run(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("reindex: %d documents failed", report.Failed)
	}
	return nil
}
