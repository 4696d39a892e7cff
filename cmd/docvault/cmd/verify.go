package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/config"
	"github.com/kailas-cloud/docvault/internal/db/ledger"
)

var (
	errLedgerOnly = errors.New("verify requires record_store.driver: ledger")
	errTampered   = errors.New("ledger hash chain is broken")
)

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the ledger hash chain for tampering",
		Long: `Verify recomputes the SHA-256 hash chain of the ledger record store and
reports the first entry that does not check out.

The ledger is locked by a running server; stop it first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runVerify(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}
}

func runVerify(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RecordStore.Driver != config.DriverLedger {
		return errLedgerOnly
	}

	store, err := ledger.Open(ctx, ledger.Config{Path: cfg.RecordStore.LedgerPath})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()

	report, err := store.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if !report.Intact {
		logger.Error("Ledger verification failed",
			zap.Int64("broken_seq", report.BrokenSeq),
			zap.String("reason", report.Reason),
		)
		return fmt.Errorf("%w at entry %d: %s", errTampered, report.BrokenSeq, report.Reason)
	}
	logger.Info("Ledger intact", zap.Int64("entries", report.Entries))
	return nil
}
