package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ingestCmd follows the live closed-ledger stream.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Follow the closed-ledger stream and import each ledger",
	Long: `Subscribe to the ledger source's closed-ledger stream and run every
new ledger through the decomposition pipeline. Runs until interrupted.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rt.serveMetrics(ctx)

	if err := rt.pipe.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
