package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LeJamon/xrplhist/internal/validator"
)

// validateCmd walks the stored chain and repairs it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify the stored ledger chain and repair mismatches",
	Long: `Walk the stored ledgers in index order, recomputing each one's
transaction-set hash from its stored transactions and checking the
parent-hash link to the previously validated ledger. Gaps and mismatches
are re-imported through the pipeline. Progress is checkpointed, so
validation resumes where it left off. Runs until interrupted.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rt.serveMetrics(ctx)

	v := validator.New(rt.cfg.Validator, rt.gw, rt.src, rt.pipe, rt.met, rt.log)
	if err := v.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
