package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"fluxgate/config"
	"fluxgate/pkg/asset"
)

var investYes bool

var investCmd = &cobra.Command{
	Use:   "invest [amount] [asset]",
	Short: "Swap an asset to MUSD and deposit the proceeds into the credit vault",
	Long: `Build and execute a swap-then-deposit plan: swap the given asset for
MUSD through the pool router, then deposit the settled swap output into
the credit vault's MUSD pool.

The deposit always uses the amount the swap actually produced on-chain,
not the quoted estimate. Approvals are inserted only when the current
allowance is insufficient.

Example:
  fluxgate invest 1.5 BTC`,
	Args: cobra.ExactArgs(2),
	RunE: runInvest,
}

func init() {
	investCmd.Flags().BoolVarP(&investYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(investCmd)
}

func runInvest(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close()

	from, err := a.assetBySymbol(args[1])
	if err != nil {
		printError(err)
		return err
	}
	if from.Equal(a.musd) {
		err := fmt.Errorf("MUSD needs no swap. Use: fluxgate deposit %s MUSD", args[0])
		printError(err)
		return err
	}
	amount, err := asset.ParseAmount(args[0], from.Decimals)
	if err != nil {
		printError(fmt.Errorf("invalid amount '%s': %w", args[0], err))
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching quote..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	q, err := a.orch.GetQuote(ctx, a.routeBetween(from, a.musd), amount)
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to get quote: %w", err))
		return err
	}

	displayQuote(a, q)

	s.Suffix = " Building plan..."
	s.Start()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	p, err := a.orch.BuildSwapThenDeposit(ctx, q, a.depositTypeFor(a.musd))
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to build plan: %w", err))
		return err
	}

	displayPlan(p)

	if !investYes && !confirmPlan() {
		fmt.Println("\nPlan cancelled.")
		return nil
	}

	return runPlanWithProgress(context.Background(), a, p)
}
