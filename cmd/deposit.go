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

var depositYes bool

var depositCmd = &cobra.Command{
	Use:   "deposit [amount] [asset]",
	Short: "Deposit an asset into the credit vault",
	Long: `Build and execute a direct vault deposit: approve the credit vault if
the current allowance is insufficient, then deposit into the pool that
matches the asset.

Example:
  fluxgate deposit 100 MUSD`,
	Args: cobra.ExactArgs(2),
	RunE: runDeposit,
}

func init() {
	depositCmd.Flags().BoolVarP(&depositYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(depositCmd)
}

func runDeposit(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close()

	target, err := a.assetBySymbol(args[1])
	if err != nil {
		printError(err)
		return err
	}
	amount, err := asset.ParseAmount(args[0], target.Decimals)
	if err != nil {
		printError(fmt.Errorf("invalid amount '%s': %w", args[0], err))
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Building plan..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	p, err := a.orch.BuildVaultDeposit(ctx, target, a.depositTypeFor(target), amount)
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to build plan: %w", err))
		return err
	}

	displayPlan(p)

	if !depositYes && !confirmPlan() {
		fmt.Println("\nPlan cancelled.")
		return nil
	}

	return runPlanWithProgress(context.Background(), a, p)
}
