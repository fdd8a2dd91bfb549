package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fluxgate/config"
	"fluxgate/pkg/asset"
)

var liquidityYes bool

var liquidityCmd = &cobra.Command{
	Use:   "liquidity [amount] [asset]",
	Short: "Provide liquidity to the MUSD/BTC pool from a single asset",
	Long: `Build and execute an add-liquidity plan. You declare one side of the
pair; the counter side is derived from a fresh router quote and both
sides are supplied from your wallet at the quoted ratio.

Example:
  fluxgate liquidity 0.5 BTC`,
	Args: cobra.ExactArgs(2),
	RunE: runLiquidity,
}

func init() {
	liquidityCmd.Flags().BoolVarP(&liquidityYes, "yes", "y", false, "Skip confirmation prompt")
	rootCmd.AddCommand(liquidityCmd)
}

func runLiquidity(cmd *cobra.Command, args []string) error {
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
	counter := a.musd
	if from.Equal(a.musd) {
		counter = a.btc
	}
	amount, err := asset.ParseAmount(args[0], from.Decimals)
	if err != nil {
		printError(fmt.Errorf("invalid amount '%s': %w", args[0], err))
		return err
	}

	route := a.routeBetween(from, counter)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching liquidity quote..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	lq, err := a.orch.GetLiquidityQuote(ctx, route, amount)
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to get liquidity quote: %w", err))
		return err
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 LIQUIDITY QUOTE")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Supply %s:    %s\n", route.From.Symbol, color.CyanString(lq.AmountA.String()))
	fmt.Printf("  Supply %s:   %s\n", route.To.Symbol, color.CyanString(lq.AmountB.String()))
	fmt.Printf("  LP tokens:    ~%s\n", lq.Liquidity)
	fmt.Println("\n" + strings.Repeat("=", 60))

	s.Suffix = " Building plan..."
	s.Start()

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	p, err := a.orch.BuildAddLiquidity(ctx, route, lq)
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to build plan: %w", err))
		return err
	}

	displayPlan(p)

	if !liquidityYes && !confirmPlan() {
		fmt.Println("\nPlan cancelled.")
		return nil
	}

	return runPlanWithProgress(context.Background(), a, p)
}
