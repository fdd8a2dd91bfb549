package cmd

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fluxgate/config"
	"fluxgate/pkg/chain"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Show credit vault pool stats and your lending position",
	Long: `Read the credit vault's pool stats for both the BTC and MUSD pools,
the vault's on-chain MUSD price, and the configured account's lending
position (principal plus accrued interest).`,
	Args: cobra.NoArgs,
	RunE: runVault,
}

func init() {
	rootCmd.AddCommand(vaultCmd)
}

func runVault(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching vault data..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	btcPool, err := a.orch.VaultPoolInfo(ctx, chain.AssetTypeBTC)
	if err != nil {
		s.Stop()
		printError(fmt.Errorf("failed to fetch BTC pool info: %w", err))
		return err
	}
	musdPool, err := a.orch.VaultPoolInfo(ctx, chain.AssetTypeMUSD)
	if err != nil {
		s.Stop()
		printError(fmt.Errorf("failed to fetch MUSD pool info: %w", err))
		return err
	}
	price, err := a.orch.MUSDPrice(ctx)
	if err != nil {
		s.Stop()
		printError(fmt.Errorf("failed to fetch MUSD price: %w", err))
		return err
	}
	lender, err := a.orch.LenderInfo(ctx)
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to fetch lender info: %w", err))
		return err
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  CREDIT VAULT")
	fmt.Println(strings.Repeat("=", 60))

	displayPool("BTC pool", btcPool)
	displayPool("MUSD pool", musdPool)

	fmt.Printf("\n  MUSD price:        $%s\n", color.CyanString(price.String()))

	fmt.Println("\n  Your position:")
	fmt.Printf("    Deposited:       %s MUSD\n", color.CyanString(lender.Deposited.String()))
	fmt.Printf("    Accrued interest: %s MUSD\n", color.CyanString(lender.AccruedInterest.String()))
	if !lender.LastUpdate.IsZero() {
		fmt.Printf("    Last update:     %s\n", lender.LastUpdate.Format(time.RFC3339))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}

func displayPool(name string, info chain.PoolInfo) {
	fmt.Printf("\n  %s:\n", name)
	fmt.Printf("    Total deposits:  %s\n", color.CyanString(info.TotalDeposits.String()))
	fmt.Printf("    Total borrowed:  %s\n", info.TotalBorrowed)
	fmt.Printf("    Available:       %s\n", info.AvailableLiquidity)
	fmt.Printf("    Interest rate:   %s%%\n", formatRate(info.InterestRate))
}

// formatRate renders a basis-point rate as a percentage.
func formatRate(rate *big.Int) string {
	if rate == nil {
		return "0"
	}
	pct := new(big.Float).Quo(new(big.Float).SetInt(rate), big.NewFloat(100))
	return pct.Text('f', 2)
}
