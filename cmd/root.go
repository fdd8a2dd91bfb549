package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fluxgate",
	Short: "A CLI for BTC/MUSD swaps, liquidity and credit vault deposits",
	Long: `fluxgate sequences multi-step on-chain operations against the Flux Gate
protocol contracts: swap BTC to MUSD, provide liquidity to the MUSD/BTC
pool, and deposit into the credit vault to earn lending interest.

Every action is previewed with a fresh quote, approvals are issued only
when the current allowance is insufficient, and dependent steps always
use the settled on-chain result of the previous step.

Examples:
  fluxgate quote 1.5 BTC to MUSD
  fluxgate invest 1.5 BTC
  fluxgate liquidity 0.5 BTC
  fluxgate deposit 100 MUSD
  fluxgate balance
  fluxgate vault`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
