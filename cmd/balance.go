package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fluxgate/config"
	"fluxgate/pkg/poller"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show tracked asset balances for the configured account",
	Long: `Read the current on-chain balances of the tracked assets (BTC, MUSD
and the LP token when a pool address is configured) and value them
against the external price feed where a price is available.`,
	Args: cobra.NoArgs,
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching balances..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = a.poller.Refresh(ctx)
	cancel()
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to fetch balances: %w", err))
		return err
	}

	snapshot, ok := a.orch.GetAccountSnapshot()
	if !ok {
		err := fmt.Errorf("no balance snapshot available")
		printError(err)
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return printBalancesJSON(snapshot)
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                 ACCOUNT BALANCES")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Account: %s\n\n", color.CyanString(snapshot.Address.Hex()))

	for _, symbol := range []string{"BTC", "MUSD", "MUSD/BTC-LP"} {
		amount, ok := snapshot.Balance(symbol)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-12s %s", symbol, color.CyanString(amount.String()))
		if usd, err := a.orch.USDValue(amount, symbol); err == nil {
			line += fmt.Sprintf("  (~$%s)", usd.Value.StringFixed(2))
		}
		fmt.Println(line)
	}

	fmt.Printf("\n  As of: %s\n", snapshot.FetchedAt.Format(time.RFC3339))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}

func printBalancesJSON(snapshot *poller.AccountSnapshot) error {
	balances := make(map[string]string, len(snapshot.Balances))
	for symbol, amount := range snapshot.Balances {
		balances[symbol] = amount.String()
	}
	out := map[string]interface{}{
		"account":    snapshot.Address.Hex(),
		"balances":   balances,
		"fetched_at": snapshot.FetchedAt.Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
