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
	"fluxgate/pkg/asset"
	"fluxgate/pkg/parser"
	"fluxgate/pkg/quote"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [amount] [from] to [to]",
	Short: "Preview a swap without executing it",
	Long: `Fetch a fresh on-chain quote for swapping one asset to another.

The quote shows the expected output, the minimum received after the
configured slippage guard, and the USD valuation where a price is
available.

Example:
  fluxgate quote 1.5 BTC to MUSD`,
	Args: cobra.MinimumNArgs(3),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	req, err := parser.ParseQuoteRequest(strings.Join(args, " "))
	if err != nil {
		printError(err)
		return err
	}

	cfg := config.Get()
	a, err := newApp(cfg)
	if err != nil {
		printError(err)
		return err
	}
	defer a.Close()

	from, err := a.assetBySymbol(req.SourceAsset)
	if err != nil {
		printError(err)
		return err
	}
	to, err := a.assetBySymbol(req.DestAsset)
	if err != nil {
		printError(err)
		return err
	}
	amount, err := asset.ParseAmount(req.Amount, from.Decimals)
	if err != nil {
		printError(fmt.Errorf("invalid amount '%s': %w", req.Amount, err))
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Fetching quote..."
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	q, err := a.orch.GetQuote(ctx, a.routeBetween(from, to), amount)
	s.Stop()
	if err != nil {
		printError(fmt.Errorf("failed to get quote: %w", err))
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		return printQuoteJSON(a, q)
	}

	displayQuote(a, q)
	return nil
}

func displayQuote(a *app, q quote.Quote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  You pay:      %s %s\n", color.CyanString(q.InputAmount.String()), q.Route.From.Symbol)
	fmt.Printf("  You receive:  %s %s\n", color.CyanString(q.OutputAmount.String()), q.Route.To.Symbol)

	minOut := q.OutputAmount.ApplySlippage(a.cfg.SlippageBps)
	fmt.Printf("  Min received: %s %s (%.2f%% slippage guard)\n",
		minOut, q.Route.To.Symbol, float64(a.cfg.SlippageBps)/100)

	if usd, err := a.orch.USDValue(q.InputAmount, q.Route.From.Symbol); err == nil {
		fmt.Printf("\n  Input value:  ~$%s", usd.Value.StringFixed(2))
		if usd.PriceAgeSeconds > 60 {
			color.Yellow("  (price %ds old)", usd.PriceAgeSeconds)
		} else {
			fmt.Println()
		}
	}

	fmt.Printf("\n  Quoted at:    %s\n", q.FetchedAt.Format(time.RFC3339))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func printQuoteJSON(a *app, q quote.Quote) error {
	out := map[string]interface{}{
		"from":          q.Route.From.Symbol,
		"to":            q.Route.To.Symbol,
		"input_amount":  q.InputAmount.String(),
		"output_amount": q.OutputAmount.String(),
		"fetched_at":    q.FetchedAt.Format(time.RFC3339),
	}
	out["min_received"] = q.OutputAmount.ApplySlippage(a.cfg.SlippageBps).String()
	out["slippage_bps"] = a.cfg.SlippageBps
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
