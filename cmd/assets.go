package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fluxgate/config"
)

var assetsCmd = &cobra.Command{
	Use:     "list-assets",
	Aliases: []string{"assets", "ls"},
	Short:   "List the configured assets and protocol contracts",
	Long: `List the assets this CLI operates on and the protocol contract
addresses it is configured against.

Examples:
  fluxgate list-assets
  fluxgate assets`,
	Args: cobra.NoArgs,
	RunE: runListAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)
}

func runListAssets(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		out := map[string]interface{}{
			"chain_id": cfg.ChainID,
			"rpc_url":  cfg.RPCURL,
			"assets": []map[string]interface{}{
				{"symbol": "BTC", "address": cfg.BTCAddr, "decimals": 18},
				{"symbol": "MUSD", "address": cfg.MUSDAddr, "decimals": 18},
			},
			"contracts": map[string]string{
				"router":  cfg.RouterAddr,
				"factory": cfg.FactoryAddr,
				"vault":   cfg.VaultAddr,
				"pool":    cfg.PoolAddr,
			},
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("             CONFIGURED ASSETS & CONTRACTS")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Chain ID: %d\n", cfg.ChainID)
	fmt.Printf("  RPC:      %s\n", cfg.RPCURL)

	fmt.Println("\n  Assets:")
	fmt.Printf("    %-6s %s  (18 decimals)\n", "BTC", color.CyanString(cfg.BTCAddr))
	fmt.Printf("    %-6s %s  (18 decimals)\n", "MUSD", color.CyanString(cfg.MUSDAddr))

	fmt.Println("\n  Contracts:")
	fmt.Printf("    %-8s %s\n", "Router", cfg.RouterAddr)
	fmt.Printf("    %-8s %s\n", "Factory", cfg.FactoryAddr)
	fmt.Printf("    %-8s %s\n", "Vault", cfg.VaultAddr)
	if cfg.PoolAddr != "" {
		fmt.Printf("    %-8s %s\n", "Pool", cfg.PoolAddr)
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
	return nil
}
