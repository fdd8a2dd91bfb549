package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string

	RouterAddr  string
	FactoryAddr string
	VaultAddr   string
	BTCAddr     string
	MUSDAddr    string
	PoolAddr    string

	SlippageBps   uint16
	PollInterval  time.Duration
	PriceInterval time.Duration
	CoinGeckoURL  string
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".fluxgate")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("rpc_url", "https://rpc.test.mezo.org")
	viper.SetDefault("chain_id", 31611)
	viper.SetDefault("slippage_bps", 50)
	viper.SetDefault("poll_interval", "30s")
	viper.SetDefault("price_interval", "30s")
	viper.SetDefault("coingecko_url", "https://api.coingecko.com/api/v3")

	// Read from environment variables
	viper.SetEnvPrefix("FLUXGATE")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		RPCURL:        viper.GetString("rpc_url"),
		ChainID:       viper.GetInt64("chain_id"),
		PrivateKey:    viper.GetString("private_key"),
		RouterAddr:    viper.GetString("router_addr"),
		FactoryAddr:   viper.GetString("factory_addr"),
		VaultAddr:     viper.GetString("vault_addr"),
		BTCAddr:       viper.GetString("btc_addr"),
		MUSDAddr:      viper.GetString("musd_addr"),
		PoolAddr:      viper.GetString("pool_addr"),
		SlippageBps:   uint16(viper.GetUint32("slippage_bps")),
		PollInterval:  viper.GetDuration("poll_interval"),
		PriceInterval: viper.GetDuration("price_interval"),
		CoinGeckoURL:  viper.GetString("coingecko_url"),
	}

	for name, value := range map[string]string{
		"router_addr":  cfg.RouterAddr,
		"factory_addr": cfg.FactoryAddr,
		"vault_addr":   cfg.VaultAddr,
		"btc_addr":     cfg.BTCAddr,
		"musd_addr":    cfg.MUSDAddr,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s not found. Please set FLUXGATE_%s or add it to your .fluxgate.yaml config file", name, strings.ToUpper(name))
		}
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
