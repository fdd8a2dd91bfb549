package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredAddrs(t *testing.T) {
	t.Helper()
	t.Setenv("FLUXGATE_ROUTER_ADDR", "0x00000000000000000000000000000000000000aa")
	t.Setenv("FLUXGATE_FACTORY_ADDR", "0x00000000000000000000000000000000000000cc")
	t.Setenv("FLUXGATE_VAULT_ADDR", "0x00000000000000000000000000000000000000bb")
	t.Setenv("FLUXGATE_BTC_ADDR", "0x1111111111111111111111111111111111111111")
	t.Setenv("FLUXGATE_MUSD_ADDR", "0x2222222222222222222222222222222222222222")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredAddrs(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://rpc.test.mezo.org", cfg.RPCURL)
	require.Equal(t, int64(31611), cfg.ChainID)
	require.Equal(t, uint16(50), cfg.SlippageBps)
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.Equal(t, 30*time.Second, cfg.PriceInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredAddrs(t)
	t.Setenv("FLUXGATE_RPC_URL", "http://localhost:8545")
	t.Setenv("FLUXGATE_SLIPPAGE_BPS", "100")
	t.Setenv("FLUXGATE_POLL_INTERVAL", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.Equal(t, uint16(100), cfg.SlippageBps)
	require.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestLoadRequiresContractAddresses(t *testing.T) {
	setRequiredAddrs(t)
	t.Setenv("FLUXGATE_VAULT_ADDR", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "vault_addr")
}
