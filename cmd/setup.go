package cmd

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"fluxgate/config"
	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
	"fluxgate/pkg/orchestrator"
	"fluxgate/pkg/plan"
	"fluxgate/pkg/poller"
	"fluxgate/pkg/pricefeed"
	"fluxgate/pkg/quote"
)

// app bundles the wired core for one CLI invocation.
type app struct {
	cfg     *config.Config
	orch    *orchestrator.Orchestrator
	poller  *poller.Poller
	feed    *pricefeed.CoinGeckoFeed
	client  *ethclient.Client
	btc     asset.Asset
	musd    asset.Asset
	factory common.Address
}

// newApp dials the RPC endpoint and wires reader, broadcaster, quote
// engine, plan builder/runner and balance poller from configuration.
func newApp(cfg *config.Config) (*app, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured. Please set FLUXGATE_PRIVATE_KEY")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	signer, err := chain.NewLocalSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		client.Close()
		return nil, err
	}

	btc, err := asset.NewAsset(cfg.BTCAddr, "BTC", 18)
	if err != nil {
		client.Close()
		return nil, err
	}
	musd, err := asset.NewAsset(cfg.MUSDAddr, "MUSD", 18)
	if err != nil {
		client.Close()
		return nil, err
	}

	tracked := []asset.Asset{btc, musd}
	if cfg.PoolAddr != "" {
		lp, err := asset.NewAsset(cfg.PoolAddr, "MUSD/BTC-LP", 18)
		if err != nil {
			client.Close()
			return nil, err
		}
		tracked = append(tracked, lp)
	}

	router := common.HexToAddress(cfg.RouterAddr)
	vault := common.HexToAddress(cfg.VaultAddr)
	factory := common.HexToAddress(cfg.FactoryAddr)

	reader := chain.NewReader(client, router, vault)
	broadcaster := chain.NewBroadcaster(client, signer, router, vault, nil)

	feed := pricefeed.NewCoinGeckoFeed(cfg.CoinGeckoURL, cfg.PriceInterval, map[string]string{"BTC": "bitcoin"})
	feed.Start()

	// BTC is priced externally, MUSD by the credit vault itself.
	musdFeed := pricefeed.NewVaultFeed(reader, "MUSD", cfg.PriceInterval)

	engine := quote.NewEngine(reader, pricefeed.NewComposite(feed, musdFeed))
	builder := plan.NewBuilder(reader, router, vault, cfg.SlippageBps)
	runner := plan.NewRunner(reader, broadcaster)
	balances := poller.New(reader, signer.Address(), tracked, cfg.PollInterval)
	balances.Start(context.Background())

	session := orchestrator.Session{Account: signer.Address(), Signer: signer}
	orch := orchestrator.New(session, reader, engine, builder, runner, balances)

	return &app{
		cfg:     cfg,
		orch:    orch,
		poller:  balances,
		feed:    feed,
		client:  client,
		btc:     btc,
		musd:    musd,
		factory: factory,
	}, nil
}

// Close releases the app's background loops and the RPC connection.
func (a *app) Close() {
	a.feed.Stop()
	a.poller.Stop()
	a.client.Close()
}

// assetBySymbol resolves the configured asset for a symbol.
func (a *app) assetBySymbol(symbol string) (asset.Asset, error) {
	switch symbol {
	case "BTC", "btc":
		return a.btc, nil
	case "MUSD", "musd":
		return a.musd, nil
	default:
		return asset.Asset{}, fmt.Errorf("unknown asset '%s' (supported: BTC, MUSD)", symbol)
	}
}

// routeBetween builds the single-hop volatile-pool route for a pair.
func (a *app) routeBetween(from, to asset.Asset) asset.Route {
	return asset.Route{From: from, To: to, Stable: false, Factory: a.factory}
}

// depositTypeFor maps an asset onto its credit vault pool.
func (a *app) depositTypeFor(target asset.Asset) chain.AssetType {
	if target.Equal(a.musd) {
		return chain.AssetTypeMUSD
	}
	return chain.AssetTypeBTC
}
