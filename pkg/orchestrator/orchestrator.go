package orchestrator

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
	"fluxgate/pkg/plan"
	"fluxgate/pkg/poller"
	"fluxgate/pkg/quote"
)

// Session binds the orchestrator to one connected account. It replaces
// ambient global wallet state: the account address and signer are
// explicit values threaded into every call that needs them.
type Session struct {
	Account common.Address
	Signer  chain.Signer
}

// Orchestrator is the presentation-facing surface of the core: quotes,
// plan construction, plan execution and account snapshots. The UI layer
// renders from its outputs and never talks to the ledger directly.
type Orchestrator struct {
	session Session
	reader  *chain.Reader
	quotes  *quote.Engine
	builder *plan.Builder
	runner  *plan.Runner
	poller  *poller.Poller
}

// New wires the orchestrator for one session.
func New(session Session, reader *chain.Reader, quotes *quote.Engine, builder *plan.Builder, runner *plan.Runner, balances *poller.Poller) *Orchestrator {
	return &Orchestrator{
		session: session,
		reader:  reader,
		quotes:  quotes,
		builder: builder,
		runner:  runner,
		poller:  balances,
	}
}

// Session returns the session the orchestrator is bound to.
func (o *Orchestrator) Session() Session {
	return o.session
}

// GetQuote previews a swap for the given route and input amount.
func (o *Orchestrator) GetQuote(ctx context.Context, route asset.Route, in asset.Amount) (quote.Quote, error) {
	return o.quotes.QuoteSwap(ctx, route, in)
}

// GetLiquidityQuote previews a single-sided liquidity add: the counter
// side is derived from a swap quote first.
func (o *Orchestrator) GetLiquidityQuote(ctx context.Context, route asset.Route, in asset.Amount) (chain.LiquidityQuote, error) {
	return o.quotes.QuoteAddLiquiditySingleSided(ctx, route, in)
}

// USDValue values an amount against the external price feed.
func (o *Orchestrator) USDValue(amount asset.Amount, symbol string) (quote.USDValue, error) {
	return o.quotes.USDValue(amount, symbol)
}

// BuildSwapThenDeposit constructs a swap-then-deposit plan from a fresh
// quote.
func (o *Orchestrator) BuildSwapThenDeposit(ctx context.Context, q quote.Quote, depositType chain.AssetType) (*plan.Plan, error) {
	return o.builder.BuildSwapThenDeposit(ctx, o.session.Account, q, depositType)
}

// BuildAddLiquidity constructs a direct liquidity-add plan.
func (o *Orchestrator) BuildAddLiquidity(ctx context.Context, route asset.Route, lq chain.LiquidityQuote) (*plan.Plan, error) {
	return o.builder.BuildAddLiquidity(ctx, o.session.Account, route, lq)
}

// BuildVaultDeposit constructs a direct vault-deposit plan.
func (o *Orchestrator) BuildVaultDeposit(ctx context.Context, a asset.Asset, depositType chain.AssetType, amount asset.Amount) (*plan.Plan, error) {
	return o.builder.BuildVaultDeposit(ctx, o.session.Account, a, depositType, amount)
}

// RunPlan executes a plan and relays its snapshot stream. Once the plan
// reaches a terminal state the balance poller refreshes immediately so
// the UI re-renders from settled balances.
func (o *Orchestrator) RunPlan(ctx context.Context, p *plan.Plan) <-chan plan.Snapshot {
	in := o.runner.Run(ctx, p)
	out := make(chan plan.Snapshot, cap(in))

	go func() {
		defer close(out)
		for snapshot := range in {
			out <- snapshot
		}
		if status := p.Status(); status == plan.StatusCompleted || status == plan.StatusFailed {
			o.poller.RefreshNow()
		}
	}()

	return out
}

// GetAccountSnapshot returns the last successful balance snapshot.
func (o *Orchestrator) GetAccountSnapshot() (*poller.AccountSnapshot, bool) {
	return o.poller.Snapshot()
}

// VaultPoolInfo reads the credit vault pool state for one asset class.
func (o *Orchestrator) VaultPoolInfo(ctx context.Context, assetType chain.AssetType) (chain.PoolInfo, error) {
	return o.reader.VaultPoolInfo(ctx, assetType)
}

// LenderInfo reads the session account's lending position.
func (o *Orchestrator) LenderInfo(ctx context.Context) (chain.LenderInfo, error) {
	return o.reader.LenderInfo(ctx, o.session.Account)
}

// MUSDPrice reads the vault's on-chain MUSD price.
func (o *Orchestrator) MUSDPrice(ctx context.Context) (asset.Amount, error) {
	return o.reader.MUSDPrice(ctx)
}
