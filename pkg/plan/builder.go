package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
	"fluxgate/pkg/quote"
)

// Builder constructs plans for the supported templates. Building reads
// current on-chain state (balances, allowances) but submits nothing;
// identical inputs against identical chain state yield identical plans.
type Builder struct {
	reader      ChainReader
	gate        *ApprovalGate
	router      common.Address
	vault       common.Address
	slippageBps uint16
}

// NewBuilder creates a builder. slippageBps is the minimum-output guard
// applied to quoted amounts in value-moving steps.
func NewBuilder(reader ChainReader, router, vault common.Address, slippageBps uint16) *Builder {
	return &Builder{
		reader:      reader,
		gate:        NewApprovalGate(reader),
		router:      router,
		vault:       vault,
		slippageBps: slippageBps,
	}
}

// validateSpend rejects non-positive amounts locally and amounts
// exceeding the owner's balance.
func (b *Builder) validateSpend(ctx context.Context, owner common.Address, a asset.Asset, amount asset.Amount) error {
	if amount.IsZero() {
		return fmt.Errorf("%w: %s amount must be positive", chain.ErrInvalidInput, a.Symbol)
	}

	balance, err := b.reader.BalanceOf(ctx, owner, a)
	if err != nil {
		return err
	}
	cmp, err := balance.Cmp(amount)
	if err != nil {
		return err
	}
	if cmp < 0 {
		return fmt.Errorf("%w: %s balance %s is less than %s", chain.ErrInvalidInput, a.Symbol, balance, amount)
	}
	return nil
}

func newPlan(template Template, owner common.Address, steps []Step) *Plan {
	return &Plan{
		ID:       uuid.New().String(),
		Template: template,
		Owner:    owner,
		Created:  time.Now(),
		Steps:    steps,
	}
}

// BuildSwapThenDeposit builds [Approve(A)?, Swap(A->B), Approve(B)?,
// Deposit(B)] from a fresh swap quote. The B-side amounts are the quoted
// output; the runner replaces them with the settled swap result before
// they execute.
func (b *Builder) BuildSwapThenDeposit(ctx context.Context, owner common.Address, q quote.Quote, depositType chain.AssetType) (*Plan, error) {
	if err := b.validateSpend(ctx, owner, q.Route.From, q.InputAmount); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, 4)

	approveIn, err := b.gate.EnsureAllowance(ctx, owner, b.router, q.Route.From, q.InputAmount)
	if err != nil {
		return nil, err
	}
	if approveIn != nil {
		steps = append(steps, *approveIn)
	}

	steps = append(steps, Step{
		Kind:    StepSwap,
		Asset:   q.Route.From,
		Spender: b.router,
		Route:   q.Route,
		Amount:  q.InputAmount,
		MinOut:  q.OutputAmount.ApplySlippage(b.slippageBps),
		Status:  StepPending,
	})

	approveOut, err := b.gate.EnsureAllowance(ctx, owner, b.vault, q.Route.To, q.OutputAmount)
	if err != nil {
		return nil, err
	}
	if approveOut != nil {
		steps = append(steps, *approveOut)
	}

	steps = append(steps, Step{
		Kind:      StepDeposit,
		Asset:     q.Route.To,
		Spender:   b.vault,
		AssetType: depositType,
		Amount:    q.OutputAmount,
		Status:    StepPending,
	})

	return newPlan(TemplateSwapThenDeposit, owner, steps), nil
}

// BuildAddLiquidity builds [Approve(A)?, Approve(B)?, AddLiquidity(A,B)]
// from an add-liquidity quote for the route's asset pair.
func (b *Builder) BuildAddLiquidity(ctx context.Context, owner common.Address, route asset.Route, lq chain.LiquidityQuote) (*Plan, error) {
	if err := b.validateSpend(ctx, owner, route.From, lq.AmountA); err != nil {
		return nil, err
	}
	if err := b.validateSpend(ctx, owner, route.To, lq.AmountB); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, 3)

	approveA, err := b.gate.EnsureAllowance(ctx, owner, b.router, route.From, lq.AmountA)
	if err != nil {
		return nil, err
	}
	if approveA != nil {
		steps = append(steps, *approveA)
	}

	approveB, err := b.gate.EnsureAllowance(ctx, owner, b.router, route.To, lq.AmountB)
	if err != nil {
		return nil, err
	}
	if approveB != nil {
		steps = append(steps, *approveB)
	}

	steps = append(steps, Step{
		Kind:          StepAddLiquidity,
		Asset:         route.From,
		Spender:       b.router,
		Route:         route,
		Amount:        lq.AmountA,
		CounterAmount: lq.AmountB,
		MinOut:        lq.AmountA.ApplySlippage(b.slippageBps),
		MinCounter:    lq.AmountB.ApplySlippage(b.slippageBps),
		Status:        StepPending,
	})

	return newPlan(TemplateAddLiquidity, owner, steps), nil
}

// BuildVaultDeposit builds [Approve(X)?, Deposit(X)].
func (b *Builder) BuildVaultDeposit(ctx context.Context, owner common.Address, a asset.Asset, depositType chain.AssetType, amount asset.Amount) (*Plan, error) {
	if err := b.validateSpend(ctx, owner, a, amount); err != nil {
		return nil, err
	}

	steps := make([]Step, 0, 2)

	approve, err := b.gate.EnsureAllowance(ctx, owner, b.vault, a, amount)
	if err != nil {
		return nil, err
	}
	if approve != nil {
		steps = append(steps, *approve)
	}

	steps = append(steps, Step{
		Kind:      StepDeposit,
		Asset:     a,
		Spender:   b.vault,
		AssetType: depositType,
		Amount:    amount,
		Status:    StepPending,
	})

	return newPlan(TemplateVaultDeposit, owner, steps), nil
}
