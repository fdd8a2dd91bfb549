package plan

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"fluxgate/pkg/asset"
)

// ChainReader is the read-only ledger surface the plan layer depends on.
// Satisfied by *chain.Reader.
type ChainReader interface {
	BalanceOf(ctx context.Context, account common.Address, a asset.Asset) (asset.Amount, error)
	Allowance(ctx context.Context, owner, spender common.Address, a asset.Asset) (asset.Amount, error)
}

// ApprovalGate decides whether a spender needs an approval before a
// value-moving call and constructs the approve step when it does.
type ApprovalGate struct {
	reader ChainReader
}

// NewApprovalGate creates a gate over the given reader.
func NewApprovalGate(reader ChainReader) *ApprovalGate {
	return &ApprovalGate{reader: reader}
}

// EnsureAllowance reads the current allowance fresh (never from cache,
// to avoid racing a prior unconfirmed approval) and returns nil when it
// already covers the required amount. Otherwise it returns an Approve
// step for exactly the required amount, not an unlimited grant.
func (g *ApprovalGate) EnsureAllowance(ctx context.Context, owner, spender common.Address, a asset.Asset, required asset.Amount) (*Step, error) {
	allowance, err := g.reader.Allowance(ctx, owner, spender, a)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s allowance: %w", a.Symbol, err)
	}

	cmp, err := allowance.Cmp(required)
	if err != nil {
		return nil, err
	}
	if cmp >= 0 {
		// Already approved; a redundant approval must not be submitted.
		return nil, nil
	}

	return &Step{
		Kind:    StepApprove,
		Asset:   a,
		Spender: spender,
		Amount:  required,
		Status:  StepPending,
	}, nil
}
