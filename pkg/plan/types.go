package plan

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
)

// StepKind identifies one atomic on-chain action.
type StepKind string

const (
	StepApprove      StepKind = "approve"
	StepSwap         StepKind = "swap"
	StepAddLiquidity StepKind = "add_liquidity"
	StepDeposit      StepKind = "deposit"
)

// StepStatus is the state of a single step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"   // Built, not yet submitted
	StepSubmitted StepStatus = "submitted" // Accepted into the pending pool
	StepConfirmed StepStatus = "confirmed" // Finalized on-chain
	StepFailed    StepStatus = "failed"    // Reverted or rejected
	StepCancelled StepStatus = "cancelled" // Never attempted; a prior step failed
)

// Terminal reports whether the status can no longer change.
func (s StepStatus) Terminal() bool {
	return s == StepConfirmed || s == StepFailed || s == StepCancelled
}

// Status is the aggregate state of a plan.
type Status string

const (
	StatusPending   Status = "pending"   // Created, not yet started
	StatusRunning   Status = "running"   // At least one step in flight
	StatusCompleted Status = "completed" // All steps confirmed
	StatusFailed    Status = "failed"    // A step failed; the rest cancelled
)

// Template identifies one of the supported plan shapes.
type Template string

const (
	// TemplateSwapThenDeposit swaps asset A into asset B and deposits B
	// into the credit vault: [Approve(A)?, Swap(A->B), Approve(B)?, Deposit(B)].
	TemplateSwapThenDeposit Template = "swap-then-deposit"
	// TemplateAddLiquidity adds both assets to a pool:
	// [Approve(A)?, Approve(B)?, AddLiquidity(A,B)].
	TemplateAddLiquidity Template = "add-liquidity"
	// TemplateVaultDeposit deposits one asset into the credit vault:
	// [Approve(X)?, Deposit(X)].
	TemplateVaultDeposit Template = "vault-deposit"
)

// Step is one atomic on-chain action within a plan. Which fields are
// meaningful depends on Kind: an approve uses Asset/Spender/Amount, a
// swap uses Route/Amount/MinOut, a liquidity add uses Route plus both
// amount pairs, a deposit uses Asset/AssetType/Amount.
type Step struct {
	Kind StepKind

	Asset   asset.Asset
	Spender common.Address
	Route   asset.Route

	Amount        asset.Amount
	MinOut        asset.Amount
	CounterAmount asset.Amount
	MinCounter    asset.Amount
	AssetType     chain.AssetType

	Status StepStatus
	TxHash common.Hash
	Error  string

	// SettledAmount is the ledger-observed result of a confirmed swap,
	// authoritative over the quote for any data-dependent later step.
	SettledAmount asset.Amount
}

// Plan is an ordered sequence of steps built for one user-initiated
// action. It is owned exclusively by the orchestration session that
// created it and mutated only by that session's runner.
type Plan struct {
	ID       string
	Template Template
	Owner    common.Address
	Created  time.Time
	Steps    []Step
}

// Status aggregates the step states: failed wins, then running while
// any step is not terminal, completed when every step confirmed.
func (p *Plan) Status() Status {
	if len(p.Steps) == 0 {
		return StatusPending
	}

	started := false
	allConfirmed := true
	for _, s := range p.Steps {
		switch s.Status {
		case StepFailed:
			return StatusFailed
		case StepConfirmed:
			started = true
		case StepSubmitted:
			started = true
			allConfirmed = false
		case StepCancelled:
			allConfirmed = false
		default:
			allConfirmed = false
		}
	}
	if allConfirmed {
		return StatusCompleted
	}
	if started {
		return StatusRunning
	}
	return StatusPending
}

// Snapshot is an immutable copy of a plan's state, safe to hand to any
// consumer while the runner keeps mutating the live plan.
type Snapshot struct {
	PlanID   string
	Template Template
	Status   Status
	Steps    []Step
	Taken    time.Time
}

// Snapshot copies the current plan state. Amounts are value types over
// never-mutated magnitudes, so a shallow step copy is a stable snapshot.
func (p *Plan) Snapshot() Snapshot {
	steps := make([]Step, len(p.Steps))
	copy(steps, p.Steps)
	return Snapshot{
		PlanID:   p.ID,
		Template: p.Template,
		Status:   p.Status(),
		Steps:    steps,
		Taken:    time.Now(),
	}
}

// StepKinds lists the step kinds in declared order, useful for asserting
// a plan's shape.
func (p *Plan) StepKinds() []StepKind {
	kinds := make([]StepKind, len(p.Steps))
	for i, s := range p.Steps {
		kinds[i] = s.Kind
	}
	return kinds
}
