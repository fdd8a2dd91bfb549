package plan

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
)

// Broadcaster is the write-capable ledger surface the runner submits
// through. Satisfied by *chain.Broadcaster.
type Broadcaster interface {
	Approve(ctx context.Context, a asset.Asset, spender common.Address, amount asset.Amount) (chain.TxHandle, error)
	Swap(ctx context.Context, route asset.Route, amountIn, minOut asset.Amount, recipient common.Address) (chain.TxHandle, error)
	AddLiquidity(ctx context.Context, a, b asset.Asset, stable bool, amountA, amountB, minA, minB asset.Amount, recipient common.Address) (chain.TxHandle, error)
	VaultDeposit(ctx context.Context, assetType chain.AssetType, amount asset.Amount) (chain.TxHandle, error)
}

// Runner drives a plan's steps strictly in declared order, waiting for
// on-chain confirmation of each step before constructing and submitting
// the next. A failed step halts the plan; un-started steps are cancelled
// and earlier confirmed steps are left as settled reality.
type Runner struct {
	reader      ChainReader
	broadcaster Broadcaster
}

// NewRunner creates a runner over the given reader and broadcaster.
func NewRunner(reader ChainReader, broadcaster Broadcaster) *Runner {
	return &Runner{reader: reader, broadcaster: broadcaster}
}

// Run executes the plan and streams immutable state snapshots: one for
// the initial pending state and one per step transition. The channel
// closes once the plan reaches a terminal state.
func (r *Runner) Run(ctx context.Context, p *Plan) <-chan Snapshot {
	updates := make(chan Snapshot, len(p.Steps)*3+4)
	go r.run(ctx, p, updates)
	return updates
}

func (r *Runner) run(ctx context.Context, p *Plan, updates chan<- Snapshot) {
	defer close(updates)

	emit := func() { updates <- p.Snapshot() }
	emit()

	logger := log.WithFields(log.Fields{"plan": p.ID, "template": p.Template})
	logger.WithField("steps", len(p.Steps)).Info("plan started")

	for i := range p.Steps {
		err := r.executeStep(ctx, p, i, emit)
		emit()
		if err != nil {
			logger.WithError(err).WithField("step", i).Warn("plan failed")
			r.cancelPending(p)
			emit()
			return
		}
	}

	logger.Info("plan completed")
}

// cancelPending marks every step that never started as cancelled.
// Submitted or confirmed steps are on-chain reality and stay untouched.
func (r *Runner) cancelPending(p *Plan) {
	for i := range p.Steps {
		if p.Steps[i].Status == StepPending {
			p.Steps[i].Status = StepCancelled
		}
	}
}

func failStep(step *Step, err error) error {
	step.Status = StepFailed
	step.Error = err.Error()
	return err
}

func (r *Runner) executeStep(ctx context.Context, p *Plan, idx int, emit func()) error {
	step := &p.Steps[idx]
	logger := log.WithFields(log.Fields{"plan": p.ID, "step": idx, "kind": step.Kind})

	if step.Kind != StepApprove {
		if err := r.verifyAllowances(ctx, p.Owner, step); err != nil {
			return failStep(step, err)
		}
	}

	// The settled swap output is measured as the output asset's balance
	// delta around the swap; the ledger, not the quote, is authoritative.
	var balanceBefore asset.Amount
	if step.Kind == StepSwap {
		var err error
		balanceBefore, err = r.reader.BalanceOf(ctx, p.Owner, step.Route.To)
		if err != nil {
			return failStep(step, err)
		}
	}

	handle, err := r.submit(ctx, p.Owner, step)
	if err != nil {
		// Broadcast-time rejection; the step never reaches Submitted.
		return failStep(step, err)
	}

	step.Status = StepSubmitted
	step.TxHash = handle.Hash
	logger.WithField("tx", handle.Hash.Hex()).Info("step submitted")
	emit()

	if _, err := handle.Wait(ctx); err != nil {
		return failStep(step, err)
	}

	step.Status = StepConfirmed
	logger.WithField("tx", handle.Hash.Hex()).Info("step confirmed")

	if step.Kind == StepSwap {
		if err := r.settleSwap(ctx, p, idx, balanceBefore); err != nil {
			// The swap itself settled; the failure is that the next
			// data-dependent step cannot be derived.
			if idx+1 < len(p.Steps) {
				next := &p.Steps[idx+1]
				next.Status = StepFailed
				next.Error = fmt.Sprintf("cannot derive settled swap output: %v", err)
			}
			return err
		}
	}

	return nil
}

func (r *Runner) submit(ctx context.Context, owner common.Address, step *Step) (chain.TxHandle, error) {
	switch step.Kind {
	case StepApprove:
		return r.broadcaster.Approve(ctx, step.Asset, step.Spender, step.Amount)
	case StepSwap:
		return r.broadcaster.Swap(ctx, step.Route, step.Amount, step.MinOut, owner)
	case StepAddLiquidity:
		return r.broadcaster.AddLiquidity(ctx,
			step.Route.From, step.Route.To, step.Route.Stable,
			step.Amount, step.CounterAmount, step.MinOut, step.MinCounter,
			owner,
		)
	case StepDeposit:
		return r.broadcaster.VaultDeposit(ctx, step.AssetType, step.Amount)
	default:
		return chain.TxHandle{}, fmt.Errorf("unknown step kind: %s", step.Kind)
	}
}

// verifyAllowances re-checks the spender's allowance fresh before a
// value-moving call. The builder decided which approvals to insert; the
// runner verifies that decision still holds once settled amounts replace
// quoted ones, and fails fast rather than submitting a doomed call.
func (r *Runner) verifyAllowances(ctx context.Context, owner common.Address, step *Step) error {
	check := func(a asset.Asset, required asset.Amount) error {
		allowance, err := r.reader.Allowance(ctx, owner, step.Spender, a)
		if err != nil {
			return err
		}
		cmp, err := allowance.Cmp(required)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return fmt.Errorf("%w: allowance %s %s is less than required %s",
				chain.ErrInvalidInput, allowance, a.Symbol, required)
		}
		return nil
	}

	switch step.Kind {
	case StepSwap:
		return check(step.Route.From, step.Amount)
	case StepAddLiquidity:
		if err := check(step.Route.From, step.Amount); err != nil {
			return err
		}
		return check(step.Route.To, step.CounterAmount)
	case StepDeposit:
		return check(step.Asset, step.Amount)
	}
	return nil
}

// settleSwap measures the confirmed swap's actual output and propagates
// it into the not-yet-started data-dependent steps.
func (r *Runner) settleSwap(ctx context.Context, p *Plan, idx int, balanceBefore asset.Amount) error {
	step := &p.Steps[idx]

	balanceAfter, err := r.reader.BalanceOf(ctx, p.Owner, step.Route.To)
	if err != nil {
		return err
	}
	settled, err := balanceAfter.Sub(balanceBefore)
	if err != nil {
		return err
	}
	step.SettledAmount = settled

	log.WithFields(log.Fields{
		"plan":    p.ID,
		"quoted":  step.MinOut.String(),
		"settled": settled.String(),
		"asset":   step.Route.To.Symbol,
	}).Info("swap settled")

	for i := idx + 1; i < len(p.Steps); i++ {
		next := &p.Steps[i]
		if next.Status != StepPending {
			continue
		}
		if (next.Kind == StepApprove || next.Kind == StepDeposit) && next.Asset.Equal(step.Route.To) {
			next.Amount = settled
		}
	}
	return nil
}
