package plan_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
	"fluxgate/pkg/plan"
)

func collect(t *testing.T, updates <-chan plan.Snapshot) []plan.Snapshot {
	t.Helper()
	var out []plan.Snapshot
	for snapshot := range updates {
		out = append(out, snapshot)
	}
	require.NotEmpty(t, out)
	return out
}

func TestRunnerSwapThenDepositPropagatesSettledOutput(t *testing.T) {
	btc, _ := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(btc, amt(t, 10_000))

	broadcaster := newFakeBroadcaster(ledger)
	// The swap settles 10% below the quoted 20 000.
	broadcaster.swapOutput = amt(t, 18_000)

	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	q := testSwapQuote(t, amt(t, 10_000), amt(t, 20_000))
	p, err := builder.BuildSwapThenDeposit(context.Background(), testOwner, q, chain.AssetTypeMUSD)
	require.NoError(t, err)
	require.Equal(t, []plan.StepKind{
		plan.StepApprove, plan.StepSwap, plan.StepApprove, plan.StepDeposit,
	}, p.StepKinds())

	runner := plan.NewRunner(ledger, broadcaster)
	snapshots := collect(t, runner.Run(context.Background(), p))

	final := snapshots[len(snapshots)-1]
	require.Equal(t, plan.StatusCompleted, final.Status)
	for _, s := range final.Steps {
		require.Equal(t, plan.StepConfirmed, s.Status)
	}

	// The swap records what the ledger actually produced.
	require.Equal(t, amt(t, 18_000), final.Steps[1].SettledAmount)

	// The settled amount, not the quote, reaches the vault approval and
	// the deposit.
	approves := broadcaster.callsOf("approve")
	require.Len(t, approves, 2)
	require.Equal(t, amt(t, 18_000), approves[1].amount)

	deposits := broadcaster.callsOf("deposit")
	require.Len(t, deposits, 1)
	require.Equal(t, amt(t, 18_000), deposits[0].amount)
}

func TestRunnerEmitsOrderedTransitions(t *testing.T) {
	_, musd := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(musd, amt(t, 5_000))
	ledger.setAllowance(testVault, musd, amt(t, 5_000))

	broadcaster := newFakeBroadcaster(ledger)
	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	p, err := builder.BuildVaultDeposit(context.Background(), testOwner, musd, chain.AssetTypeMUSD, amt(t, 5_000))
	require.NoError(t, err)

	runner := plan.NewRunner(ledger, broadcaster)
	snapshots := collect(t, runner.Run(context.Background(), p))

	// Initial snapshot shows the untouched plan.
	require.Equal(t, plan.StatusPending, snapshots[0].Status)
	require.Equal(t, plan.StepPending, snapshots[0].Steps[0].Status)

	// A step is never confirmed before it was submitted.
	seenSubmitted := false
	for _, snapshot := range snapshots {
		switch snapshot.Steps[0].Status {
		case plan.StepSubmitted:
			seenSubmitted = true
			require.NotZero(t, snapshot.Steps[0].TxHash)
		case plan.StepConfirmed:
			require.True(t, seenSubmitted)
		}
	}
	require.Equal(t, plan.StatusCompleted, snapshots[len(snapshots)-1].Status)
}

func TestRunnerFailureCancelsRemainingSteps(t *testing.T) {
	btc, _ := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(btc, amt(t, 10_000))

	broadcaster := newFakeBroadcaster(ledger)
	broadcaster.swapErr = chain.ErrTransactionReverted

	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	q := testSwapQuote(t, amt(t, 10_000), amt(t, 20_000))
	p, err := builder.BuildSwapThenDeposit(context.Background(), testOwner, q, chain.AssetTypeMUSD)
	require.NoError(t, err)

	runner := plan.NewRunner(ledger, broadcaster)
	snapshots := collect(t, runner.Run(context.Background(), p))

	final := snapshots[len(snapshots)-1]
	require.Equal(t, plan.StatusFailed, final.Status)

	// The input approval settled before the failure and stays confirmed.
	require.Equal(t, plan.StepConfirmed, final.Steps[0].Status)
	// The swap failed at broadcast and never reached Submitted.
	require.Equal(t, plan.StepFailed, final.Steps[1].Status)
	require.NotEmpty(t, final.Steps[1].Error)
	// Everything after is cancelled, not attempted.
	require.Equal(t, plan.StepCancelled, final.Steps[2].Status)
	require.Equal(t, plan.StepCancelled, final.Steps[3].Status)
	require.Empty(t, broadcaster.callsOf("deposit"))
}

func TestRunnerVerifiesAllowanceBeforeValueMovingStep(t *testing.T) {
	_, musd := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(musd, amt(t, 5_000))
	ledger.setAllowance(testVault, musd, amt(t, 5_000))

	broadcaster := newFakeBroadcaster(ledger)
	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	p, err := builder.BuildVaultDeposit(context.Background(), testOwner, musd, chain.AssetTypeMUSD, amt(t, 5_000))
	require.NoError(t, err)
	require.Equal(t, []plan.StepKind{plan.StepDeposit}, p.StepKinds())

	// The allowance was consumed between building and running.
	ledger.setAllowance(testVault, musd, amt(t, 100))

	runner := plan.NewRunner(ledger, broadcaster)
	snapshots := collect(t, runner.Run(context.Background(), p))

	final := snapshots[len(snapshots)-1]
	require.Equal(t, plan.StatusFailed, final.Status)
	require.Equal(t, plan.StepFailed, final.Steps[0].Status)
	require.Contains(t, final.Steps[0].Error, "allowance")
	require.Empty(t, broadcaster.calls, "a doomed call must fail fast, before broadcast")
}

func TestRunnerSettleReadFailureFailsNextStep(t *testing.T) {
	btc, musd := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(btc, amt(t, 10_000))
	ledger.setAllowance(testRouter, btc, amt(t, 10_000))
	ledger.setAllowance(testVault, musd, amt(t, 50_000))

	broadcaster := newFakeBroadcaster(ledger)
	broadcaster.swapOutput = amt(t, 18_000)

	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	q := testSwapQuote(t, amt(t, 10_000), amt(t, 20_000))
	p, err := builder.BuildSwapThenDeposit(context.Background(), testOwner, q, chain.AssetTypeMUSD)
	require.NoError(t, err)
	require.Equal(t, []plan.StepKind{plan.StepSwap, plan.StepDeposit}, p.StepKinds())

	// Balance reads start failing once the swap is in flight, so the
	// settled output cannot be derived. The confirmed swap is on-chain
	// reality; the dependent deposit is what fails.
	readFailErr := errors.New("connection lost")
	runner := plan.NewRunner(&failAfterFirstRead{ledger: ledger, err: readFailErr}, broadcaster)
	snapshots := collect(t, runner.Run(context.Background(), p))

	final := snapshots[len(snapshots)-1]
	require.Equal(t, plan.StatusFailed, final.Status)
	require.Equal(t, plan.StepConfirmed, final.Steps[0].Status)
	require.Equal(t, plan.StepFailed, final.Steps[1].Status)
	require.Contains(t, final.Steps[1].Error, "settled swap output")
}

func TestRunnerSnapshotsAreImmutable(t *testing.T) {
	_, musd := testAssets(t)
	ledger := newFakeLedger()
	ledger.setBalance(musd, amt(t, 5_000))
	ledger.setAllowance(testVault, musd, amt(t, 5_000))

	broadcaster := newFakeBroadcaster(ledger)
	builder := plan.NewBuilder(ledger, testRouter, testVault, 50)
	p, err := builder.BuildVaultDeposit(context.Background(), testOwner, musd, chain.AssetTypeMUSD, amt(t, 5_000))
	require.NoError(t, err)

	runner := plan.NewRunner(ledger, broadcaster)
	updates := runner.Run(context.Background(), p)

	first := <-updates
	require.Equal(t, plan.StepPending, first.Steps[0].Status)

	// Mutating the received copy must not leak into later snapshots or
	// the live plan.
	first.Steps[0].Status = plan.StepFailed
	first.Steps[0].Error = "tampered"

	var final plan.Snapshot
	for snapshot := range updates {
		final = snapshot
	}
	require.Equal(t, plan.StatusCompleted, final.Status)
	require.Empty(t, final.Steps[0].Error)
}

// failAfterFirstRead lets the pre-swap balance read succeed, then fails
// every later balance read. Allowance reads pass through untouched.
type failAfterFirstRead struct {
	ledger *fakeLedger
	err    error
	reads  int
}

func (f *failAfterFirstRead) BalanceOf(ctx context.Context, owner common.Address, a asset.Asset) (asset.Amount, error) {
	f.reads++
	if f.reads > 1 {
		return asset.Amount{}, f.err
	}
	return f.ledger.BalanceOf(ctx, owner, a)
}

func (f *failAfterFirstRead) Allowance(ctx context.Context, owner, spender common.Address, a asset.Asset) (asset.Amount, error) {
	return f.ledger.Allowance(ctx, owner, spender, a)
}
