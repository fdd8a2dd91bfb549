package plan_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
)

var (
	testRouter  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testVault   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	testOwner   = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	testFactory = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func testAssets(t *testing.T) (asset.Asset, asset.Asset) {
	t.Helper()
	btc, err := asset.NewAsset("0x1111111111111111111111111111111111111111", "BTC", 18)
	require.NoError(t, err)
	musd, err := asset.NewAsset("0x2222222222222222222222222222222222222222", "MUSD", 18)
	require.NoError(t, err)
	return btc, musd
}

func amt(t *testing.T, value int64) asset.Amount {
	t.Helper()
	a, err := asset.NewAmount(big.NewInt(value), 18)
	require.NoError(t, err)
	return a
}

// fakeLedger simulates token balances and allowances for one owner. The
// fake broadcaster mutates it the way confirmed transactions would, so
// the runner's fresh reads observe settled state.
type fakeLedger struct {
	mu         sync.Mutex
	balances   map[string]asset.Amount // by symbol
	allowances map[string]asset.Amount // by spender+symbol
	readErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances:   make(map[string]asset.Amount),
		allowances: make(map[string]asset.Amount),
	}
}

func allowanceKey(spender common.Address, symbol string) string {
	return fmt.Sprintf("%s/%s", spender.Hex(), symbol)
}

func (l *fakeLedger) setBalance(a asset.Asset, amount asset.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[a.Symbol] = amount
}

func (l *fakeLedger) setAllowance(spender common.Address, a asset.Asset, amount asset.Amount) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(spender, a.Symbol)] = amount
}

func (l *fakeLedger) credit(a asset.Asset, amount asset.Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.balances[a.Symbol]
	if !ok {
		current = asset.Zero(a.Decimals)
	}
	next, err := current.Add(amount)
	if err != nil {
		return err
	}
	l.balances[a.Symbol] = next
	return nil
}

func (l *fakeLedger) BalanceOf(_ context.Context, _ common.Address, a asset.Asset) (asset.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return asset.Amount{}, l.readErr
	}
	balance, ok := l.balances[a.Symbol]
	if !ok {
		return asset.Zero(a.Decimals), nil
	}
	return balance, nil
}

func (l *fakeLedger) Allowance(_ context.Context, _ common.Address, spender common.Address, a asset.Asset) (asset.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return asset.Amount{}, l.readErr
	}
	allowance, ok := l.allowances[allowanceKey(spender, a.Symbol)]
	if !ok {
		return asset.Zero(a.Decimals), nil
	}
	return allowance, nil
}

// instantBackend finalizes every transaction immediately with a
// successful receipt.
type instantBackend struct{}

func (instantBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}
func (instantBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}
func (instantBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}
func (instantBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (instantBackend) SendTransaction(context.Context, *types.Transaction) error {
	return nil
}
func (instantBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

// broadcastCall records one value-moving submission.
type broadcastCall struct {
	kind   string
	asset  string
	amount asset.Amount
}

// fakeBroadcaster applies each submission to the ledger the way the
// chain would: approvals update allowances, swaps credit the settled
// output.
type fakeBroadcaster struct {
	ledger *fakeLedger

	// swapOutput is what the swap actually produces on-chain,
	// independent of what was quoted.
	swapOutput asset.Amount

	swapErr    error
	approveErr error
	depositErr error

	mu    sync.Mutex
	calls []broadcastCall
	seq   uint64
}

func newFakeBroadcaster(ledger *fakeLedger) *fakeBroadcaster {
	return &fakeBroadcaster{ledger: ledger}
}

func (b *fakeBroadcaster) record(kind, symbol string, amount asset.Amount) chain.TxHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.calls = append(b.calls, broadcastCall{kind: kind, asset: symbol, amount: amount})
	return chain.NewTxHandle(common.BigToHash(big.NewInt(int64(b.seq))), instantBackend{})
}

func (b *fakeBroadcaster) callsOf(kind string) []broadcastCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []broadcastCall
	for _, c := range b.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBroadcaster) Approve(_ context.Context, a asset.Asset, spender common.Address, amount asset.Amount) (chain.TxHandle, error) {
	if b.approveErr != nil {
		return chain.TxHandle{}, b.approveErr
	}
	b.ledger.setAllowance(spender, a, amount)
	return b.record("approve", a.Symbol, amount), nil
}

func (b *fakeBroadcaster) Swap(_ context.Context, route asset.Route, amountIn, _ asset.Amount, _ common.Address) (chain.TxHandle, error) {
	if b.swapErr != nil {
		return chain.TxHandle{}, b.swapErr
	}
	if err := b.ledger.credit(route.To, b.swapOutput); err != nil {
		return chain.TxHandle{}, err
	}
	return b.record("swap", route.From.Symbol, amountIn), nil
}

func (b *fakeBroadcaster) AddLiquidity(_ context.Context, a, _ asset.Asset, _ bool, amountA, _, _, _ asset.Amount, _ common.Address) (chain.TxHandle, error) {
	return b.record("add_liquidity", a.Symbol, amountA), nil
}

func (b *fakeBroadcaster) VaultDeposit(_ context.Context, _ chain.AssetType, amount asset.Amount) (chain.TxHandle, error) {
	if b.depositErr != nil {
		return chain.TxHandle{}, b.depositErr
	}
	return b.record("deposit", "", amount), nil
}
