package poller_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/poller"
)

var testAccount = common.HexToAddress("0x00000000000000000000000000000000000000dd")

type fakeReader struct {
	mu       sync.Mutex
	balances map[string]asset.Amount
	err      error
}

func (f *fakeReader) set(symbol string, value int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances == nil {
		f.balances = make(map[string]asset.Amount)
	}
	a, _ := asset.NewAmount(big.NewInt(value), 18)
	f.balances[symbol] = a
}

func (f *fakeReader) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeReader) BalanceOf(_ context.Context, _ common.Address, a asset.Asset) (asset.Amount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return asset.Amount{}, f.err
	}
	balance, ok := f.balances[a.Symbol]
	if !ok {
		return asset.Zero(a.Decimals), nil
	}
	return balance, nil
}

func testAssets(t *testing.T) []asset.Asset {
	t.Helper()
	btc, err := asset.NewAsset("0x1111111111111111111111111111111111111111", "BTC", 18)
	require.NoError(t, err)
	musd, err := asset.NewAsset("0x2222222222222222222222222222222222222222", "MUSD", 18)
	require.NoError(t, err)
	return []asset.Asset{btc, musd}
}

func TestPollerRefresh(t *testing.T) {
	reader := &fakeReader{}
	reader.set("BTC", 1_000)
	reader.set("MUSD", 2_000)

	p := poller.New(reader, testAccount, testAssets(t), 0)

	_, ok := p.Snapshot()
	require.False(t, ok, "no snapshot before the first refresh")

	require.NoError(t, p.Refresh(context.Background()))

	snapshot, ok := p.Snapshot()
	require.True(t, ok)
	require.Equal(t, testAccount, snapshot.Address)
	require.False(t, snapshot.FetchedAt.IsZero())

	btc, ok := snapshot.Balance("BTC")
	require.True(t, ok)
	require.Equal(t, big.NewInt(1_000), btc.BigInt())

	_, ok = snapshot.Balance("UNKNOWN")
	require.False(t, ok)
}

func TestPollerKeepsLastSnapshotOnFailure(t *testing.T) {
	reader := &fakeReader{}
	reader.set("BTC", 1_000)
	reader.set("MUSD", 2_000)

	p := poller.New(reader, testAccount, testAssets(t), 0)
	require.NoError(t, p.Refresh(context.Background()))

	first, ok := p.Snapshot()
	require.True(t, ok)

	// Every read fails; the snapshot must stay whole rather than mix
	// fresh and stale balances.
	reader.fail(errors.New("connection refused"))
	require.Error(t, p.Refresh(context.Background()))

	second, ok := p.Snapshot()
	require.True(t, ok)
	require.Equal(t, first.FetchedAt, second.FetchedAt)
	btc, _ := second.Balance("BTC")
	require.Equal(t, big.NewInt(1_000), btc.BigInt())
}

func TestPollerRefreshReplacesSnapshotAtomically(t *testing.T) {
	reader := &fakeReader{}
	reader.set("BTC", 1_000)
	reader.set("MUSD", 2_000)

	p := poller.New(reader, testAccount, testAssets(t), 0)
	require.NoError(t, p.Refresh(context.Background()))

	reader.set("BTC", 3_000)
	require.NoError(t, p.Refresh(context.Background()))

	snapshot, ok := p.Snapshot()
	require.True(t, ok)
	btc, _ := snapshot.Balance("BTC")
	require.Equal(t, big.NewInt(3_000), btc.BigInt())
}

func TestPollerRefreshNowDoesNotBlock(t *testing.T) {
	reader := &fakeReader{}
	p := poller.New(reader, testAccount, testAssets(t), 0)

	// Without a running loop nothing drains the trigger channel; both
	// calls must still return immediately.
	p.RefreshNow()
	p.RefreshNow()
}
