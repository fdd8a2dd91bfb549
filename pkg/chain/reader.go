package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"fluxgate/pkg/asset"
)

const (
	maxReadAttempts = 3
	readBackoffBase = 500 * time.Millisecond
)

// AssetType selects a credit vault pool.
type AssetType uint8

const (
	AssetTypeBTC  AssetType = 0
	AssetTypeMUSD AssetType = 1
)

// PoolInfo describes one credit vault pool.
type PoolInfo struct {
	TotalDeposits      asset.Amount
	TotalBorrowed      asset.Amount
	AvailableLiquidity asset.Amount
	InterestRate       *big.Int
}

// LenderInfo describes a lender's position in the credit vault.
type LenderInfo struct {
	Deposited       asset.Amount
	AccruedInterest asset.Amount
	LastUpdate      time.Time
}

// LiquidityQuote is the router's preview of an addLiquidity call.
type LiquidityQuote struct {
	AmountA   asset.Amount
	AmountB   asset.Amount
	Liquidity asset.Amount
}

// Reader is the read-only query layer over the ledger. All operations
// are side-effect-free and safe to retry; transient transport failures
// are retried with exponential backoff, execution reverts are not.
type Reader struct {
	backend Backend
	router  common.Address
	vault   common.Address
}

// NewReader creates a reader bound to the router and credit vault
// contracts.
func NewReader(backend Backend, router, vault common.Address) *Reader {
	return &Reader{backend: backend, router: router, vault: vault}
}

// call performs an eth_call with retry on transport failure. A revert is
// surfaced as ErrQuoteUnavailable immediately since repeating a
// deterministic rejection cannot succeed.
func (r *Reader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}

	var lastErr error
	for attempt := 0; attempt < maxReadAttempts; attempt++ {
		if attempt > 0 {
			backoff := readBackoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		out, err := r.backend.CallContract(ctx, msg, nil)
		if err == nil {
			return out, nil
		}
		if isRevert(err) {
			return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, lastErr)
}

// BalanceOf reads the token balance of an account.
func (r *Reader) BalanceOf(ctx context.Context, account common.Address, a asset.Asset) (asset.Amount, error) {
	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	out, err := r.call(ctx, a.Addr, data)
	if err != nil {
		return asset.Amount{}, err
	}

	values, err := erc20ABI.Unpack("balanceOf", out)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	return asset.NewAmount(values[0].(*big.Int), a.Decimals)
}

// Allowance reads the amount a spender may move on behalf of an owner.
// Always read fresh; a cached value can race a pending approval.
func (r *Reader) Allowance(ctx context.Context, owner, spender common.Address, a asset.Asset) (asset.Amount, error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to pack allowance: %w", err)
	}

	out, err := r.call(ctx, a.Addr, data)
	if err != nil {
		return asset.Amount{}, err
	}

	values, err := erc20ABI.Unpack("allowance", out)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to unpack allowance: %w", err)
	}
	return asset.NewAmount(values[0].(*big.Int), a.Decimals)
}

// AmountOut simulates a swap through the router and returns the expected
// output for the route's destination asset.
func (r *Reader) AmountOut(ctx context.Context, route asset.Route, in asset.Amount) (asset.Amount, error) {
	routes := []routeTuple{{
		From:    route.From.Addr,
		To:      route.To.Addr,
		Stable:  route.Stable,
		Factory: route.Factory,
	}}
	data, err := routerABI.Pack("getAmountsOut", in.BigInt(), routes)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to pack getAmountsOut: %w", err)
	}

	out, err := r.call(ctx, r.router, data)
	if err != nil {
		return asset.Amount{}, err
	}

	values, err := routerABI.Unpack("getAmountsOut", out)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to unpack getAmountsOut: %w", err)
	}
	amounts := values[0].([]*big.Int)
	if len(amounts) == 0 {
		return asset.Amount{}, fmt.Errorf("%w: router returned no amounts", ErrQuoteUnavailable)
	}
	return asset.NewAmount(amounts[len(amounts)-1], route.To.Decimals)
}

// AddLiquidityQuote previews the amounts a liquidity add would consume
// and the pool shares it would mint.
func (r *Reader) AddLiquidityQuote(ctx context.Context, a, b asset.Asset, stable bool, factory common.Address, amountA, amountB asset.Amount) (LiquidityQuote, error) {
	data, err := routerABI.Pack("quoteAddLiquidity", a.Addr, b.Addr, stable, factory, amountA.BigInt(), amountB.BigInt())
	if err != nil {
		return LiquidityQuote{}, fmt.Errorf("failed to pack quoteAddLiquidity: %w", err)
	}

	out, err := r.call(ctx, r.router, data)
	if err != nil {
		return LiquidityQuote{}, err
	}

	values, err := routerABI.Unpack("quoteAddLiquidity", out)
	if err != nil {
		return LiquidityQuote{}, fmt.Errorf("failed to unpack quoteAddLiquidity: %w", err)
	}

	qa, err := asset.NewAmount(values[0].(*big.Int), a.Decimals)
	if err != nil {
		return LiquidityQuote{}, err
	}
	qb, err := asset.NewAmount(values[1].(*big.Int), b.Decimals)
	if err != nil {
		return LiquidityQuote{}, err
	}
	// LP tokens use 18 decimals on this router.
	liq, err := asset.NewAmount(values[2].(*big.Int), 18)
	if err != nil {
		return LiquidityQuote{}, err
	}
	return LiquidityQuote{AmountA: qa, AmountB: qb, Liquidity: liq}, nil
}

// VaultPoolInfo reads the credit vault's pool state for one asset class.
func (r *Reader) VaultPoolInfo(ctx context.Context, assetType AssetType) (PoolInfo, error) {
	data, err := vaultABI.Pack("getPoolInfo", uint8(assetType))
	if err != nil {
		return PoolInfo{}, fmt.Errorf("failed to pack getPoolInfo: %w", err)
	}

	out, err := r.call(ctx, r.vault, data)
	if err != nil {
		return PoolInfo{}, err
	}

	values, err := vaultABI.Unpack("getPoolInfo", out)
	if err != nil {
		return PoolInfo{}, fmt.Errorf("failed to unpack getPoolInfo: %w", err)
	}

	deposits, err := asset.NewAmount(values[0].(*big.Int), 18)
	if err != nil {
		return PoolInfo{}, err
	}
	borrowed, err := asset.NewAmount(values[1].(*big.Int), 18)
	if err != nil {
		return PoolInfo{}, err
	}
	liquidity, err := asset.NewAmount(values[2].(*big.Int), 18)
	if err != nil {
		return PoolInfo{}, err
	}
	return PoolInfo{
		TotalDeposits:      deposits,
		TotalBorrowed:      borrowed,
		AvailableLiquidity: liquidity,
		InterestRate:       values[3].(*big.Int),
	}, nil
}

// MUSDPrice reads the vault's on-chain MUSD price, scaled to 18 decimals.
func (r *Reader) MUSDPrice(ctx context.Context) (asset.Amount, error) {
	data, err := vaultABI.Pack("getMUSDPrice")
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to pack getMUSDPrice: %w", err)
	}

	out, err := r.call(ctx, r.vault, data)
	if err != nil {
		return asset.Amount{}, err
	}

	values, err := vaultABI.Unpack("getMUSDPrice", out)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("failed to unpack getMUSDPrice: %w", err)
	}
	return asset.NewAmount(values[0].(*big.Int), 18)
}

// LenderInfo reads an account's lending position in the credit vault.
func (r *Reader) LenderInfo(ctx context.Context, account common.Address) (LenderInfo, error) {
	data, err := vaultABI.Pack("getLenderInfo", account)
	if err != nil {
		return LenderInfo{}, fmt.Errorf("failed to pack getLenderInfo: %w", err)
	}

	out, err := r.call(ctx, r.vault, data)
	if err != nil {
		return LenderInfo{}, err
	}

	values, err := vaultABI.Unpack("getLenderInfo", out)
	if err != nil {
		return LenderInfo{}, fmt.Errorf("failed to unpack getLenderInfo: %w", err)
	}

	deposited, err := asset.NewAmount(values[0].(*big.Int), 18)
	if err != nil {
		return LenderInfo{}, err
	}
	interest, err := asset.NewAmount(values[1].(*big.Int), 18)
	if err != nil {
		return LenderInfo{}, err
	}
	return LenderInfo{
		Deposited:       deposited,
		AccruedInterest: interest,
		LastUpdate:      time.Unix(values[2].(*big.Int).Int64(), 0),
	}, nil
}
