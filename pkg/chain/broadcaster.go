package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"fluxgate/pkg/asset"
)

const (
	// txDeadline bounds how long a router call stays valid in the mempool.
	txDeadline = 5 * time.Minute

	receiptPollInterval = 2 * time.Second
)

// TxHandle is the uniform handle for a broadcast transaction: the hash is
// known immediately, Wait blocks until the ledger finalizes the
// transaction.
type TxHandle struct {
	Hash    common.Hash
	backend Backend
}

// NewTxHandle wraps an already-broadcast transaction hash.
func NewTxHandle(hash common.Hash, backend Backend) TxHandle {
	return TxHandle{Hash: hash, backend: backend}
}

// Wait polls for the transaction receipt until confirmation or context
// cancellation. A receipt with failed status surfaces as
// ErrTransactionReverted.
func (h TxHandle) Wait(ctx context.Context) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := h.backend.TransactionReceipt(ctx, h.Hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: tx %s", ErrTransactionReverted, h.Hash.Hex())
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) && isRevert(err) {
			return nil, fmt.Errorf("%w: %v", ErrTransactionReverted, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Broadcaster is the write-capable counterpart of Reader. It builds,
// signs and submits the value-moving calls of the three plan templates.
type Broadcaster struct {
	backend  Backend
	signer   Signer
	router   common.Address
	vault    common.Address
	gasLimit *uint64
}

// NewBroadcaster creates a broadcaster signing with the given signer. A
// nil gasLimit means estimation with a safety buffer.
func NewBroadcaster(backend Backend, signer Signer, router, vault common.Address, gasLimit *uint64) *Broadcaster {
	return &Broadcaster{
		backend:  backend,
		signer:   signer,
		router:   router,
		vault:    vault,
		gasLimit: gasLimit,
	}
}

// Signer returns the identity the broadcaster signs with.
func (b *Broadcaster) Signer() Signer {
	return b.signer
}

// send signs and broadcasts a contract call. Network-level broadcast
// failure is retried once with the same signed transaction; the nonce
// keeps the retry idempotent. A signer rejection is terminal.
func (b *Broadcaster) send(ctx context.Context, to common.Address, data []byte) (TxHandle, error) {
	from := b.signer.Address()

	nonce, err := b.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := b.backend.SuggestGasPrice(ctx)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := uint64(200000)
	if b.gasLimit != nil {
		gasLimit = *b.gasLimit
	} else {
		msg := ethereum.CallMsg{From: from, To: &to, Data: data}
		if estimated, err := b.backend.EstimateGas(ctx, msg); err == nil {
			gasLimit = estimated * 120 / 100
		}
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signed, err := b.signer.SignTx(tx)
	if err != nil {
		if errors.Is(err, ErrSignatureRejected) {
			return TxHandle{}, err
		}
		return TxHandle{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := b.backend.SendTransaction(ctx, signed); err != nil {
		if isRevert(err) {
			return TxHandle{}, fmt.Errorf("%w: %v", ErrTransactionReverted, err)
		}
		// One retry for a transient broadcast failure.
		if retryErr := b.backend.SendTransaction(ctx, signed); retryErr != nil {
			return TxHandle{}, fmt.Errorf("%w: %v", ErrChainUnavailable, retryErr)
		}
	}

	return TxHandle{Hash: signed.Hash(), backend: b.backend}, nil
}

// Approve grants the spender an allowance of exactly the given amount.
func (b *Broadcaster) Approve(ctx context.Context, a asset.Asset, spender common.Address, amount asset.Amount) (TxHandle, error) {
	data, err := erc20ABI.Pack("approve", spender, amount.BigInt())
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to pack approve: %w", err)
	}
	return b.send(ctx, a.Addr, data)
}

// Swap submits a swapExactTokensForTokens through the router with a
// minimum-output guard.
func (b *Broadcaster) Swap(ctx context.Context, route asset.Route, amountIn, minOut asset.Amount, recipient common.Address) (TxHandle, error) {
	routes := []routeTuple{{
		From:    route.From.Addr,
		To:      route.To.Addr,
		Stable:  route.Stable,
		Factory: route.Factory,
	}}
	deadline := big.NewInt(time.Now().Add(txDeadline).Unix())
	data, err := routerABI.Pack("swapExactTokensForTokens", amountIn.BigInt(), minOut.BigInt(), routes, recipient, deadline)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to pack swap: %w", err)
	}
	return b.send(ctx, b.router, data)
}

// AddLiquidity submits an addLiquidity call with minimum amounts for
// both sides.
func (b *Broadcaster) AddLiquidity(ctx context.Context, a, bAsset asset.Asset, stable bool, amountA, amountB, minA, minB asset.Amount, recipient common.Address) (TxHandle, error) {
	deadline := big.NewInt(time.Now().Add(txDeadline).Unix())
	data, err := routerABI.Pack("addLiquidity",
		a.Addr, bAsset.Addr, stable,
		amountA.BigInt(), amountB.BigInt(),
		minA.BigInt(), minB.BigInt(),
		recipient, deadline,
	)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to pack addLiquidity: %w", err)
	}
	return b.send(ctx, b.router, data)
}

// VaultDeposit deposits into the credit vault pool for one asset class.
func (b *Broadcaster) VaultDeposit(ctx context.Context, assetType AssetType, amount asset.Amount) (TxHandle, error) {
	data, err := vaultABI.Pack("deposit", uint8(assetType), amount.BigInt())
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to pack deposit: %w", err)
	}
	return b.send(ctx, b.vault, data)
}
