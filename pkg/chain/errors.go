package chain

import (
	"errors"
	"strings"
)

var (
	// ErrChainUnavailable is returned when the ledger cannot be reached
	// after retries. The caller may retry the whole action.
	ErrChainUnavailable = errors.New("chain unavailable")
	// ErrQuoteUnavailable is returned when a simulated call reverts, the
	// route is invalid or the input is zero. Deterministic, never retried.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrSignatureRejected is returned when the signer declines to sign.
	ErrSignatureRejected = errors.New("signature rejected")
	// ErrTransactionReverted is returned when a broadcast transaction
	// failed on-chain.
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrInvalidInput is returned on local validation failures, before
	// any network call is made.
	ErrInvalidInput = errors.New("invalid input")
)

// dataError is the shape of go-ethereum RPC errors that carry revert data.
type dataError interface {
	ErrorData() interface{}
}

// isRevert distinguishes a deterministic execution revert from a
// transient transport failure.
func isRevert(err error) bool {
	var de dataError
	if errors.As(err, &de) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
