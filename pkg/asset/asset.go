package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Asset identifies an on-chain token.
type Asset struct {
	Addr     common.Address
	Symbol   string
	Decimals uint8
}

// NewAsset builds an asset from a hex address string.
func NewAsset(addr, symbol string, decimals uint8) (Asset, error) {
	if !common.IsHexAddress(addr) {
		return Asset{}, fmt.Errorf("invalid asset address: %s", addr)
	}
	return Asset{Addr: common.HexToAddress(addr), Symbol: symbol, Decimals: decimals}, nil
}

// Equal reports whether two assets refer to the same token. Addresses
// are canonicalized by common.HexToAddress, so comparison is
// case-insensitive by construction.
func (a Asset) Equal(b Asset) bool {
	return a.Addr == b.Addr
}

func (a Asset) String() string {
	return a.Symbol
}

// Route declares a single-hop conversion path between two assets through
// one pool. The stable flag selects the pool curve and the factory
// address resolves the concrete pool, matching the router's route tuple.
type Route struct {
	From    Asset
	To      Asset
	Stable  bool
	Factory common.Address
}

// Reversed returns the same route in the opposite direction.
func (r Route) Reversed() Route {
	return Route{From: r.To, To: r.From, Stable: r.Stable, Factory: r.Factory}
}

func (r Route) String() string {
	return fmt.Sprintf("%s->%s", r.From.Symbol, r.To.Symbol)
}
