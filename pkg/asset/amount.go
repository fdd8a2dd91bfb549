package asset

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount is an unsigned integer magnitude paired with a fixed decimal
// precision. All arithmetic happens on the integer magnitude; conversion
// to a human-readable value is a formatting step done at presentation
// boundaries only.
type Amount struct {
	value    *big.Int
	decimals uint8
}

// NewAmount creates an amount from a raw integer magnitude.
func NewAmount(value *big.Int, decimals uint8) (Amount, error) {
	if value == nil {
		return Amount{}, fmt.Errorf("amount value is required")
	}
	if value.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount cannot be negative: %s", value.String())
	}
	return Amount{value: new(big.Int).Set(value), decimals: decimals}, nil
}

// Zero returns a zero amount with the given precision.
func Zero(decimals uint8) Amount {
	return Amount{value: new(big.Int), decimals: decimals}
}

// ParseAmount converts a user-entered decimal string (e.g. "1.5") into an
// integer magnitude scaled by the asset's precision.
func ParseAmount(s string, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount format %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount cannot be negative: %s", s)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return Amount{}, fmt.Errorf("amount %s has more than %d decimal places", s, decimals)
	}
	return Amount{value: scaled.BigInt(), decimals: decimals}, nil
}

// BigInt returns a copy of the raw integer magnitude.
func (a Amount) BigInt() *big.Int {
	if a.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.value)
}

// Decimals returns the fixed precision of the amount.
func (a Amount) Decimals() uint8 {
	return a.decimals
}

// IsZero reports whether the magnitude is zero.
func (a Amount) IsZero() bool {
	return a.value == nil || a.value.Sign() == 0
}

// Cmp compares two magnitudes. Amounts of different precision are not
// comparable.
func (a Amount) Cmp(b Amount) (int, error) {
	if a.decimals != b.decimals {
		return 0, fmt.Errorf("cannot compare amounts with %d and %d decimals", a.decimals, b.decimals)
	}
	return a.BigInt().Cmp(b.BigInt()), nil
}

// Add returns a + b.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.decimals != b.decimals {
		return Amount{}, fmt.Errorf("cannot add amounts with %d and %d decimals", a.decimals, b.decimals)
	}
	return Amount{value: new(big.Int).Add(a.BigInt(), b.BigInt()), decimals: a.decimals}, nil
}

// Sub returns a - b, failing if the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.decimals != b.decimals {
		return Amount{}, fmt.Errorf("cannot subtract amounts with %d and %d decimals", a.decimals, b.decimals)
	}
	diff := new(big.Int).Sub(a.BigInt(), b.BigInt())
	if diff.Sign() < 0 {
		return Amount{}, fmt.Errorf("amount underflow: %s - %s", a.String(), b.String())
	}
	return Amount{value: diff, decimals: a.decimals}, nil
}

// ApplySlippage scales the amount down by the given tolerance in basis
// points, used to derive a minimum acceptable output from a quote.
func (a Amount) ApplySlippage(bps uint16) Amount {
	scaled := new(big.Int).Mul(a.BigInt(), big.NewInt(int64(10000-bps)))
	scaled.Quo(scaled, big.NewInt(10000))
	return Amount{value: scaled, decimals: a.decimals}
}

// Decimal converts the magnitude into its decimal value. Presentation
// and USD valuation only; never feed this back into on-chain math.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.BigInt(), -int32(a.decimals))
}

// String formats the amount as a decimal value.
func (a Amount) String() string {
	return a.Decimal().String()
}
