package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fluxgate/pkg/asset"
)

// MUSDReader reads the credit vault's on-chain MUSD price.
type MUSDReader interface {
	MUSDPrice(ctx context.Context) (asset.Amount, error)
}

// VaultFeed serves one symbol's USD price from the credit vault instead
// of the external collaborator. Reads are cached for the ttl and, like
// the polled feed, a stale observation is preferred over an error.
type VaultFeed struct {
	reader MUSDReader
	symbol string
	ttl    time.Duration

	mu   sync.Mutex
	last Price
}

// NewVaultFeed creates a feed serving the given symbol from the vault.
func NewVaultFeed(reader MUSDReader, symbol string, ttl time.Duration) *VaultFeed {
	if ttl <= 0 {
		ttl = DefaultRefreshInterval
	}
	return &VaultFeed{reader: reader, symbol: strings.ToUpper(symbol), ttl: ttl}
}

// GetPrice implements Feed.
func (f *VaultFeed) GetPrice(symbol string) (Price, error) {
	if strings.ToUpper(symbol) != f.symbol {
		return Price{}, fmt.Errorf("no on-chain price for %s", symbol)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.last.AsOf.IsZero() && time.Since(f.last.AsOf) < f.ttl {
		return f.last, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	amount, err := f.reader.MUSDPrice(ctx)
	if err != nil {
		if !f.last.AsOf.IsZero() {
			return f.last, nil
		}
		return Price{}, fmt.Errorf("failed to read on-chain price: %w", err)
	}

	f.last = Price{Value: amount.Decimal(), AsOf: time.Now()}
	return f.last, nil
}

// Composite consults feeds in declared order and returns the first
// price found, so external and on-chain sources can serve different
// symbols behind one Feed.
type Composite struct {
	feeds []Feed
}

// NewComposite creates a composite over the given feeds.
func NewComposite(feeds ...Feed) *Composite {
	return &Composite{feeds: feeds}
}

// GetPrice implements Feed.
func (c *Composite) GetPrice(symbol string) (Price, error) {
	var lastErr error
	for _, f := range c.feeds {
		price, err := f.GetPrice(symbol)
		if err == nil {
			return price, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no feeds configured")
	}
	return Price{}, lastErr
}
