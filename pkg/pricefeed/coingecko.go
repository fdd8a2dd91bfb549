package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the CoinGecko simple-price endpoint base.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	// DefaultRefreshInterval matches the UI refresh cadence.
	DefaultRefreshInterval = 30 * time.Second
)

// Price is one observation from the external price collaborator.
type Price struct {
	Value decimal.Decimal
	AsOf  time.Time
}

// Age returns how stale the observation is.
func (p Price) Age() time.Duration {
	return time.Since(p.AsOf)
}

// Feed supplies USD prices by asset symbol. Polled, not pushed;
// consumers tolerate staleness and read the age off the Price.
type Feed interface {
	GetPrice(symbol string) (Price, error)
}

// CoinGeckoFeed polls the CoinGecko simple-price API on a fixed interval
// and serves the last successful observation.
type CoinGeckoFeed struct {
	client      *http.Client
	baseURL     string
	interval    time.Duration
	idsBySymbol map[string]string

	mu     sync.RWMutex
	latest map[string]Price

	quitChan chan struct{}
	once     sync.Once
}

// NewCoinGeckoFeed creates a feed for the given symbol -> coin id
// mapping (e.g. {"BTC": "bitcoin"}).
func NewCoinGeckoFeed(baseURL string, interval time.Duration, idsBySymbol map[string]string) *CoinGeckoFeed {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	normalized := make(map[string]string, len(idsBySymbol))
	for symbol, id := range idsBySymbol {
		normalized[strings.ToUpper(symbol)] = id
	}
	return &CoinGeckoFeed{
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		interval:    interval,
		idsBySymbol: normalized,
		latest:      make(map[string]Price),
		quitChan:    make(chan struct{}, 1),
	}
}

// Start begins the polling loop. The first refresh happens immediately
// so consumers do not wait a full interval for an initial price.
func (f *CoinGeckoFeed) Start() {
	go func() {
		f.refresh()

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.quitChan:
				return
			case <-ticker.C:
				f.refresh()
			}
		}
	}()
}

// Stop halts the polling loop.
func (f *CoinGeckoFeed) Stop() {
	f.once.Do(func() { close(f.quitChan) })
}

// GetPrice returns the latest observation for a symbol. A stale price is
// returned rather than blocking; the caller decides how to flag age.
func (f *CoinGeckoFeed) GetPrice(symbol string) (Price, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	price, ok := f.latest[strings.ToUpper(symbol)]
	if !ok {
		return Price{}, fmt.Errorf("no price observed yet for %s", symbol)
	}
	return price, nil
}

func (f *CoinGeckoFeed) refresh() {
	ids := make([]string, 0, len(f.idsBySymbol))
	for _, id := range f.idsBySymbol {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", f.baseURL, strings.Join(ids, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.WithError(err).Warn("pricefeed: failed to build request")
		return
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("pricefeed: refresh failed, keeping last prices")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("pricefeed: unexpected response, keeping last prices")
		return
	}

	var payload map[string]struct {
		USD decimal.Decimal `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.WithError(err).Warn("pricefeed: failed to decode response")
		return
	}

	now := time.Now()
	f.mu.Lock()
	defer f.mu.Unlock()
	for symbol, id := range f.idsBySymbol {
		entry, ok := payload[id]
		if !ok {
			continue
		}
		f.latest[symbol] = Price{Value: entry.USD, AsOf: now}
	}
}

// StaticFeed serves fixed prices. Useful for tests and for symbols whose
// price comes from an on-chain source instead of the collaborator.
type StaticFeed struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewStaticFeed creates an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{prices: make(map[string]Price)}
}

// SetPrice records a price observation for a symbol.
func (f *StaticFeed) SetPrice(symbol string, value decimal.Decimal, asOf time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[strings.ToUpper(symbol)] = Price{Value: value, AsOf: asOf}
}

// GetPrice implements Feed.
func (f *StaticFeed) GetPrice(symbol string) (Price, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[strings.ToUpper(symbol)]
	if !ok {
		return Price{}, fmt.Errorf("no price set for %s", symbol)
	}
	return price, nil
}
