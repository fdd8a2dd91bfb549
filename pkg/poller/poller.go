package poller

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"fluxgate/pkg/asset"
)

// DefaultPollInterval is how often balances refresh while a view is
// active.
const DefaultPollInterval = 30 * time.Second

// AccountSnapshot is an immutable view of an account's balances, keyed
// by asset symbol. Consumers must treat it as stale-tolerant: freshness
// is bounded by FetchedAt, nothing more.
type AccountSnapshot struct {
	Address   common.Address
	Balances  map[string]asset.Amount
	FetchedAt time.Time
}

// Balance returns the snapshot balance for a symbol.
func (s *AccountSnapshot) Balance(symbol string) (asset.Amount, bool) {
	amount, ok := s.Balances[symbol]
	return amount, ok
}

// BalanceReader is the read-only surface the poller refreshes from.
type BalanceReader interface {
	BalanceOf(ctx context.Context, account common.Address, a asset.Asset) (asset.Amount, error)
}

// Poller refreshes an AccountSnapshot on a fixed interval and on demand
// (immediately after a plan reaches a terminal state). A refresh builds
// a new snapshot rather than mutating the last one, so readers never
// observe a torn state; on failure the last snapshot stays visible.
type Poller struct {
	reader   BalanceReader
	account  common.Address
	assets   []asset.Asset
	interval time.Duration

	mu       sync.RWMutex
	snapshot *AccountSnapshot

	refreshChan chan struct{}
	quitChan    chan struct{}
	once        sync.Once
}

// New creates a poller tracking the given assets for one account.
func New(reader BalanceReader, account common.Address, assets []asset.Asset, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		reader:      reader,
		account:     account,
		assets:      assets,
		interval:    interval,
		refreshChan: make(chan struct{}, 1),
		quitChan:    make(chan struct{}, 1),
	}
}

// Start begins the polling loop with an immediate first refresh.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		p.refresh(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.quitChan:
				return
			case <-ticker.C:
				p.refresh(ctx)
			case <-p.refreshChan:
				p.refresh(ctx)
			}
		}
	}()
}

// Stop halts the polling loop.
func (p *Poller) Stop() {
	p.once.Do(func() { close(p.quitChan) })
}

// RefreshNow schedules an immediate refresh, coalescing with any that is
// already queued. Called when a plan completes or fails.
func (p *Poller) RefreshNow() {
	select {
	case p.refreshChan <- struct{}{}:
	default:
	}
}

// Refresh performs one synchronous refresh, replacing the snapshot only
// if every balance read succeeds.
func (p *Poller) Refresh(ctx context.Context) error {
	return p.refresh(ctx)
}

func (p *Poller) refresh(ctx context.Context) error {
	balances := make(map[string]asset.Amount, len(p.assets))
	for _, a := range p.assets {
		amount, err := p.reader.BalanceOf(ctx, p.account, a)
		if err != nil {
			// The last successful snapshot stays visible; its FetchedAt
			// tells the consumer how stale it is.
			log.WithError(err).WithField("asset", a.Symbol).Warn("balance poll failed, keeping last snapshot")
			return err
		}
		balances[a.Symbol] = amount
	}

	next := &AccountSnapshot{
		Address:   p.account,
		Balances:  balances,
		FetchedAt: time.Now(),
	}

	p.mu.Lock()
	p.snapshot = next
	p.mu.Unlock()
	return nil
}

// Snapshot returns the last successful snapshot, or false before the
// first refresh completes.
func (p *Poller) Snapshot() (*AccountSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snapshot == nil {
		return nil, false
	}
	return p.snapshot, true
}
