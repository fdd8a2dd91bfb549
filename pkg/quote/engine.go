package quote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"fluxgate/pkg/asset"
	"fluxgate/pkg/chain"
	"fluxgate/pkg/pricefeed"
)

// ErrQuoteSuperseded is returned when a newer quote request for the same
// route was issued while this one was in flight. The stale result must
// be discarded, never shown.
var ErrQuoteSuperseded = errors.New("quote superseded by a newer request")

// ChainReader is the read-only surface the engine quotes against.
type ChainReader interface {
	AmountOut(ctx context.Context, route asset.Route, in asset.Amount) (asset.Amount, error)
	AddLiquidityQuote(ctx context.Context, a, b asset.Asset, stable bool, factory common.Address, amountA, amountB asset.Amount) (chain.LiquidityQuote, error)
}

// Quote is an immutable snapshot of a simulated swap outcome. It is
// valid only for the input that produced it; any change to input amount
// or route requires a fresh fetch.
type Quote struct {
	InputAmount  asset.Amount
	Route        asset.Route
	OutputAmount asset.Amount
	FetchedAt    time.Time
}

// USDValue is a valuation derived from the external price feed. The
// price age is surfaced so the consumer can flag staleness instead of
// blocking on a refresh.
type USDValue struct {
	Value           decimal.Decimal
	PriceAgeSeconds int64
}

// Engine derives previewed transaction outcomes from read-only contract
// calls and user-entered amounts. It never commits funds.
type Engine struct {
	reader ChainReader
	feed   pricefeed.Feed

	mu  sync.Mutex
	seq map[string]uint64
}

// NewEngine creates a quote engine over the given reader and price feed.
func NewEngine(reader ChainReader, feed pricefeed.Feed) *Engine {
	return &Engine{
		reader: reader,
		feed:   feed,
		seq:    make(map[string]uint64),
	}
}

func routeKey(r asset.Route) string {
	return fmt.Sprintf("%s-%s-%t", r.From.Addr.Hex(), r.To.Addr.Hex(), r.Stable)
}

// QuoteSwap simulates a swap and returns the expected output. Rapid
// successive calls for the same route are debounced last-request-wins: a
// slower response that arrives after a newer request started is
// discarded with ErrQuoteSuperseded.
func (e *Engine) QuoteSwap(ctx context.Context, route asset.Route, in asset.Amount) (Quote, error) {
	if in.IsZero() {
		return Quote{}, fmt.Errorf("%w: input amount is zero", chain.ErrQuoteUnavailable)
	}

	key := routeKey(route)
	e.mu.Lock()
	e.seq[key]++
	requestSeq := e.seq[key]
	e.mu.Unlock()

	out, err := e.reader.AmountOut(ctx, route, in)

	e.mu.Lock()
	latest := e.seq[key]
	e.mu.Unlock()
	if requestSeq != latest {
		return Quote{}, ErrQuoteSuperseded
	}

	if err != nil {
		return Quote{}, err
	}

	return Quote{
		InputAmount:  in,
		Route:        route,
		OutputAmount: out,
		FetchedAt:    time.Now(),
	}, nil
}

// QuoteAddLiquidity previews the amounts a liquidity add would consume
// and the pool shares it would mint, given both sides.
func (e *Engine) QuoteAddLiquidity(ctx context.Context, route asset.Route, amountA, amountB asset.Amount) (chain.LiquidityQuote, error) {
	if amountA.IsZero() || amountB.IsZero() {
		return chain.LiquidityQuote{}, fmt.Errorf("%w: liquidity amounts must be non-zero", chain.ErrQuoteUnavailable)
	}
	return e.reader.AddLiquidityQuote(ctx, route.From, route.To, route.Stable, route.Factory, amountA, amountB)
}

// QuoteAddLiquiditySingleSided handles the flow where the user declares
// only the route's from-side amount: the counter-side amount is first
// derived via a swap quote, then the pair is previewed. This composition
// belongs to the orchestrator, not the pool.
func (e *Engine) QuoteAddLiquiditySingleSided(ctx context.Context, route asset.Route, amountIn asset.Amount) (chain.LiquidityQuote, error) {
	counter, err := e.QuoteSwap(ctx, route, amountIn)
	if err != nil {
		return chain.LiquidityQuote{}, err
	}
	return e.QuoteAddLiquidity(ctx, route, amountIn, counter.OutputAmount)
}

// USDValue values an amount using the external price feed. A stale price
// is used rather than blocking; the observation age is returned so the
// consumer can indicate staleness.
func (e *Engine) USDValue(amount asset.Amount, symbol string) (USDValue, error) {
	price, err := e.feed.GetPrice(symbol)
	if err != nil {
		return USDValue{}, fmt.Errorf("failed to value %s: %w", symbol, err)
	}
	return USDValue{
		Value:           amount.Decimal().Mul(price.Value),
		PriceAgeSeconds: int64(price.Age().Seconds()),
	}, nil
}
