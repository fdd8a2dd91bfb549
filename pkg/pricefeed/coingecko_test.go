package pricefeed_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"fluxgate/pkg/pricefeed"
)

func TestCoinGeckoFeedRefresh(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "/simple/price", r.URL.Path)
		require.Contains(t, r.URL.RawQuery, "ids=bitcoin")
		fmt.Fprint(w, `{"bitcoin":{"usd":60123.45}}`)
	}))
	defer server.Close()

	feed := pricefeed.NewCoinGeckoFeed(server.URL, time.Hour, map[string]string{"BTC": "bitcoin"})
	feed.Start()
	defer feed.Stop()

	require.Eventually(t, func() bool {
		_, err := feed.GetPrice("BTC")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	price, err := feed.GetPrice("btc")
	require.NoError(t, err)
	require.True(t, price.Value.Equal(decimal.RequireFromString("60123.45")), "got %s", price.Value)
	require.Less(t, price.Age(), time.Minute)
	require.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestCoinGeckoFeedKeepsLastPriceOnFailure(t *testing.T) {
	var failing atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"bitcoin":{"usd":60000}}`)
	}))
	defer server.Close()

	feed := pricefeed.NewCoinGeckoFeed(server.URL, 20*time.Millisecond, map[string]string{"BTC": "bitcoin"})
	feed.Start()
	defer feed.Stop()

	require.Eventually(t, func() bool {
		_, err := feed.GetPrice("BTC")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	failing.Store(true)
	time.Sleep(100 * time.Millisecond)

	price, err := feed.GetPrice("BTC")
	require.NoError(t, err, "a failed refresh must not drop the last observation")
	require.True(t, price.Value.Equal(decimal.NewFromInt(60000)))
}

func TestCoinGeckoFeedUnknownSymbol(t *testing.T) {
	feed := pricefeed.NewCoinGeckoFeed("http://localhost:0", time.Hour, nil)
	_, err := feed.GetPrice("BTC")
	require.Error(t, err)
}

func TestStaticFeed(t *testing.T) {
	feed := pricefeed.NewStaticFeed()

	_, err := feed.GetPrice("BTC")
	require.Error(t, err)

	asOf := time.Now().Add(-90 * time.Second)
	feed.SetPrice("btc", decimal.NewFromInt(60000), asOf)

	price, err := feed.GetPrice("BTC")
	require.NoError(t, err)
	require.True(t, price.Value.Equal(decimal.NewFromInt(60000)))
	require.Greater(t, price.Age(), time.Minute)
}
