package deepbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

func TestDepthParsesAndSorts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/orderbook/NS_SUI", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("level"))
		require.Equal(t, "5", r.URL.Query().Get("depth"))
		_, _ = w.Write([]byte(`{"timestamp":"1760000000000",
			"bids":[["0.09","100"],["0.094","50"]],
			"asks":[["0.10","5000000"],["0.095","2000000"],["0.2","0"]]}`))
	}))
	defer srv.Close()

	depth, err := NewClient(srv.URL).Depth(context.Background(), "NS_SUI", 5)
	require.NoError(t, err)
	require.Len(t, depth.Asks, 2)
	require.True(t, depth.BestAsk().Equal(decimal.RequireFromString("0.095")))
	require.True(t, depth.BestBid().Equal(decimal.RequireFromString("0.094")))
	require.Equal(t, int64(1760000000000), depth.Timestamp.UnixMilli())
}

func TestMidPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bids":[["1.9","10"]],"asks":[["2.1","10"]]}`))
	}))
	defer srv.Close()

	mid, _, err := NewClient(srv.URL).MidPrice(context.Background(), "SUI_USDC")
	require.NoError(t, err)
	require.True(t, mid.Equal(decimal.NewFromInt(2)))
}

func TestMidPriceEmptyBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"bids":[],"asks":[]}`))
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).MidPrice(context.Background(), "SUI_USDC")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnknownPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pool not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Depth(context.Background(), "WAL_SUI", 5)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPools(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/get_pools", r.URL.Path)
		_, _ = w.Write([]byte(`[{"pool_id":"0xabc","pool_name":"NS_SUI","base_asset_symbol":"NS","base_asset_decimals":6,"quote_asset_symbol":"SUI","quote_asset_decimals":9}]`))
	}))
	defer srv.Close()

	pools, err := NewClient(srv.URL).Pools(context.Background())
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, "NS_SUI", pools[0].PoolName)
	require.Equal(t, int32(9), pools[0].QuoteAssetDecimals)
}
