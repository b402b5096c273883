package yahoo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

var (
	_ screener.Fetcher  = (*Client)(nil)
	_ screener.Enricher = (*Client)(nil)
)

const chartBody = `{"chart":{"result":[{
	"timestamp":[1700000000,1700086400,1700172800],
	"indicators":{"quote":[{
		"open":[10.0,10.5,null],
		"high":[11.0,11.5,null],
		"low":[9.5,10.0,null],
		"close":[10.8,11.2,null],
		"volume":[120000,130000,null]
	}]}
}],"error":null}}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, UserAgent: "screener-test", Timeout: 2 * time.Second}, zaptest.NewLogger(t))
}

func TestFetchSeriesDecodesChart(t *testing.T) {
	t.Parallel()
	var gotPath, gotRange, gotInterval, gotUA string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		gotInterval = r.URL.Query().Get("interval")
		gotUA = r.UserAgent()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartBody))
	})

	series, err := c.FetchSeries(context.Background(), "AAPL", screener.Window{Range: "1y", Interval: "1d"})
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/AAPL", gotPath)
	assert.Equal(t, "1y", gotRange)
	assert.Equal(t, "1d", gotInterval)
	assert.Equal(t, "screener-test", gotUA)

	require.Len(t, series, 2)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), series[0].Date)
	assert.InDelta(t, 10.8, series[0].Close, 1e-9)
	assert.InDelta(t, 11.5, series[1].High, 1e-9)
	assert.Equal(t, int64(130000), series[1].Volume)
}

func TestFetchSeriesUnknownSymbolIsEmpty(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	series, err := c.FetchSeries(context.Background(), "GONE", screener.DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestFetchSeriesServerError(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream", http.StatusInternalServerError)
	})

	_, err := c.FetchSeries(context.Background(), "AAPL", screener.DefaultWindow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AAPL")
}

func TestFetchSeriesMalformedBody(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chart":`))
	})

	_, err := c.FetchSeries(context.Background(), "AAPL", screener.DefaultWindow)
	require.ErrorContains(t, err, "decode chart")
}

func TestFetchSeriesHonorsCancellation(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	c := newTestClient(t, func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.FetchSeries(ctx, "SLOW", screener.DefaultWindow)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDecodeChartErrorPayload(t *testing.T) {
	t.Parallel()
	_, err := decodeChart([]byte(`{"chart":{"result":null,"error":{"code":"Bad Request","description":"invalid range"}}}`))
	require.ErrorContains(t, err, "invalid range")

	series, err := decodeChart([]byte(`{"chart":{"result":[],"error":null}}`))
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestEnrichReturnsFundamentals(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "MSFT", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"symbol":"MSFT","shortName":"Microsoft","marketCap":3.1e12,
			"trailingPE":35.2,"epsTrailingTwelveMonths":11.8
		}],"error":null}}`))
	})

	raw, err := c.Enrich(context.Background(), "MSFT")
	require.NoError(t, err)
	var f Fundamentals
	require.NoError(t, json.Unmarshal(raw, &f))
	assert.Equal(t, "Microsoft", f.Name)
	require.NotNil(t, f.TrailingPE)
	assert.InDelta(t, 35.2, *f.TrailingPE, 1e-9)
	assert.Nil(t, f.ForwardPE)
	assert.NotContains(t, string(raw), "forward_pe")
}

func TestEnrichWithoutQuoteFails(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	})

	_, err := c.Enrich(context.Background(), "NOPE")
	require.ErrorContains(t, err, "no quote")
}
