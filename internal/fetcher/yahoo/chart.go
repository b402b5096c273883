package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *apiError     `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchSeries returns the daily bars for ticker over window, oldest first.
// Unknown symbols and empty histories yield an empty series and no error.
func (c *Client) FetchSeries(ctx context.Context, ticker screener.WorkItem, window screener.Window) (screener.Series, error) {
	if window == (screener.Window{}) {
		window = screener.DefaultWindow
	}
	query := url.Values{}
	query.Set("range", window.Range)
	query.Set("interval", window.Interval)
	query.Set("includePrePost", "false")
	query.Set("events", "div,splits")

	body, err := c.get(ctx, "v8/finance/chart/"+string(ticker), query)
	if errors.Is(err, errNotFound) {
		c.logger.Debug("no chart for symbol", zap.String("ticker", string(ticker)))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch chart %s: %w", ticker, err)
	}
	return decodeChart(body)
}

func decodeChart(body []byte) (screener.Series, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if e := resp.Chart.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, nil
		}
		return nil, fmt.Errorf("chart error %s: %s", e.Code, e.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	res := resp.Chart.Result[0]
	q := res.Indicators.Quote[0]
	series := make(screener.Series, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		closePx := at(q.Close, i)
		if closePx == nil {
			continue
		}
		bar := screener.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *closePx,
			Open:  valueOr(at(q.Open, i), *closePx),
			High:  valueOr(at(q.High, i), *closePx),
			Low:   valueOr(at(q.Low, i), *closePx),
		}
		if v := at(q.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		series = append(series, bar)
	}
	return series, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
