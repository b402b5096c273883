package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JakeFAU/batch-screener/internal/screener"
)

type quoteResponse struct {
	QuoteResponse struct {
		Result []quote   `json:"result"`
		Error  *apiError `json:"error"`
	} `json:"quoteResponse"`
}

type quote struct {
	Symbol           string   `json:"symbol"`
	ShortName        string   `json:"shortName"`
	MarketCap        *float64 `json:"marketCap"`
	TrailingPE       *float64 `json:"trailingPE"`
	ForwardPE        *float64 `json:"forwardPE"`
	EPSTrailing      *float64 `json:"epsTrailingTwelveMonths"`
	EPSForward       *float64 `json:"epsForward"`
	BookValue        *float64 `json:"bookValue"`
	FiftyTwoWeekHigh *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  *float64 `json:"fiftyTwoWeekLow"`
}

// Fundamentals is the enrichment payload attached to qualifying results.
type Fundamentals struct {
	Name             string   `json:"name,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	TrailingPE       *float64 `json:"trailing_pe,omitempty"`
	ForwardPE        *float64 `json:"forward_pe,omitempty"`
	EPSTrailing      *float64 `json:"eps_ttm,omitempty"`
	EPSForward       *float64 `json:"eps_forward,omitempty"`
	BookValue        *float64 `json:"book_value,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
}

// Enrich returns the quote fundamentals of ticker as JSON.
func (c *Client) Enrich(ctx context.Context, ticker screener.WorkItem) (json.RawMessage, error) {
	query := url.Values{}
	query.Set("symbols", string(ticker))
	body, err := c.get(ctx, "v7/finance/quote", query)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", ticker, err)
	}
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote: %w", err)
	}
	if e := resp.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("quote error %s: %s", e.Code, e.Description)
	}
	for _, q := range resp.QuoteResponse.Result {
		if q.Symbol != "" && q.Symbol != string(ticker) {
			continue
		}
		out, err := json.Marshal(Fundamentals{
			Name:             q.ShortName,
			MarketCap:        q.MarketCap,
			TrailingPE:       q.TrailingPE,
			ForwardPE:        q.ForwardPE,
			EPSTrailing:      q.EPSTrailing,
			EPSForward:       q.EPSForward,
			BookValue:        q.BookValue,
			FiftyTwoWeekHigh: q.FiftyTwoWeekHigh,
			FiftyTwoWeekLow:  q.FiftyTwoWeekLow,
		})
		if err != nil {
			return nil, fmt.Errorf("encode fundamentals: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("no quote for %s", ticker)
}
