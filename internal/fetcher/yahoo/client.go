// Package yahoo fetches daily price history and quote fundamentals from the
// Yahoo Finance JSON endpoints using a colly collector.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public Yahoo Finance API host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; batch-screener/1.0)"
	defaultTimeout   = 15 * time.Second
)

var errNotFound = errors.New("symbol not found")

// Config controls the HTTP client.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Client implements screener.Fetcher and screener.Enricher.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client. Zero config values select the defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	return &Client{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// get performs one GET and returns the body of a 200 response. A 404 maps to
// errNotFound.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("yahoo request canceled: %w", err)
	}
	target, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	target = target.JoinPath(endpoint)
	target.RawQuery = query.Encode()

	var (
		status  int
		body    []byte
		respErr error
	)
	collector := c.baseCollector.Clone()
	collector.UserAgent = c.cfg.UserAgent
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		respErr = err
	})

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target.String())
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("yahoo request canceled: %w", ctx.Err())
	case err := <-done:
		c.logger.Debug("yahoo request",
			zap.String("url", target.String()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		)
		if status == http.StatusNotFound {
			return nil, errNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("yahoo visit failed: %w", err)
		}
		if respErr != nil {
			return nil, fmt.Errorf("yahoo response failed: %w", respErr)
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("yahoo unexpected status %d", status)
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
}
