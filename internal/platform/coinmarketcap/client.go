// Package coinmarketcap is a client for the CoinMarketCap Pro API: latest
// quotes by symbol for transfer enrichment, plus the market-overview queries
// forwarded unchanged by the REST layer.
package coinmarketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// Client talks to the CoinMarketCap Pro API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a CoinMarketCap client.
//
// baseURL is the Pro API root, e.g. "https://pro-api.coinmarketcap.com/v1".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// quoteResponse is the envelope of /cryptocurrency/quotes/latest.
type quoteResponse struct {
	Data map[string]struct {
		Quote map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// LatestPrice returns the latest USD price for a symbol. It returns
// domain.ErrPriceUnavailable when the provider has no quote for the symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{"symbol": {symbol}}
	body, err := c.get(ctx, "/cryptocurrency/quotes/latest", params)
	if err != nil {
		return 0, fmt.Errorf("coinmarketcap: latest price %s: %w", symbol, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("coinmarketcap: decode quote %s: %w", symbol, err)
	}
	if resp.Status.ErrorCode != 0 {
		return 0, fmt.Errorf("coinmarketcap: quote %s: %s", symbol, resp.Status.ErrorMessage)
	}

	entry, ok := resp.Data[symbol]
	if !ok {
		return 0, fmt.Errorf("coinmarketcap: quote %s: %w", symbol, domain.ErrPriceUnavailable)
	}
	usd, ok := entry.Quote["USD"]
	if !ok {
		return 0, fmt.Errorf("coinmarketcap: quote %s: no USD quote: %w", symbol, domain.ErrPriceUnavailable)
	}
	return usd.Price, nil
}

// GlobalMetrics forwards the global market metrics query and returns the
// provider response body unchanged.
func (c *Client) GlobalMetrics(ctx context.Context) (json.RawMessage, error) {
	body, err := c.get(ctx, "/global-metrics/quotes/latest", nil)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: global metrics: %w", err)
	}
	return body, nil
}

// TrendingTokens forwards the top-10-by-24h-volume listing query and returns
// the provider response body unchanged.
func (c *Client) TrendingTokens(ctx context.Context) (json.RawMessage, error) {
	params := url.Values{
		"limit":   {"10"},
		"sort":    {"volume_24h"},
		"convert": {"USD"},
	}
	body, err := c.get(ctx, "/cryptocurrency/listings/latest", params)
	if err != nil {
		return nil, fmt.Errorf("coinmarketcap: trending tokens: %w", err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-CMC_PRO_API_KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
