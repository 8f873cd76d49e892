package coinmarketcap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-key")
}

func TestLatestPrice(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cryptocurrency/quotes/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-CMC_PRO_API_KEY"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "WETH" {
			t.Errorf("symbol = %q", got)
		}
		w.Write([]byte(`{"data":{"WETH":{"quote":{"USD":{"price":3150.42}}}},"status":{"error_code":0}}`))
	})

	price, err := c.LatestPrice(context.Background(), "WETH")
	if err != nil {
		t.Fatalf("LatestPrice() error: %v", err)
	}
	if price != 3150.42 {
		t.Errorf("price = %v, want 3150.42", price)
	}
}

func TestLatestPriceUnknownSymbol(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"status":{"error_code":0}}`))
	})

	_, err := c.LatestPrice(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrPriceUnavailable) {
		t.Errorf("error = %v, want ErrPriceUnavailable", err)
	}
}

func TestLatestPriceProviderError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{},"status":{"error_code":1008,"error_message":"rate limit exceeded"}}`))
	})

	if _, err := c.LatestPrice(context.Background(), "WETH"); err == nil {
		t.Error("LatestPrice() = nil error on provider error")
	}
}

func TestLatestPriceHTTPError(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	if _, err := c.LatestPrice(context.Background(), "WETH"); err == nil {
		t.Error("LatestPrice() = nil error on 401")
	}
}

func TestGlobalMetricsPassthrough(t *testing.T) {
	const body = `{"data":{"total_market_cap":123},"status":{"error_code":0}}`
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/global-metrics/quotes/latest" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(body))
	})

	raw, err := c.GlobalMetrics(context.Background())
	if err != nil {
		t.Fatalf("GlobalMetrics() error: %v", err)
	}
	if string(raw) != body {
		t.Errorf("body altered: %s", raw)
	}
}

func TestTrendingTokensQuery(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "10" || q.Get("sort") != "volume_24h" || q.Get("convert") != "USD" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(`{"data":[],"status":{"error_code":0}}`))
	})

	if _, err := c.TrendingTokens(context.Background()); err != nil {
		t.Fatalf("TrendingTokens() error: %v", err)
	}
}
