package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// MarketData defines the pricing-provider passthrough methods the market
// handler requires. Declared locally so the handler package does not depend
// on the concrete provider client.
type MarketData interface {
	GlobalMetrics(ctx context.Context) (json.RawMessage, error)
	TrendingTokens(ctx context.Context) (json.RawMessage, error)
}

// MarketHandler serves market-overview endpoints backed by the pricing
// provider. Responses are passed through unmodified.
type MarketHandler struct {
	market MarketData
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler over the given provider.
func NewMarketHandler(market MarketData, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		market: market,
		logger: logHandler(logger, "market"),
	}
}

// GetGlobalMetrics returns the provider's global market metrics.
// GET /api/market/global
func (h *MarketHandler) GetGlobalMetrics(w http.ResponseWriter, r *http.Request) {
	data, err := h.market.GlobalMetrics(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "global metrics fetch failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// GetTrending returns the provider's trending tokens by 24h volume.
// GET /api/market/trending
func (h *MarketHandler) GetTrending(w http.ResponseWriter, r *http.Request) {
	data, err := h.market.TrendingTokens(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "trending fetch failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, data)
}
