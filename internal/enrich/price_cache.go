// Package enrich provides the two coalescing caches that stand between the
// event pipeline and its slow external collaborators: the pricing provider
// and the on-chain token metadata reads.
package enrich

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// priceEntry is a cached quote. Entries older than the TTL are stale; stale
// entries remain usable as last-known-good values for the grace window when
// the upstream fetch fails.
type priceEntry struct {
	price     float64
	fetchedAt time.Time
}

// priceFetch is one in-flight upstream request. Concurrent callers for the
// same symbol attach to it instead of issuing their own request.
type priceFetch struct {
	done  chan struct{}
	price float64
	ok    bool
}

// PriceCache is a TTL cache in front of the pricing provider. A miss issues
// exactly one upstream request per distinct symbol even under concurrent
// callers. Unavailability is not an error for callers: it degrades the
// enriched fields to null without failing the event.
type PriceCache struct {
	source domain.PriceSource
	ttl    time.Duration
	grace  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[string]priceEntry
	inflight map[string]*priceFetch

	now func() time.Time // overridable in tests
}

// NewPriceCache creates a PriceCache over the given source. ttl bounds
// freshness; grace extends a stale entry's usability past expiry when the
// upstream fetch fails.
func NewPriceCache(source domain.PriceSource, ttl, grace time.Duration, logger *slog.Logger) *PriceCache {
	return &PriceCache{
		source:   source,
		ttl:      ttl,
		grace:    grace,
		logger:   logger.With(slog.String("component", "price_cache")),
		entries:  make(map[string]priceEntry),
		inflight: make(map[string]*priceFetch),
		now:      time.Now,
	}
}

// Price returns the latest known price for symbol and whether one is
// available. A fresh cache hit returns immediately; a miss triggers (or
// attaches to) a single upstream fetch.
func (c *PriceCache) Price(ctx context.Context, symbol string) (float64, bool) {
	c.mu.Lock()

	if e, ok := c.entries[symbol]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return e.price, true
	}

	if f, ok := c.inflight[symbol]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.price, f.ok
		case <-ctx.Done():
			return 0, false
		}
	}

	f := &priceFetch{done: make(chan struct{})}
	c.inflight[symbol] = f
	c.mu.Unlock()

	price, err := c.source.LatestPrice(ctx, symbol)

	c.mu.Lock()
	if err == nil {
		c.entries[symbol] = priceEntry{price: price, fetchedAt: c.now()}
		f.price, f.ok = price, true
	} else {
		f.price, f.ok = c.lastKnownGoodLocked(symbol)
		c.logger.Warn("price fetch failed",
			slog.String("symbol", symbol),
			slog.Bool("served_stale", f.ok),
			slog.String("error", err.Error()),
		)
	}
	delete(c.inflight, symbol)
	c.mu.Unlock()

	close(f.done)
	return f.price, f.ok
}

// lastKnownGoodLocked returns the expired entry for symbol if it is still
// within the grace window. Caller must hold c.mu.
func (c *PriceCache) lastKnownGoodLocked(symbol string) (float64, bool) {
	e, ok := c.entries[symbol]
	if !ok {
		return 0, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl+c.grace {
		return 0, false
	}
	return e.price, true
}
