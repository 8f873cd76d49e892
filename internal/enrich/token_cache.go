package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// Fallback metadata used when a token's symbol/decimals cannot be read.
// Uncertain decimals are preferable to dropping the transfer outright.
const (
	FallbackSymbol   = "Unknown"
	FallbackDecimals = 18
)

// metaFetch is one in-flight metadata read; concurrent first sightings of the
// same token attach to it.
type metaFetch struct {
	done chan struct{}
	meta domain.TokenMetadata
}

// TokenCache caches per-contract symbol/decimals, populated lazily on first
// sighting and kept indefinitely (token metadata does not change). A failed
// read yields the fallback without caching it, so the next sighting retries.
type TokenCache struct {
	source domain.MetadataSource
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[common.Address]domain.TokenMetadata
	inflight map[common.Address]*metaFetch
}

// NewTokenCache creates a TokenCache over the given on-chain source.
func NewTokenCache(source domain.MetadataSource, logger *slog.Logger) *TokenCache {
	return &TokenCache{
		source:   source,
		logger:   logger.With(slog.String("component", "token_cache")),
		entries:  make(map[common.Address]domain.TokenMetadata),
		inflight: make(map[common.Address]*metaFetch),
	}
}

// Metadata returns the symbol and decimals for a token contract. It never
// fails: an unreadable token yields Unknown/18.
func (c *TokenCache) Metadata(ctx context.Context, token common.Address) domain.TokenMetadata {
	c.mu.Lock()

	if meta, ok := c.entries[token]; ok {
		c.mu.Unlock()
		return meta
	}

	if f, ok := c.inflight[token]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.meta
		case <-ctx.Done():
			return domain.TokenMetadata{Symbol: FallbackSymbol, Decimals: FallbackDecimals}
		}
	}

	f := &metaFetch{done: make(chan struct{})}
	c.inflight[token] = f
	c.mu.Unlock()

	meta, err := c.source.TokenMetadata(ctx, token)

	c.mu.Lock()
	if err == nil {
		c.entries[token] = meta
		f.meta = meta
	} else {
		f.meta = domain.TokenMetadata{Symbol: FallbackSymbol, Decimals: FallbackDecimals}
		c.logger.Warn("token metadata fetch failed, using fallback",
			slog.String("token", token.Hex()),
			slog.String("error", err.Error()),
		)
	}
	delete(c.inflight, token)
	c.mu.Unlock()

	close(f.done)
	return f.meta
}
