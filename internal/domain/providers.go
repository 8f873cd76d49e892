package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// TokenMetadata is the immutable per-contract metadata used to scale and
// label transfer amounts.
type TokenMetadata struct {
	Symbol   string
	Decimals uint8
}

// PriceSource fetches the latest USD price for a token symbol from the
// pricing provider. Implementations are expected to be rate limited upstream;
// callers go through the coalescing price cache, never directly.
type PriceSource interface {
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// MetadataSource reads ERC-20 symbol and decimals for a contract address.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, token common.Address) (TokenMetadata, error)
}
