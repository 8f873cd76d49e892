package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

type fakeMetadataSource struct {
	calls atomic.Int64
	meta  domain.TokenMetadata
	err   error
	gate  chan struct{}
}

func (f *fakeMetadataSource) TokenMetadata(ctx context.Context, token common.Address) (domain.TokenMetadata, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return domain.TokenMetadata{}, f.err
	}
	return f.meta, nil
}

var testToken = common.HexToAddress("0x5555555555555555555555555555555555555555")

func TestTokenCacheCachesForever(t *testing.T) {
	src := &fakeMetadataSource{meta: domain.TokenMetadata{Symbol: "USDC", Decimals: 6}}
	c := NewTokenCache(src, testLogger())

	for i := 0; i < 3; i++ {
		meta := c.Metadata(context.Background(), testToken)
		if meta.Symbol != "USDC" || meta.Decimals != 6 {
			t.Fatalf("Metadata() = %+v, want USDC/6", meta)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestTokenCacheCoalescesFirstSighting(t *testing.T) {
	src := &fakeMetadataSource{
		meta: domain.TokenMetadata{Symbol: "WETH", Decimals: 18},
		gate: make(chan struct{}),
	}
	c := NewTokenCache(src, testLogger())

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if meta := c.Metadata(context.Background(), testToken); meta.Symbol != "WETH" {
				t.Errorf("Metadata() = %+v, want WETH", meta)
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
}

func TestTokenCacheFallbackNotCached(t *testing.T) {
	src := &fakeMetadataSource{err: errors.New("execution reverted")}
	c := NewTokenCache(src, testLogger())

	meta := c.Metadata(context.Background(), testToken)
	if meta.Symbol != FallbackSymbol || meta.Decimals != FallbackDecimals {
		t.Fatalf("Metadata() on failure = %+v, want %s/%d", meta, FallbackSymbol, FallbackDecimals)
	}

	// The failure must not be cached: a later sighting retries and succeeds.
	src.err = nil
	src.meta = domain.TokenMetadata{Symbol: "SHIB", Decimals: 18}

	meta = c.Metadata(context.Background(), testToken)
	if meta.Symbol != "SHIB" {
		t.Errorf("Metadata() after recovery = %+v, want SHIB", meta)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}
