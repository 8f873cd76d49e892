// Package pipeline turns the raw log stream into the ordered, deduplicated,
// threshold-filtered event sequence the broadcaster and stats consume.
//
// Stages: serial decode + admission (assigns sequence numbers), a bounded
// pool of enrichment workers, and a serial release stage that restores
// admission order and performs the authoritative duplicate check.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/enswatch/internal/decoder"
	"github.com/alanyoungcy/enswatch/internal/domain"
	"github.com/alanyoungcy/enswatch/internal/enrich"
	"github.com/alanyoungcy/enswatch/internal/metrics"
)

// Config tunes the pipeline.
type Config struct {
	// ValueThreshold is the minimum scaled transfer value that passes the
	// filter. Transfers strictly below it are discarded.
	ValueThreshold float64
	// Concurrency bounds the enrichment worker pool.
	Concurrency int
	// DedupCapacity bounds the duplicate-suppression window.
	DedupCapacity int
	// OutBuffer is the capacity of the ordered output channel.
	OutBuffer int
}

// Pipeline consumes raw logs and produces ordered events. Construct with New,
// then call Run once; Events delivers the output until Run returns.
type Pipeline struct {
	dec    *decoder.Decoder
	tokens *enrich.TokenCache
	prices *enrich.PriceCache
	cfg    Config
	logger *slog.Logger
	dedup  *DedupWindow
	out    chan domain.Event
}

// New creates a Pipeline.
func New(dec *decoder.Decoder, tokens *enrich.TokenCache, prices *enrich.PriceCache, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.OutBuffer < 1 {
		cfg.OutBuffer = 1
	}
	return &Pipeline{
		dec:    dec,
		tokens: tokens,
		prices: prices,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "pipeline")),
		dedup:  NewDedupWindow(cfg.DedupCapacity),
		out:    make(chan domain.Event, cfg.OutBuffer),
	}
}

// Events is the ordered event stream. It is closed when Run returns.
func (p *Pipeline) Events() <-chan domain.Event {
	return p.out
}

// admitted is one event that passed decode and the admission duplicate check,
// tagged with its position in the admission order.
type admitted struct {
	seq   uint64
	event domain.Event
}

// Run processes logs until the input channel closes or the context ends.
// In-flight events at shutdown are dropped.
func (p *Pipeline) Run(ctx context.Context, logs <-chan domain.RawLog) error {
	defer close(p.out)

	g, ctx := errgroup.WithContext(ctx)

	jobs := make(chan admitted, p.cfg.Concurrency)
	results := make(chan completion, p.cfg.Concurrency)

	g.Go(func() error {
		defer close(jobs)
		return p.admit(ctx, logs, jobs)
	})

	workers, wctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Concurrency; i++ {
		workers.Go(func() error {
			return p.work(wctx, jobs, results)
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	g.Go(func() error {
		return p.release(ctx, results)
	})

	return g.Wait()
}

// admit decodes each raw log, drops unwatched and malformed logs, applies the
// cheap admission-side duplicate check, and assigns sequence numbers. Runs
// serially so sequence numbers follow arrival order.
func (p *Pipeline) admit(ctx context.Context, logs <-chan domain.RawLog, jobs chan<- admitted) error {
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-logs:
			if !ok {
				return nil
			}

			ev, err := p.dec.Decode(raw)
			if err != nil {
				if errors.Is(err, domain.ErrUnknownTopic) {
					continue
				}
				metrics.DecodeFailures.Inc()
				p.logger.Warn("log decode failed",
					slog.String("tx", raw.TxHash.Hex()),
					slog.Uint64("block", raw.BlockNumber),
					slog.String("error", err.Error()),
				)
				continue
			}

			// Cheap early drop; the authoritative check happens at release.
			if p.dedup.Contains(ev.Key()) {
				metrics.EventsDeduplicated.Inc()
				continue
			}

			seq++
			select {
			case jobs <- admitted{seq: seq, event: ev}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// work enriches transfers and applies the value threshold. Registrations pass
// through untouched; they still occupy a sequence slot so release order holds
// across event types.
func (p *Pipeline) work(ctx context.Context, jobs <-chan admitted, results chan<- completion) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jobs:
			if !ok {
				return nil
			}

			c := completion{seq: job.seq}
			switch ev := job.event.(type) {
			case domain.Transfer:
				if enriched, keep := p.enrich(ctx, ev); keep {
					c.event = enriched
				}
			default:
				c.event = job.event
			}

			select {
			case results <- c:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// enrich resolves token metadata, applies the value threshold, and attaches
// best-effort pricing. keep is false when the transfer falls below the
// threshold.
func (p *Pipeline) enrich(ctx context.Context, ev domain.Transfer) (domain.EnrichedTransfer, bool) {
	meta := p.tokens.Metadata(ctx, ev.Token)
	value := scaleValue(ev.RawValue, meta.Decimals)

	if value < p.cfg.ValueThreshold {
		metrics.EventsBelowThreshold.Inc()
		return domain.EnrichedTransfer{}, false
	}

	enriched := domain.EnrichedTransfer{
		Transfer:     ev,
		Symbol:       meta.Symbol,
		Decimals:     meta.Decimals,
		DecimalValue: value,
	}
	if price, ok := p.prices.Price(ctx, meta.Symbol); ok {
		usd := value * price
		enriched.Price = &price
		enriched.USDValue = &usd
	}
	return enriched, true
}

// release restores admission order and emits events downstream. The duplicate
// check-and-record here is the authoritative one: it runs serially, so a key
// is recorded at most once no matter how duplicates interleaved upstream.
func (p *Pipeline) release(ctx context.Context, results <-chan completion) error {
	buf := newReorderBuffer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-results:
			if !ok {
				return nil
			}
			for _, ev := range buf.add(c) {
				if !p.dedup.Record(ev.Key()) {
					metrics.EventsDeduplicated.Inc()
					continue
				}
				select {
				case p.out <- ev:
					metrics.EventsEmitted.WithLabelValues(messageType(ev)).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func messageType(ev domain.Event) string {
	switch ev.(type) {
	case domain.NameRegistered:
		return domain.MessageTypeRegistration
	default:
		return domain.MessageTypeTransfer
	}
}

// scaleValue converts a raw integer token amount to a float scaled down by
// the token's decimals. Precision loss past float64 is acceptable for display
// and threshold purposes.
func scaleValue(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	value, _ := new(big.Float).Quo(
		new(big.Float).SetInt(raw),
		new(big.Float).SetInt(divisor),
	).Float64()
	return value
}
