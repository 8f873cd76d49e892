package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/enswatch/internal/domain"
	"github.com/alanyoungcy/enswatch/internal/metrics"
)

// LogStreamer is the slice of the chain client the subscriber needs.
type LogStreamer interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error)
	SubscribeFilterLogs(ctx context.Context, q goethereum.FilterQuery, ch chan<- types.Log) (goethereum.Subscription, error)
}

// Config tunes the subscriber.
type Config struct {
	// Registrar is the ENS registrar contract watched for NameRegistered.
	Registrar common.Address
	// NameTopic and TransferTopic are the two watched event signatures.
	NameTopic     common.Hash
	TransferTopic common.Hash

	// OverlapBlocks is how far before the last delivered block the catch-up
	// query after a reconnect starts; the duplicates it produces are absorbed
	// by the downstream dedup window.
	OverlapBlocks uint64
	// MaxLookbackBlocks bounds how far behind the head any catch-up query may
	// start. It is also the startup backfill depth for registrations.
	MaxLookbackBlocks uint64

	// Buffer is the capacity of the outbound raw-log channel.
	Buffer int
	// MaxConnectAttempts bounds initial subscribe retries before the failure
	// becomes fatal. Later resubscribes retry indefinitely.
	MaxConnectAttempts int

	Backoff Backoff
}

// Subscriber owns one logical subscription per event family (registrations
// and transfers) and merges both into a single raw-log stream. It never
// blocks on downstream processing beyond the bounded output channel.
type Subscriber struct {
	client LogStreamer
	cfg    Config
	logger *slog.Logger
	out    chan domain.RawLog
}

// NewSubscriber creates a Subscriber. Run must be called to start delivery.
func NewSubscriber(client LogStreamer, cfg Config, logger *slog.Logger) *Subscriber {
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	if cfg.MaxConnectAttempts < 1 {
		cfg.MaxConnectAttempts = 1
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff
	}
	return &Subscriber{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "subscriber")),
		out:    make(chan domain.RawLog, cfg.Buffer),
	}
}

// Logs is the merged raw-log stream. It is closed when Run returns.
func (s *Subscriber) Logs() <-chan domain.RawLog {
	return s.out
}

// Run drives both subscriptions until the context is cancelled or one family
// fails fatally (initial subscribe exhausted its attempts). Within one family
// delivery follows the node's block/log-index order; across families no
// relative order is guaranteed. Registrations backfill MaxLookbackBlocks at
// startup; transfers start at the live head.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.out)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.runFamily(ctx, "registrations", goethereum.FilterQuery{
			Addresses: []common.Address{s.cfg.Registrar},
			Topics:    [][]common.Hash{{s.cfg.NameTopic}},
		}, true)
	})
	g.Go(func() error {
		return s.runFamily(ctx, "transfers", goethereum.FilterQuery{
			Topics: [][]common.Hash{{s.cfg.TransferTopic}},
		}, false)
	})

	return g.Wait()
}

// runFamily opens and re-opens one family's subscription. The consumer never
// has to restart: blocks mined during an outage are recovered by an explicit
// catch-up query before the live stream is drained.
func (s *Subscriber) runFamily(ctx context.Context, family string, base goethereum.FilterQuery, startupLookback bool) error {
	logger := s.logger.With(slog.String("family", family))

	var lastDelivered uint64
	established := false
	attempt := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logs := make(chan types.Log, s.cfg.Buffer)
		sub, err := s.client.SubscribeFilterLogs(ctx, base, logs)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			if !established && attempt >= s.cfg.MaxConnectAttempts {
				return fmt.Errorf("chain: %s: %w after %d attempts: %v",
					family, domain.ErrSubscribeFailed, attempt, err)
			}
			logger.Warn("subscribe failed, backing off",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			if werr := s.cfg.Backoff.Wait(ctx, attempt-1); werr != nil {
				return werr
			}
			continue
		}

		established = true
		attempt = 0
		logger.Info("subscription established")

		// The node only pushes logs from blocks arriving after the subscribe.
		// Subscribing first, then querying the gap, means live logs queue in
		// the buffered channel while the catch-up range drains in order.
		if err := s.catchUp(ctx, logger, family, base, startupLookback, &lastDelivered); err != nil {
			sub.Unsubscribe()
			return err
		}

		err = s.drain(ctx, family, sub, logs, &lastDelivered)
		sub.Unsubscribe()
		if err != nil {
			return err
		}
		logger.Warn("subscription dropped, resubscribing",
			slog.Uint64("last_block", lastDelivered),
		)
	}
}

// catchUp fetches and delivers the historic range the live subscription will
// not replay: [resume, head], where resume reaches back past lastDelivered by
// the overlap window (or, at startup for lookback families, MaxLookbackBlocks
// behind the head). A failed head read or range query is tolerated; the next
// resubscribe covers the same range again through the overlap.
func (s *Subscriber) catchUp(ctx context.Context, logger *slog.Logger, family string, base goethereum.FilterQuery, startupLookback bool, lastDelivered *uint64) error {
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("head read failed, skipping catch-up",
			slog.String("error", err.Error()),
		)
		return nil
	}

	from, ok := computeResumeBlock(*lastDelivered, head, s.cfg.OverlapBlocks, s.cfg.MaxLookbackBlocks, startupLookback)
	if !ok {
		return nil
	}

	q := base
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(head)
	past, err := s.client.FilterLogs(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("catch-up query failed",
			slog.Uint64("from_block", from),
			slog.Uint64("to_block", head),
			slog.String("error", err.Error()),
		)
		return nil
	}

	logger.Info("catching up",
		slog.Uint64("from_block", from),
		slog.Uint64("to_block", head),
		slog.Int("logs", len(past)),
	)
	for _, lg := range past {
		if err := s.deliver(ctx, family, lg, lastDelivered); err != nil {
			return err
		}
	}
	return nil
}

// drain forwards live logs until the subscription errors out (returns nil
// error: transient, caller resubscribes) or the context ends.
func (s *Subscriber) drain(ctx context.Context, family string, sub goethereum.Subscription, logs <-chan types.Log, lastDelivered *uint64) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err != nil {
				s.logger.Warn("subscription error", slog.String("error", err.Error()))
			}
			return nil
		case lg := <-logs:
			if err := s.deliver(ctx, family, lg, lastDelivered); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) deliver(ctx context.Context, family string, lg types.Log, lastDelivered *uint64) error {
	if lg.Removed {
		// Reorged-out log; the canonical replacement arrives separately.
		return nil
	}
	raw := domain.RawLog{
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.Index,
		Address:     lg.Address,
		Topics:      lg.Topics,
		Data:        lg.Data,
	}
	select {
	case s.out <- raw:
		if lg.BlockNumber > *lastDelivered {
			*lastDelivered = lg.BlockNumber
		}
		metrics.LogsReceived.WithLabelValues(family).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// computeResumeBlock picks where a catch-up query starts:
// max(lastDelivered-overlap, head-maxLookback). The overlap re-fetches blocks
// already seen so boundary logs survive an imprecise cut; the duplicates are
// absorbed downstream. With no delivery history there is nothing to resume
// unless the family backfills maxLookback blocks at startup. The second
// return is false when no catch-up is needed.
func computeResumeBlock(lastDelivered, head, overlap, maxLookback uint64, startupLookback bool) (uint64, bool) {
	var floor uint64
	if maxLookback > 0 && head > maxLookback {
		floor = head - maxLookback
	}

	if lastDelivered == 0 {
		if !startupLookback || maxLookback == 0 {
			return 0, false
		}
		return floor, true
	}

	start := lastDelivered
	if start > overlap {
		start -= overlap
	} else {
		start = 0
	}
	if start < floor {
		start = floor
	}
	if start > head {
		return 0, false
	}
	return start, true
}
