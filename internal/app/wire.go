package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/chain"
	"github.com/alanyoungcy/enswatch/internal/config"
	"github.com/alanyoungcy/enswatch/internal/decoder"
	"github.com/alanyoungcy/enswatch/internal/enrich"
	"github.com/alanyoungcy/enswatch/internal/pipeline"
	"github.com/alanyoungcy/enswatch/internal/platform/coinmarketcap"
	"github.com/alanyoungcy/enswatch/internal/platform/ethereum"
	"github.com/alanyoungcy/enswatch/internal/server/ws"
	"github.com/alanyoungcy/enswatch/internal/stats"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Dependencies bundles everything the running application needs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Eth        *ethereum.Client
	CMC        *coinmarketcap.Client
	Subscriber *chain.Subscriber
	Pipeline   *pipeline.Pipeline
	Stats      *stats.Aggregator
	Hub        *ws.Hub
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources. A failed chain dial is fatal:
// without a node connection the process has nothing to do.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	eth, err := ethereum.Dial(ctx, cfg.Node.WsURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain dial: %w", err)
	}
	closers = append(closers, eth.Close)

	dec, err := decoder.New()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: decoder: %w", err)
	}

	cmc := coinmarketcap.NewClient(cfg.Pricing.BaseURL, cfg.Pricing.APIKey)

	tokens := enrich.NewTokenCache(eth, logger)
	prices := enrich.NewPriceCache(cmc, cfg.Pricing.TTL.Duration, cfg.Pricing.Grace.Duration, logger)

	sub := chain.NewSubscriber(eth, chain.Config{
		Registrar:          common.HexToAddress(cfg.Node.RegistrarAddress),
		NameTopic:          dec.NameRegisteredTopic(),
		TransferTopic:      dec.TransferTopic(),
		OverlapBlocks:      cfg.Node.OverlapBlocks,
		MaxLookbackBlocks:  cfg.Node.MaxLookbackBlocks,
		Buffer:             cfg.Node.LogBuffer,
		MaxConnectAttempts: cfg.Node.MaxConnectAttempts,
		Backoff:            chain.DefaultBackoff,
	}, logger)

	pipe := pipeline.New(dec, tokens, prices, pipeline.Config{
		ValueThreshold: cfg.Pipeline.ValueThreshold,
		Concurrency:    cfg.Pipeline.Concurrency,
		DedupCapacity:  cfg.Pipeline.DedupCapacity,
		OutBuffer:      cfg.Node.LogBuffer,
	}, logger)

	agg := stats.NewAggregator()
	hub := ws.NewHub(agg, cfg.Server.SubscriberQueue, logger)

	return &Dependencies{
		Eth:        eth,
		CMC:        cmc,
		Subscriber: sub,
		Pipeline:   pipe,
		Stats:      agg,
		Hub:        hub,
	}, cleanup, nil
}
