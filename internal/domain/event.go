// Package domain defines the core event model shared by the subscriber,
// decoder, pipeline, broadcaster, and stats components.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LogKey uniquely identifies a log on chain. Deduplication is always keyed on
// this pair, never on event content.
type LogKey struct {
	TxHash   common.Hash
	LogIndex uint
}

// RawLog is a single log record as delivered by the chain node. Immutable once
// observed.
type RawLog struct {
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
}

// Key returns the identity key of the log.
func (l RawLog) Key() LogKey {
	return LogKey{TxHash: l.TxHash, LogIndex: l.LogIndex}
}

// Event is an item in the ordered event sequence produced by the pipeline and
// consumed by the broadcaster and the stats aggregator. Every event carries
// the identity key and block number of its source log.
type Event interface {
	Key() LogKey
	Block() uint64
}

// NameRegistered is a decoded ENS name-registration event.
type NameRegistered struct {
	LogKey      LogKey
	BlockNumber uint64
	Name        string
	Owner       common.Address
}

func (e NameRegistered) Key() LogKey   { return e.LogKey }
func (e NameRegistered) Block() uint64 { return e.BlockNumber }

// Transfer is a decoded ERC-20 transfer event before enrichment.
type Transfer struct {
	LogKey      LogKey
	BlockNumber uint64
	Token       common.Address
	From        common.Address
	To          common.Address
	RawValue    *big.Int
}

func (e Transfer) Key() LogKey   { return e.LogKey }
func (e Transfer) Block() uint64 { return e.BlockNumber }

// EnrichedTransfer is a Transfer augmented with token metadata and pricing.
// Price and USDValue are nil when the pricing provider was unavailable;
// enrichment is best-effort and never a gate on delivery.
type EnrichedTransfer struct {
	Transfer

	Symbol   string
	Decimals uint8
	// DecimalValue is RawValue scaled down by Decimals.
	DecimalValue float64
	Price        *float64
	USDValue     *float64
}
