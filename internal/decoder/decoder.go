// Package decoder translates raw chain logs into typed domain events. It is
// pure and stateless: no I/O, no shared state.
package decoder

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// watchedABI covers the two event families the watcher subscribes to: ERC-20
// Transfer and the ENS registrar's NameRegistered.
const watchedABI = `[
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":false,"name":"value","type":"uint256"}
	],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"owner","type":"address"},
		{"indexed":true,"name":"node","type":"bytes32"},
		{"indexed":true,"name":"label","type":"bytes32"},
		{"indexed":false,"name":"name","type":"string"}
	],"name":"NameRegistered","type":"event"}
]`

// Decoder matches log topic hashes against the watched event signatures and
// unpacks matching payloads.
type Decoder struct {
	transferEvent   abi.Event
	registeredEvent abi.Event
}

// New builds a Decoder from the embedded ABI. It only fails if the ABI
// constant itself is malformed.
func New() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(watchedABI))
	if err != nil {
		return nil, fmt.Errorf("decoder: parse abi: %w", err)
	}
	return &Decoder{
		transferEvent:   parsed.Events["Transfer"],
		registeredEvent: parsed.Events["NameRegistered"],
	}, nil
}

// TransferTopic returns the topic hash of the ERC-20 Transfer event.
func (d *Decoder) TransferTopic() common.Hash { return d.transferEvent.ID }

// NameRegisteredTopic returns the topic hash of the NameRegistered event.
func (d *Decoder) NameRegisteredTopic() common.Hash { return d.registeredEvent.ID }

// Decode converts a raw log into a typed event. It returns
// domain.ErrUnknownTopic for logs outside the two watched signatures (the
// node may deliver logs beyond the filter's semantic scope); those are
// skipped silently. A recognized topic with a malformed payload yields a
// decode error: the caller logs it and drops the single log.
func (d *Decoder) Decode(raw domain.RawLog) (domain.Event, error) {
	if len(raw.Topics) == 0 {
		return nil, domain.ErrUnknownTopic
	}

	switch raw.Topics[0] {
	case d.transferEvent.ID:
		return d.decodeTransfer(raw)
	case d.registeredEvent.ID:
		return d.decodeRegistration(raw)
	default:
		return nil, domain.ErrUnknownTopic
	}
}

func (d *Decoder) decodeTransfer(raw domain.RawLog) (domain.Event, error) {
	// Transfer(from indexed, to indexed, value): exactly 2 indexed topics.
	if len(raw.Topics) != 3 {
		return nil, fmt.Errorf("decoder: transfer %s: expected 3 topics, got %d",
			raw.TxHash.Hex(), len(raw.Topics))
	}

	values, err := d.transferEvent.Inputs.NonIndexed().Unpack(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("decoder: transfer %s: unpack value: %w", raw.TxHash.Hex(), err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decoder: transfer %s: value is %T, want *big.Int", raw.TxHash.Hex(), values[0])
	}

	return domain.Transfer{
		LogKey:      raw.Key(),
		BlockNumber: raw.BlockNumber,
		Token:       raw.Address,
		From:        common.BytesToAddress(raw.Topics[1].Bytes()),
		To:          common.BytesToAddress(raw.Topics[2].Bytes()),
		RawValue:    value,
	}, nil
}

func (d *Decoder) decodeRegistration(raw domain.RawLog) (domain.Event, error) {
	// NameRegistered(owner indexed, node indexed, label indexed, name):
	// exactly 3 indexed topics.
	if len(raw.Topics) != 4 {
		return nil, fmt.Errorf("decoder: registration %s: expected 4 topics, got %d",
			raw.TxHash.Hex(), len(raw.Topics))
	}

	values, err := d.registeredEvent.Inputs.NonIndexed().Unpack(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("decoder: registration %s: unpack name: %w", raw.TxHash.Hex(), err)
	}
	name, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("decoder: registration %s: name is %T, want string", raw.TxHash.Hex(), values[0])
	}

	return domain.NameRegistered{
		LogKey:      raw.Key(),
		BlockNumber: raw.BlockNumber,
		Name:        name,
		Owner:       common.BytesToAddress(raw.Topics[1].Bytes()),
	}, nil
}
