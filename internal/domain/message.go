package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

// Message type discriminators used on the outbound WebSocket feed.
const (
	MessageTypeRegistration = "NAME_REGISTRATION"
	MessageTypeTransfer     = "TOKEN_TRANSFER"
	MessageTypeStats        = "STATS"
)

// RegistrationMessage is the wire shape for a name-registration event.
type RegistrationMessage struct {
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	Name            string    `json:"name"`
	Owner           string    `json:"owner"`
}

// TokenInfo describes the token side of a transfer message. Price is null
// when pricing was unavailable.
type TokenInfo struct {
	Address  string   `json:"address"`
	Symbol   string   `json:"symbol"`
	Decimals uint8    `json:"decimals"`
	Price    *float64 `json:"price"`
}

// TransferMessage is the wire shape for an enriched token transfer.
type TransferMessage struct {
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	Token           TokenInfo `json:"token"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Value           string    `json:"value"`
	USDValue        *float64  `json:"usdValue"`
}

// NameTotal is one per-name cumulative entry. It marshals as a two-element
// [name, total] tuple to match the feed contract.
type NameTotal struct {
	Name  string
	Total float64
}

func (n NameTotal) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{n.Name, n.Total})
}

func (n *NameTotal) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &n.Name); err != nil {
		return err
	}
	return json.Unmarshal(tuple[1], &n.Total)
}

// StatsMessage is the wire shape for an aggregate-stats snapshot.
type StatsMessage struct {
	Type                  string      `json:"type"`
	TotalValueTransferred float64     `json:"totalValueTransferred"`
	PerNameTotals         []NameTotal `json:"perNameTotals"`
	LastUpdate            time.Time   `json:"lastUpdate"`
}

// NewRegistrationMessage builds the wire message for a registration event.
func NewRegistrationMessage(ev NameRegistered, ts time.Time) RegistrationMessage {
	return RegistrationMessage{
		Type:            MessageTypeRegistration,
		Timestamp:       ts,
		TransactionHash: ev.LogKey.TxHash.Hex(),
		BlockNumber:     ev.BlockNumber,
		Name:            ev.Name,
		Owner:           ev.Owner.Hex(),
	}
}

// NewTransferMessage builds the wire message for an enriched transfer. Value
// carries the scaled amount with two fractional digits.
func NewTransferMessage(ev EnrichedTransfer, ts time.Time) TransferMessage {
	return TransferMessage{
		Type:            MessageTypeTransfer,
		Timestamp:       ts,
		TransactionHash: ev.LogKey.TxHash.Hex(),
		BlockNumber:     ev.BlockNumber,
		Token: TokenInfo{
			Address:  ev.Token.Hex(),
			Symbol:   ev.Symbol,
			Decimals: ev.Decimals,
			Price:    ev.Price,
		},
		From:     ev.From.Hex(),
		To:       ev.To.Hex(),
		Value:    strconv.FormatFloat(ev.DecimalValue, 'f', 2, 64),
		USDValue: ev.USDValue,
	}
}
