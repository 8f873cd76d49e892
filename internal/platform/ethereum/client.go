// Package ethereum wraps the go-ethereum client with the narrow surface the
// watcher needs: live log subscriptions, head queries, and ERC-20 metadata
// reads.
package ethereum

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// erc20StringABI reads symbol/decimals from standards-conforming tokens.
const erc20StringABI = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// erc20Bytes32ABI covers pre-standard tokens (e.g. MKR) whose symbol returns
// bytes32 instead of string.
const erc20Bytes32ABI = `[
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"bytes32"}],"type":"function"}
]`

const callTimeout = 10 * time.Second

// Client is a thin wrapper around ethclient.Client.
type Client struct {
	ec         *ethclient.Client
	stringABI  abi.ABI
	bytes32ABI abi.ABI
}

// Dial connects to the chain node over WebSocket. A failure here is a fatal
// startup condition (unreachable node), not a transient one.
func Dial(ctx context.Context, wsURL string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", wsURL, err)
	}

	stringABI, err := abi.JSON(strings.NewReader(erc20StringABI))
	if err != nil {
		return nil, fmt.Errorf("ethereum: parse erc20 abi: %w", err)
	}
	bytes32ABI, err := abi.JSON(strings.NewReader(erc20Bytes32ABI))
	if err != nil {
		return nil, fmt.Errorf("ethereum: parse erc20 bytes32 abi: %w", err)
	}

	return &Client{ec: ec, stringABI: stringABI, bytes32ABI: bytes32ABI}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.ec.Close()
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.ec.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("ethereum: block number: %w", err)
	}
	return n, nil
}

// FilterLogs runs a bounded historic log query. Live subscriptions only see
// logs from newly arriving blocks, so ranges missed while disconnected are
// recovered through this call.
func (c *Client) FilterLogs(ctx context.Context, q goethereum.FilterQuery) ([]types.Log, error) {
	logs, err := c.ec.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ethereum: filter logs: %w", err)
	}
	return logs, nil
}

// SubscribeFilterLogs opens a live log subscription for the given query.
func (c *Client) SubscribeFilterLogs(ctx context.Context, q goethereum.FilterQuery, ch chan<- types.Log) (goethereum.Subscription, error) {
	sub, err := c.ec.SubscribeFilterLogs(ctx, q, ch)
	if err != nil {
		return nil, fmt.Errorf("ethereum: subscribe logs: %w", err)
	}
	return sub, nil
}

// TokenMetadata reads symbol and decimals from the token contract. The symbol
// read falls back to the bytes32 variant for pre-standard tokens.
func (c *Client) TokenMetadata(ctx context.Context, token common.Address) (domain.TokenMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var meta domain.TokenMetadata

	values, err := c.call(ctx, token, c.stringABI, "decimals")
	if err != nil {
		return meta, fmt.Errorf("ethereum: token %s: %w", token.Hex(), err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("ethereum: token %s: decimals is %T, want uint8", token.Hex(), values[0])
	}
	meta.Decimals = decimals

	if values, err := c.call(ctx, token, c.stringABI, "symbol"); err == nil {
		if s, ok := values[0].(string); ok {
			meta.Symbol = s
		}
	} else if values, err := c.call(ctx, token, c.bytes32ABI, "symbol"); err == nil {
		if b, ok := values[0].([32]byte); ok {
			meta.Symbol = string(bytes.TrimRight(b[:], "\x00"))
		}
	}
	if meta.Symbol == "" {
		return meta, fmt.Errorf("ethereum: token %s: symbol unreadable", token.Hex())
	}

	return meta, nil
}

func (c *Client) call(ctx context.Context, to common.Address, parsed abi.ABI, method string) ([]any, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.ec.CallContract(ctx, goethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

// Compile-time interface check.
var _ domain.MetadataSource = (*Client)(nil)
