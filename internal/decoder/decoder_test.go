package decoder

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d
}

// packUint256 ABI-encodes a single uint256 value.
func packUint256(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

// packString ABI-encodes a single dynamic string value.
func packString(s string) []byte {
	data := make([]byte, 0, 96)
	data = append(data, common.LeftPadBytes(big.NewInt(32).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(int64(len(s))).Bytes(), 32)...)
	padded := len(s)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}
	data = append(data, common.RightPadBytes([]byte(s), padded)...)
	return data
}

func addressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

func TestDecodeTransfer(t *testing.T) {
	d := newTestDecoder(t)

	from := common.HexToAddress("0x1111111111111111111111111111111111111111")
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	token := common.HexToAddress("0x3333333333333333333333333333333333333333")
	// 15 tokens at 18 decimals.
	value, _ := new(big.Int).SetString("15000000000000000000", 10)

	raw := domain.RawLog{
		BlockNumber: 123,
		TxHash:      common.HexToHash("0xaa"),
		LogIndex:    7,
		Address:     token,
		Topics:      []common.Hash{d.TransferTopic(), addressTopic(from), addressTopic(to)},
		Data:        packUint256(value),
	}

	ev, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	tr, ok := ev.(domain.Transfer)
	if !ok {
		t.Fatalf("Decode() returned %T, want domain.Transfer", ev)
	}
	if tr.Token != token || tr.From != from || tr.To != to {
		t.Errorf("addresses: got token=%s from=%s to=%s", tr.Token, tr.From, tr.To)
	}
	if tr.RawValue.Cmp(value) != 0 {
		t.Errorf("RawValue = %s, want %s", tr.RawValue, value)
	}
	if tr.Key() != raw.Key() {
		t.Errorf("Key() = %+v, want %+v", tr.Key(), raw.Key())
	}
	if tr.Block() != 123 {
		t.Errorf("Block() = %d, want 123", tr.Block())
	}
}

func TestDecodeRegistration(t *testing.T) {
	d := newTestDecoder(t)

	owner := common.HexToAddress("0x4444444444444444444444444444444444444444")
	raw := domain.RawLog{
		BlockNumber: 456,
		TxHash:      common.HexToHash("0xbb"),
		LogIndex:    2,
		Topics: []common.Hash{
			d.NameRegisteredTopic(),
			addressTopic(owner),
			common.HexToHash("0x01"), // node
			common.HexToHash("0x02"), // label
		},
		Data: packString("vitalik"),
	}

	ev, err := d.Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	reg, ok := ev.(domain.NameRegistered)
	if !ok {
		t.Fatalf("Decode() returned %T, want domain.NameRegistered", ev)
	}
	if reg.Name != "vitalik" {
		t.Errorf("Name = %q, want %q", reg.Name, "vitalik")
	}
	if reg.Owner != owner {
		t.Errorf("Owner = %s, want %s", reg.Owner, owner)
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	d := newTestDecoder(t)

	raw := domain.RawLog{
		Topics: []common.Hash{common.HexToHash("0xdeadbeef")},
	}
	if _, err := d.Decode(raw); !errors.Is(err, domain.ErrUnknownTopic) {
		t.Errorf("Decode() error = %v, want ErrUnknownTopic", err)
	}

	if _, err := d.Decode(domain.RawLog{}); !errors.Is(err, domain.ErrUnknownTopic) {
		t.Errorf("Decode() with no topics error = %v, want ErrUnknownTopic", err)
	}
}

func TestDecodeTransferWrongTopicCount(t *testing.T) {
	d := newTestDecoder(t)

	raw := domain.RawLog{
		TxHash: common.HexToHash("0xcc"),
		Topics: []common.Hash{d.TransferTopic()}, // missing from/to
		Data:   packUint256(big.NewInt(1)),
	}
	_, err := d.Decode(raw)
	if err == nil {
		t.Fatal("Decode() succeeded on transfer with 1 topic, want error")
	}
	if errors.Is(err, domain.ErrUnknownTopic) {
		t.Errorf("malformed transfer should not be ErrUnknownTopic, got %v", err)
	}
}

func TestDecodeRegistrationTruncatedData(t *testing.T) {
	d := newTestDecoder(t)

	raw := domain.RawLog{
		TxHash: common.HexToHash("0xdd"),
		Topics: []common.Hash{
			d.NameRegisteredTopic(),
			common.HexToHash("0x01"),
			common.HexToHash("0x02"),
			common.HexToHash("0x03"),
		},
		Data: []byte{0x01, 0x02}, // not a valid ABI string payload
	}
	if _, err := d.Decode(raw); err == nil {
		t.Fatal("Decode() succeeded on truncated registration data, want error")
	}
}
