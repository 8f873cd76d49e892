package pipeline

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

func key(i int) domain.LogKey {
	return domain.LogKey{
		TxHash:   common.HexToHash(fmt.Sprintf("0x%x", i)),
		LogIndex: uint(i),
	}
}

func TestDedupWindowRecordOnce(t *testing.T) {
	d := NewDedupWindow(16)

	if !d.Record(key(1)) {
		t.Fatal("first Record() = false, want true")
	}
	if d.Record(key(1)) {
		t.Fatal("second Record() of same key = true, want false")
	}
	if !d.Contains(key(1)) {
		t.Error("Contains() = false after Record")
	}
	if d.Contains(key(2)) {
		t.Error("Contains() = true for unseen key")
	}
}

func TestDedupWindowEvictsOldest(t *testing.T) {
	d := NewDedupWindow(3)

	for i := 1; i <= 3; i++ {
		d.Record(key(i))
	}
	if d.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", d.Len())
	}

	// Fourth insert evicts key(1).
	d.Record(key(4))
	if d.Len() != 3 {
		t.Fatalf("Len() after eviction = %d, want 3", d.Len())
	}
	if d.Contains(key(1)) {
		t.Error("oldest key still present after eviction")
	}
	for i := 2; i <= 4; i++ {
		if !d.Contains(key(i)) {
			t.Errorf("key(%d) missing after eviction", i)
		}
	}

	// An evicted key may be recorded again.
	if !d.Record(key(1)) {
		t.Error("Record() of evicted key = false, want true")
	}
}

func TestDedupWindowSameTxDifferentIndex(t *testing.T) {
	d := NewDedupWindow(8)
	tx := common.HexToHash("0xabc")

	a := domain.LogKey{TxHash: tx, LogIndex: 0}
	b := domain.LogKey{TxHash: tx, LogIndex: 1}

	if !d.Record(a) || !d.Record(b) {
		t.Error("distinct log indexes in one tx must both be recordable")
	}
}
