package pipeline

import (
	"testing"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

func transferWithSeq(i int) domain.Event {
	return domain.EnrichedTransfer{
		Transfer: domain.Transfer{LogKey: key(i), BlockNumber: uint64(i)},
	}
}

func TestReorderBufferReleasesInOrder(t *testing.T) {
	b := newReorderBuffer()

	// Completions arrive 3, 1, 2; releases must come out 1, 2, 3.
	if got := b.add(completion{seq: 3, event: transferWithSeq(3)}); len(got) != 0 {
		t.Fatalf("add(3) released %d events, want 0", len(got))
	}
	got := b.add(completion{seq: 1, event: transferWithSeq(1)})
	if len(got) != 1 || got[0].Block() != 1 {
		t.Fatalf("add(1) released %v, want [block 1]", got)
	}
	got = b.add(completion{seq: 2, event: transferWithSeq(2)})
	if len(got) != 2 || got[0].Block() != 2 || got[1].Block() != 3 {
		t.Fatalf("add(2) released %v, want [block 2, block 3]", got)
	}
	if b.waiting() != 0 {
		t.Errorf("waiting() = %d, want 0", b.waiting())
	}
}

func TestReorderBufferDiscardAdvancesCursor(t *testing.T) {
	b := newReorderBuffer()

	b.add(completion{seq: 2, event: transferWithSeq(2)})
	// Seq 1 was discarded below the threshold: nil event, cursor still moves.
	got := b.add(completion{seq: 1})
	if len(got) != 1 || got[0].Block() != 2 {
		t.Fatalf("discard at seq 1 released %v, want [block 2]", got)
	}
}

func TestReorderBufferLongGap(t *testing.T) {
	b := newReorderBuffer()

	for i := 2; i <= 10; i++ {
		if got := b.add(completion{seq: uint64(i), event: transferWithSeq(i)}); len(got) != 0 {
			t.Fatalf("add(%d) released events before the gap filled", i)
		}
	}
	got := b.add(completion{seq: 1, event: transferWithSeq(1)})
	if len(got) != 10 {
		t.Fatalf("gap fill released %d events, want 10", len(got))
	}
	for i, ev := range got {
		if ev.Block() != uint64(i+1) {
			t.Errorf("release %d has block %d, want %d", i, ev.Block(), i+1)
		}
	}
}
