package pipeline

import "github.com/alanyoungcy/enswatch/internal/domain"

// completion is the outcome of processing one admitted event. A nil event
// marks a slot that finished but produced nothing (discarded below the value
// threshold); the slot still advances the release cursor.
type completion struct {
	seq   uint64
	event domain.Event
}

// reorderBuffer releases completions strictly in admission-sequence order,
// regardless of how far ahead concurrent processing ran. It is owned by a
// single goroutine and is not safe for concurrent use.
type reorderBuffer struct {
	next    uint64
	pending map[uint64]completion
}

func newReorderBuffer() *reorderBuffer {
	return &reorderBuffer{
		next:    1,
		pending: make(map[uint64]completion),
	}
}

// add records one completion and returns every event now releasable in order.
// Discarded slots advance the cursor without contributing an event.
func (b *reorderBuffer) add(c completion) []domain.Event {
	b.pending[c.seq] = c

	var ready []domain.Event
	for {
		c, ok := b.pending[b.next]
		if !ok {
			return ready
		}
		delete(b.pending, b.next)
		b.next++
		if c.event != nil {
			ready = append(ready, c.event)
		}
	}
}

// waiting returns how many completions are buffered ahead of the cursor.
func (b *reorderBuffer) waiting() int {
	return len(b.pending)
}
