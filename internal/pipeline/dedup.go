package pipeline

import (
	"sync"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// DedupWindow is a bounded set of recently seen log keys. Insertion beyond
// capacity evicts the oldest key. Purely in-memory; resets on restart.
type DedupWindow struct {
	mu       sync.Mutex
	seen     map[domain.LogKey]struct{}
	order    []domain.LogKey // ring buffer of insertion order
	next     int
	capacity int
}

// NewDedupWindow creates a window holding at most capacity keys.
func NewDedupWindow(capacity int) *DedupWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &DedupWindow{
		seen:     make(map[domain.LogKey]struct{}, capacity),
		order:    make([]domain.LogKey, 0, capacity),
		capacity: capacity,
	}
}

// Contains reports whether key is in the window without recording it.
func (d *DedupWindow) Contains(key domain.LogKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[key]
	return ok
}

// Record inserts key and returns true if it was new; false means the key was
// already present (a duplicate). Inserting into a full window evicts the
// oldest key.
func (d *DedupWindow) Record(key domain.LogKey) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return false
	}

	if len(d.order) < d.capacity {
		d.order = append(d.order, key)
	} else {
		delete(d.seen, d.order[d.next])
		d.order[d.next] = key
	}
	d.next = (d.next + 1) % d.capacity
	d.seen[key] = struct{}{}
	return true
}

// Len returns the number of keys currently held.
func (d *DedupWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
