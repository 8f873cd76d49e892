// Package stats maintains the running aggregate view over the event stream:
// total value transferred and cumulative per-name totals.
package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// Aggregator accumulates totals from the ordered event stream. Apply is
// called by the single dispatch loop; Snapshot may be called concurrently by
// HTTP handlers and new WebSocket connections.
type Aggregator struct {
	mu sync.RWMutex

	totalValue float64
	perName    map[string]float64
	// names maps addresses seen registering an ENS name to that name, so
	// later transfers from the same address aggregate under the name.
	names      map[common.Address]string
	lastUpdate time.Time

	now func() time.Time // overridable in tests
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		perName: make(map[string]float64),
		names:   make(map[common.Address]string),
		now:     time.Now,
	}
}

// Apply folds one released event into the totals and reports whether the
// aggregate view changed. Registrations only teach the owner-to-name mapping;
// they do not move totals.
func (a *Aggregator) Apply(ev domain.Event) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := ev.(type) {
	case domain.NameRegistered:
		a.names[e.Owner] = e.Name
		return false
	case domain.EnrichedTransfer:
		a.totalValue += e.DecimalValue
		a.perName[a.labelLocked(e.From)] += e.DecimalValue
		a.lastUpdate = a.now()
		return true
	default:
		return false
	}
}

// labelLocked resolves the aggregation key for a sender: its registered ENS
// name when known, otherwise the hex address. Caller must hold a.mu.
func (a *Aggregator) labelLocked(from common.Address) string {
	if name, ok := a.names[from]; ok {
		return name
	}
	return from.Hex()
}

// Snapshot returns a consistent copy of the aggregate state. Per-name entries
// are sorted by descending total, ties broken by name, so the feed output is
// deterministic.
func (a *Aggregator) Snapshot() domain.StatsSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	totals := make([]domain.NameTotal, 0, len(a.perName))
	for name, total := range a.perName {
		totals = append(totals, domain.NameTotal{Name: name, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].Name < totals[j].Name
	})

	return domain.StatsSnapshot{
		TotalValueTransferred: a.totalValue,
		PerNameTotals:         totals,
		LastUpdate:            a.lastUpdate,
	}
}
