package domain

import "time"

// StatsSnapshot is a consistent point-in-time view of the running aggregates.
// It reflects a prefix of the ordered event sequence, never a partially
// applied update.
type StatsSnapshot struct {
	TotalValueTransferred float64
	PerNameTotals         []NameTotal
	LastUpdate            time.Time
}

// Message converts the snapshot into its wire shape.
func (s StatsSnapshot) Message() StatsMessage {
	return StatsMessage{
		Type:                  MessageTypeStats,
		TotalValueTransferred: s.TotalValueTransferred,
		PerNameTotals:         s.PerNameTotals,
		LastUpdate:            s.LastUpdate,
	}
}
