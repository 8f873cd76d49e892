package app

import (
	"context"
	"time"

	"github.com/alanyoungcy/enswatch/internal/domain"
)

// dispatch consumes the ordered event stream, folds each event into the
// aggregator, and broadcasts the corresponding feed messages. Stats snapshots
// are pushed after every transfer so dashboards track totals without polling.
func (a *App) dispatch(ctx context.Context, deps *Dependencies) error {
	events := deps.Pipeline.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			changed := deps.Stats.Apply(ev)

			now := time.Now().UTC()
			switch e := ev.(type) {
			case domain.NameRegistered:
				deps.Hub.Broadcast(domain.NewRegistrationMessage(e, now))
			case domain.EnrichedTransfer:
				deps.Hub.Broadcast(domain.NewTransferMessage(e, now))
			}

			if changed {
				deps.Hub.Broadcast(deps.Stats.Snapshot().Message())
			}
		}
	}
}
