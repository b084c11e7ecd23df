package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/essim/core/events"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/internal/eventbus"
)

// ConstraintRecorder counts battery constraint violations.
type ConstraintRecorder interface {
	RecordConstraint(siteID string, c model.Constraint) error
}

// StartEventCollector subscribes to bus and forwards constraint events to
// rec until ctx is canceled or the bus is closed. The returned channel is
// closed once the collector stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, rec ConstraintRecorder) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || rec == nil {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.ConstraintEvent); ok {
					c := model.Constraint("unknown")
					var ce *model.ConstraintError
					if errors.As(e.Err, &ce) {
						c = ce.Constraint
					}
					_ = rec.RecordConstraint(e.SiteID, c)
				}
			}
		}
	}()
	return done
}
