// Package history persists the battery snapshots of a run so they can be
// queried or exported once the run is over. Stores are telemetry sinks and
// are selected with the "jsonl" and "sqlite" sink types.
package history

import (
	"context"
	"fmt"

	"github.com/kilianp07/essim/core/model"
)

// Query filters stored snapshots. Empty fields match everything. ToTick is
// exclusive and zero means no upper bound.
type Query struct {
	SiteID    string
	BatteryID string
	Phase     model.Phase
	FromTick  int
	ToTick    int
}

func (q Query) match(s model.BatterySnapshot) bool {
	switch {
	case q.SiteID != "" && s.SiteID != q.SiteID:
		return false
	case q.BatteryID != "" && s.BatteryID != q.BatteryID:
		return false
	case q.Phase != "" && s.Phase != q.Phase:
		return false
	case s.Tick < q.FromTick:
		return false
	case q.ToTick > 0 && s.Tick >= q.ToTick:
		return false
	}
	return true
}

// Store persists snapshots and supports querying them in insertion order.
type Store interface {
	Append(ctx context.Context, snaps []model.BatterySnapshot) error
	Query(ctx context.Context, q Query) ([]model.BatterySnapshot, error)
	RecordSnapshots(snaps []model.BatterySnapshot) error
	Close() error
}

// Open opens a store of the given kind ("jsonl" or "sqlite") at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "jsonl":
		return NewJSONLStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown history store %q", kind)
}
