package storage

import (
	"github.com/hueshift/hueshift/pkg/types"
)

// Store defines the interface for controller state storage.
// Implemented by BoltDB-backed storage.
type Store interface {
	// Slots. SaveSlots is atomic across all given slots; the activity
	// flip of a switch must never be persisted halfway.
	SaveSlot(slot *types.Slot) error
	SaveSlots(slots ...*types.Slot) error
	GetSlot(app string, id types.SlotID) (*types.Slot, error)
	ListSlots(app string) ([]*types.Slot, error)

	// Routes
	SaveRoute(route *types.TrafficRoute) error
	GetRoute(app string) (*types.TrafficRoute, error)

	// Rollout records (append-only)
	AppendRolloutRecord(record *types.RolloutRecord) error
	ListRolloutRecords(app string) ([]*types.RolloutRecord, error)
	LatestRolloutRecord(app string, outcome types.RolloutOutcome) (*types.RolloutRecord, error)

	// Utility
	Close() error
}
