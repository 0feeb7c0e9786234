package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// Registry is the single source of truth for slot state. It is the
// only component permitted to flip a slot's activity flag, and all
// mutations are serialized behind one mutex so two orchestration runs
// can never race on the active flag.
type Registry struct {
	app   string
	store storage.Store

	mu    sync.Mutex
	slots map[types.SlotID]*types.Slot
}

// New creates a registry for the given application, loading slot state
// from the store. Missing slots are bootstrapped with blue active and
// green standby.
func New(app string, store storage.Store, endpoints map[types.SlotID]string) (*Registry, error) {
	r := &Registry{
		app:   app,
		store: store,
		slots: make(map[types.SlotID]*types.Slot, 2),
	}

	for _, id := range []types.SlotID{types.SlotBlue, types.SlotGreen} {
		slot, err := store.GetSlot(app, id)
		if err != nil {
			slot = &types.Slot{
				ID:        id,
				App:       app,
				Health:    types.HealthUnknown,
				Activity:  types.ActivityStandby,
				UpdatedAt: time.Now(),
			}
			if id == types.SlotBlue {
				slot.Activity = types.ActivityActive
			}
		}
		if ep, ok := endpoints[id]; ok {
			slot.Endpoint = ep
		}
		r.slots[id] = slot
	}

	r.repairActivity()

	if err := store.SaveSlots(r.slots[types.SlotBlue], r.slots[types.SlotGreen]); err != nil {
		return nil, fmt.Errorf("failed to persist slots: %w", err)
	}

	log.WithComponent("registry").Info().
		Str("app", app).
		Str("active", string(r.activeLocked().ID)).
		Msg("registry bootstrapped")

	return r, nil
}

// repairActivity restores the single-active invariant when the loaded
// state carries zero or two active slots. The persisted route names
// the slot that was actually receiving traffic; without one, blue
// keeps the flag.
func (r *Registry) repairActivity() {
	active := 0
	for _, slot := range r.slots {
		if slot.Active() {
			active++
		}
	}
	if active == 1 {
		return
	}

	winner := types.SlotBlue
	if route, err := r.store.GetRoute(r.app); err == nil && route.Slot.Valid() {
		winner = route.Slot
	}

	now := time.Now()
	r.slots[winner].Activity = types.ActivityActive
	r.slots[winner].UpdatedAt = now
	r.slots[winner.Other()].Activity = types.ActivityStandby
	r.slots[winner.Other()].UpdatedAt = now

	log.WithComponent("registry").Warn().
		Str("app", r.app).
		Int("active_flags", active).
		Str("repaired_to", string(winner)).
		Msg("activity flags inconsistent, repaired from route")
}

// App returns the application this registry tracks
func (r *Registry) App() string {
	return r.app
}

// GetActive returns a copy of the slot currently receiving traffic
func (r *Registry) GetActive() types.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.activeLocked()
}

// GetStandby returns a copy of the slot not receiving traffic
func (r *Registry) GetStandby() types.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.slots[r.activeLocked().ID.Other()]
}

// GetSlot returns a copy of the named slot
func (r *Registry) GetSlot(id types.SlotID) (types.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.slots[id]
	if !ok {
		return types.Slot{}, fmt.Errorf("%w: slot %s", types.ErrNotFound, id)
	}
	return *slot, nil
}

// SetActive flips the activity flag to the given slot. It fails with
// ErrInvalidTransition if the slot is already active (a no-op switch
// is rejected, not silently ignored) or if the slot is not healthy.
func (r *Registry) SetActive(id types.SlotID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.slots[id]
	if !ok {
		return fmt.Errorf("%w: slot %s", types.ErrNotFound, id)
	}
	if target.Active() {
		return fmt.Errorf("%w: slot %s is already active", types.ErrInvalidTransition, id)
	}
	if target.Health != types.HealthHealthy {
		return fmt.Errorf("%w: slot %s health is %s, must be healthy",
			types.ErrInvalidTransition, id, target.Health)
	}

	prev := r.activeLocked()
	now := time.Now()

	target.Activity = types.ActivityActive
	target.UpdatedAt = now
	prev.Activity = types.ActivityStandby
	prev.UpdatedAt = now

	if err := r.persistLocked(target, prev); err != nil {
		// Restore in-memory state so the invariant holds
		target.Activity = types.ActivityStandby
		prev.Activity = types.ActivityActive
		return fmt.Errorf("failed to persist active flag: %w", err)
	}

	log.WithComponent("registry").Info().
		Str("app", r.app).
		Str("from", string(prev.ID)).
		Str("to", string(target.ID)).
		Msg("active slot changed")

	return nil
}

// ForceActive flips the activity flag to the given slot without the
// health gate. Only the rollback path uses this: the prior slot was
// serving live traffic moments before the failed switch and must be
// restorable even when its recorded health is stale. Restoring the
// already-active slot is a no-op, not an error.
func (r *Registry) ForceActive(id types.SlotID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.slots[id]
	if !ok {
		return fmt.Errorf("%w: slot %s", types.ErrNotFound, id)
	}
	if target.Active() {
		return nil
	}

	prev := r.activeLocked()
	now := time.Now()

	target.Activity = types.ActivityActive
	target.UpdatedAt = now
	prev.Activity = types.ActivityStandby
	prev.UpdatedAt = now

	if err := r.persistLocked(target, prev); err != nil {
		target.Activity = types.ActivityStandby
		prev.Activity = types.ActivityActive
		return fmt.Errorf("failed to persist active flag: %w", err)
	}

	log.WithComponent("registry").Warn().
		Str("app", r.app).
		Str("from", string(prev.ID)).
		Str("to", string(target.ID)).
		Msg("active slot force-restored")

	return nil
}

// RecordVersion updates the slot's version bookkeeping. Called by the
// deployer when a new workload spec has been applied.
func (r *Registry) RecordVersion(id types.SlotID, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return fmt.Errorf("%w: slot %s", types.ErrNotFound, id)
	}
	slot.DesiredVersion = version
	slot.CurrentVersion = version
	slot.UpdatedAt = time.Now()
	return r.persistLocked(slot)
}

// SetHealth updates the slot's health status. Called by the prober
// after a verdict and by the rollback controller to disqualify a
// failed slot.
func (r *Registry) SetHealth(id types.SlotID, health types.HealthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return fmt.Errorf("%w: slot %s", types.ErrNotFound, id)
	}
	slot.Health = health
	slot.UpdatedAt = time.Now()
	return r.persistLocked(slot)
}

// activeLocked returns the active slot. Callers must hold r.mu.
// Exactly one slot is active at all times.
func (r *Registry) activeLocked() *types.Slot {
	for _, slot := range r.slots {
		if slot.Active() {
			return slot
		}
	}
	// Unreachable if the invariant holds; fall back to blue
	return r.slots[types.SlotBlue]
}

// persistLocked writes the given slots atomically. A switch updates
// two slots; persisting one without the other would record two active
// slots across a crash.
func (r *Registry) persistLocked(slots ...*types.Slot) error {
	return r.store.SaveSlots(slots...)
}
