package route

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// Backend is the routing layer the switcher drives. It stands in for
// the load balancer, ingress, or service selector that actually moves
// traffic. SetTarget must be atomic from the perspective of inbound
// requests and idempotent for the same target.
type Backend interface {
	SetTarget(ctx context.Context, app string, slot types.SlotID, endpoint string) error
}

// Switcher atomically repoints the traffic route from the active slot
// to the other slot. The route update and the registry's active flag
// move as one logical operation: if either step fails, the route is
// left pointing at the previously active slot.
type Switcher struct {
	registry *registry.Registry
	store    storage.Store
	backend  Backend

	// Serializes route mutations; the registry guards the active
	// flag with its own lock
	mu sync.Mutex
}

// NewSwitcher creates a new traffic switcher
func NewSwitcher(reg *registry.Registry, store storage.Store, backend Backend) *Switcher {
	return &Switcher{
		registry: reg,
		store:    store,
		backend:  backend,
	}
}

// SwitchTo moves live traffic to the given slot. Preconditions: the
// slot is healthy (a prior probe pass) and not already active; both
// are enforced by the registry's SetActive. Never returns success
// while the route and the registry disagree on the active slot.
func (s *Switcher) SwitchTo(ctx context.Context, target types.SlotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := log.WithComponent("switcher")
	app := s.registry.App()

	slot, err := s.registry.GetSlot(target)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSwitchFailed, err)
	}
	prev := s.registry.GetActive()

	if err := s.backend.SetTarget(ctx, app, slot.ID, slot.Endpoint); err != nil {
		metrics.SwitchesTotal.WithLabelValues(app, "failed").Inc()
		return fmt.Errorf("%w: backend update: %v", types.ErrSwitchFailed, err)
	}

	if err := s.registry.SetActive(target); err != nil {
		// Roll the backend back so route and registry stay in
		// agreement; a failed revert is still a switch failure
		// and the rollback path owns resolving it.
		if revertErr := s.backend.SetTarget(ctx, app, prev.ID, prev.Endpoint); revertErr != nil {
			logger.Error().
				Str("app", app).
				Err(revertErr).
				Msg("backend revert failed after registry rejection")
		}
		metrics.SwitchesTotal.WithLabelValues(app, "failed").Inc()
		return fmt.Errorf("%w: %v", types.ErrSwitchFailed, err)
	}

	route := &types.TrafficRoute{
		App:       app,
		Slot:      slot.ID,
		Endpoint:  slot.Endpoint,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveRoute(route); err != nil {
		// Route and registry already agree; persistence is
		// best-effort bookkeeping at this point
		logger.Warn().Str("app", app).Err(err).Msg("failed to persist route")
	}

	metrics.SwitchesTotal.WithLabelValues(app, "ok").Inc()
	metrics.SetActiveSlot(app, string(slot.ID), string(prev.ID))

	logger.Info().
		Str("app", app).
		Str("from", string(prev.ID)).
		Str("to", string(slot.ID)).
		Str("endpoint", slot.Endpoint).
		Msg("traffic switched")

	return nil
}

// Restore repoints traffic at the given slot without the health gate.
// Only the rollback controller calls this, to return traffic to the
// slot that was serving before a failed switch. It covers both failure
// shapes: a switch that completed (registry flipped back) and one that
// failed partway (registry never moved, restore is a registry no-op
// and only the backend is realigned).
func (s *Switcher) Restore(ctx context.Context, target types.SlotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app := s.registry.App()
	slot, err := s.registry.GetSlot(target)
	if err != nil {
		return err
	}

	if err := s.backend.SetTarget(ctx, app, slot.ID, slot.Endpoint); err != nil {
		return fmt.Errorf("backend restore: %w", err)
	}
	if err := s.registry.ForceActive(target); err != nil {
		return err
	}

	route := &types.TrafficRoute{
		App:       app,
		Slot:      slot.ID,
		Endpoint:  slot.Endpoint,
		UpdatedAt: time.Now(),
	}
	if err := s.store.SaveRoute(route); err != nil {
		log.WithComponent("switcher").Warn().
			Str("app", app).
			Err(err).
			Msg("failed to persist route")
	}

	metrics.SetActiveSlot(app, string(target), string(target.Other()))
	return nil
}
