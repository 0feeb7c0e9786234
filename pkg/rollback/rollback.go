package rollback

import (
	"context"
	"fmt"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/route"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// Controller reverts a failed switch: traffic returns to the
// previously active slot and the failed slot is disqualified from
// receiving traffic until it is re-probed and passes.
type Controller struct {
	registry *registry.Registry
	switcher *route.Switcher
	store    storage.Store
}

// NewController creates a new rollback controller
func NewController(reg *registry.Registry, switcher *route.Switcher, store storage.Store) *Controller {
	return &Controller{
		registry: reg,
		switcher: switcher,
		store:    store,
	}
}

// Rollback reverts traffic from the failed slot to the slot that was
// active before the switch. With two slots the prior slot is always
// the other one; the last committed rollout record supplies the prior
// known-good version for the audit trail. Errors surface as
// ErrRollbackFailed and are never retried automatically.
func (c *Controller) Rollback(ctx context.Context, fromSlot types.SlotID) error {
	logger := log.WithComponent("rollback")
	app := c.registry.App()
	prior := fromSlot.Other()

	knownGood := "unknown"
	if rec, err := c.store.LatestRolloutRecord(app, types.OutcomeCommitted); err == nil {
		knownGood = rec.Version
	}

	logger.Warn().
		Str("app", app).
		Str("failed_slot", string(fromSlot)).
		Str("restoring", string(prior)).
		Str("known_good", knownGood).
		Msg("rolling back traffic")

	// Restore covers both failure shapes: a completed switch that
	// regressed and a switch that failed partway. The health gate is
	// bypassed; the prior slot was serving moments ago.
	if err := c.switcher.Restore(ctx, prior); err != nil {
		metrics.RollbacksTotal.WithLabelValues(app, "failed").Inc()
		return fmt.Errorf("%w: %v", types.ErrRollbackFailed, err)
	}

	// Disqualify the failed slot until it is re-probed and passes
	if err := c.registry.SetHealth(fromSlot, types.HealthUnhealthy); err != nil {
		metrics.RollbacksTotal.WithLabelValues(app, "failed").Inc()
		return fmt.Errorf("%w: marking %s unhealthy: %v", types.ErrRollbackFailed, fromSlot, err)
	}
	metrics.SetSlotHealth(app, string(fromSlot), false)

	metrics.RollbacksTotal.WithLabelValues(app, "ok").Inc()
	metrics.SetActiveSlot(app, string(prior), string(fromSlot))

	logger.Info().
		Str("app", app).
		Str("active", string(prior)).
		Msg("rollback complete")

	return nil
}
