package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/types"
)

// Applier is the workload layer the deployer drives. It stands in for
// whatever actually materializes the workload spec (a Kubernetes
// Deployment patch, a Helm upgrade, a plain process manager).
type Applier interface {
	// Apply materializes the workload spec on the slot and returns
	// once accepted by the backend
	Apply(ctx context.Context, slot types.Slot, version string, params types.RolloutParams) error

	// WaitReady blocks until the slot's workload reports ready or
	// ctx expires
	WaitReady(ctx context.Context, slot types.Slot, params types.RolloutParams) error
}

// Deployer applies new workload specs to the standby slot only. The
// active slot is never mutated in place.
type Deployer struct {
	registry *registry.Registry
	applier  Applier
}

// NewDeployer creates a new deployer
func NewDeployer(reg *registry.Registry, applier Applier) *Deployer {
	return &Deployer{
		registry: reg,
		applier:  applier,
	}
}

// Deploy applies version to the slot and waits, bounded by the
// readiness timeout, for the workload's own readiness signal. The
// target must be the current standby; deploying to the active slot is
// rejected with ErrActiveSlotProtected. A readiness timeout returns
// ErrDeployTimeout without raising the slot's health flag.
func (d *Deployer) Deploy(ctx context.Context, slotID types.SlotID, version string, params types.RolloutParams) error {
	logger := log.WithComponent("deployer")
	app := d.registry.App()

	slot, err := d.registry.GetSlot(slotID)
	if err != nil {
		return err
	}
	if slot.Active() {
		metrics.DeploysTotal.WithLabelValues(app, string(slotID), "rejected").Inc()
		return fmt.Errorf("%w: cannot deploy %s to active slot %s",
			types.ErrActiveSlotProtected, version, slotID)
	}

	logger.Info().
		Str("app", app).
		Str("slot", string(slotID)).
		Str("version", version).
		Int("replicas", params.Replicas).
		Msg("deploying to standby slot")

	timer := metrics.NewTimer()

	if err := d.applier.Apply(ctx, slot, version, params); err != nil {
		metrics.DeploysTotal.WithLabelValues(app, string(slotID), "failed").Inc()
		return fmt.Errorf("%w: %v", types.ErrDeployFailed, err)
	}

	// A fresh deploy invalidates whatever health the slot had
	if err := d.registry.SetHealth(slotID, types.HealthUnknown); err != nil {
		return err
	}
	if err := d.registry.RecordVersion(slotID, version); err != nil {
		return err
	}

	readyCtx, cancel := context.WithTimeout(ctx, params.ReadinessTimeout)
	defer cancel()

	if err := d.applier.WaitReady(readyCtx, slot, params); err != nil {
		metrics.DeploysTotal.WithLabelValues(app, string(slotID), "timeout").Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: slot %s not ready after %v",
				types.ErrDeployTimeout, slotID, params.ReadinessTimeout)
		}
		return fmt.Errorf("%w: %v", types.ErrDeployFailed, err)
	}

	timer.ObserveDuration(metrics.DeployDuration.WithLabelValues(app))
	metrics.DeploysTotal.WithLabelValues(app, string(slotID), "ok").Inc()

	logger.Info().
		Str("app", app).
		Str("slot", string(slotID)).
		Str("version", version).
		Dur("took", timer.Duration()).
		Msg("standby slot ready")

	return nil
}
