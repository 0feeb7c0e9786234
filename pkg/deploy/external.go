package deploy

import (
	"context"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/types"
)

// ExternalApplier is the workload layer for gateway mode, where the
// operator materializes the workload out of band (systemd, a deploy
// script, an image pull on the host). Apply is a bookkeeping no-op;
// readiness means the slot endpoint answers its health check.
type ExternalApplier struct {
	checker prober.Checker
	// interval between readiness polls
	interval time.Duration
}

// NewExternalApplier creates an applier that defers workload
// materialization to the operator.
func NewExternalApplier(checker prober.Checker) *ExternalApplier {
	return &ExternalApplier{checker: checker, interval: time.Second}
}

// Apply records the intent; the workload itself is managed externally.
func (e *ExternalApplier) Apply(ctx context.Context, slot types.Slot, version string, params types.RolloutParams) error {
	log.WithApp(slot.App).Info().
		Str("slot", string(slot.ID)).
		Str("version", version).
		Msg("workload managed externally; expecting operator to start it")
	return nil
}

// WaitReady polls the slot endpoint until it answers its health check
// or ctx expires.
func (e *ExternalApplier) WaitReady(ctx context.Context, slot types.Slot, params types.RolloutParams) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if res := e.checker.Check(ctx, slot.Endpoint); res.Healthy {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
