package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/types"
)

// StateReporter tells the reconciler whether a rollout is in flight.
// The orchestrator satisfies it.
type StateReporter interface {
	State() types.RunState
}

// Reconciler periodically re-probes the standby slot so a slot
// disqualified by a failed rollout can earn back its deploy
// eligibility once it recovers.
type Reconciler struct {
	registry *registry.Registry
	prober   *prober.Prober
	reporter StateReporter
	params   types.RolloutParams
	interval time.Duration

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewReconciler creates a reconciler that re-probes the standby every
// interval.
func NewReconciler(reg *registry.Registry, prb *prober.Prober, reporter StateReporter, params types.RolloutParams, interval time.Duration) *Reconciler {
	return &Reconciler{
		registry: reg,
		prober:   prb,
		reporter: reporter,
		params:   params,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// run is the main reconciliation loop
func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reconcile(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Reconcile performs one cycle. Exported so tests and operators can
// trigger a cycle on demand.
func (r *Reconciler) Reconcile(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A rollout owns slot health while it runs
	if r.reporter != nil && r.reporter.State() != types.StateIdle {
		return
	}

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconcileDuration)
		metrics.ReconcileCyclesTotal.Inc()
	}()

	standby := r.registry.GetStandby()
	if standby.Endpoint == "" || standby.CurrentVersion == "" {
		// Nothing deployed there yet
		return
	}

	verdict, err := r.prober.Probe(ctx, standby, prober.ConfigFromParams(r.params))
	if err != nil {
		log.WithComponent("reconciler").Warn().
			Err(err).
			Str("slot", string(standby.ID)).
			Msg("standby probe aborted")
		return
	}

	health := types.HealthUnhealthy
	if verdict.Healthy {
		health = types.HealthHealthy
	}
	if health == standby.Health {
		return
	}

	// The probe can outlast the idle check at cycle start; a rollout
	// that began meanwhile owns the standby's health now, and a stale
	// verdict must not overwrite it.
	if r.reporter != nil && r.reporter.State() != types.StateIdle {
		log.WithComponent("reconciler").Debug().
			Str("slot", string(standby.ID)).
			Msg("rollout started during probe, discarding verdict")
		return
	}

	if err := r.registry.SetHealth(standby.ID, health); err != nil {
		log.WithComponent("reconciler").Error().
			Err(err).
			Str("slot", string(standby.ID)).
			Msg("failed to update standby health")
		return
	}

	log.WithComponent("reconciler").Info().
		Str("app", r.registry.App()).
		Str("slot", string(standby.ID)).
		Str("health", string(health)).
		Str("reason", verdict.Reason()).
		Msg("standby health changed")
}
