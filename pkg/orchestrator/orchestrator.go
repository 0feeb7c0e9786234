package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hueshift/hueshift/pkg/deploy"
	"github.com/hueshift/hueshift/pkg/events"
	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/metrics"
	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/rollback"
	"github.com/hueshift/hueshift/pkg/route"
	"github.com/hueshift/hueshift/pkg/storage"
	"github.com/hueshift/hueshift/pkg/types"
)

// Orchestrator drives the blue/green state machine for one
// application: deploy → probe → switch → verify → commit | rollback.
type Orchestrator struct {
	registry *registry.Registry
	deployer *deploy.Deployer
	prober   *prober.Prober
	switcher *route.Switcher
	rollback *rollback.Controller
	store    storage.Store
	broker   *events.Broker

	mu    sync.Mutex
	busy  bool
	state types.RunState

	// the request id of the in-flight run; empty when idle
	runID string
}

// New creates an orchestrator wiring the given components
func New(
	reg *registry.Registry,
	deployer *deploy.Deployer,
	prb *prober.Prober,
	switcher *route.Switcher,
	rb *rollback.Controller,
	store storage.Store,
) *Orchestrator {
	return &Orchestrator{
		registry: reg,
		deployer: deployer,
		prober:   prb,
		switcher: switcher,
		rollback: rb,
		store:    store,
		state:    types.StateIdle,
	}
}

// WithBroker attaches an event broker; every state transition and
// terminal outcome is published to it.
func (o *Orchestrator) WithBroker(b *events.Broker) *Orchestrator {
	o.broker = b
	return o
}

// State returns the current state of the machine
func (o *Orchestrator) State() types.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes one orchestration attempt for the request. Exactly one
// run may be in flight per application; a concurrent request is
// rejected with ErrSlotBusy. Cancellation via ctx is honored only
// before the traffic switch begins; once switching, the run is
// carried to a terminal state on a detached context so a half-applied
// switch is never left unresolved.
func (o *Orchestrator) Run(ctx context.Context, req *types.DeploymentRequest) (*types.RolloutRecord, error) {
	app := o.registry.App()

	if err := o.acquire(app); err != nil {
		return nil, err
	}
	defer o.release()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	req.Params.Normalize()

	active := o.registry.GetActive()
	if req.TargetSlot == "" {
		req.TargetSlot = active.ID.Other()
	}
	if !req.TargetSlot.Valid() {
		metrics.RolloutsRejected.WithLabelValues(app, "invalid_slot").Inc()
		return nil, fmt.Errorf("%w: unknown slot %q", types.ErrInvalidTransition, req.TargetSlot)
	}

	// Rejected immediately: no state mutation, no rollout record
	if req.TargetSlot == active.ID {
		metrics.RolloutsRejected.WithLabelValues(app, "active_slot").Inc()
		return nil, fmt.Errorf("%w: slot %s is receiving live traffic",
			types.ErrActiveSlotProtected, req.TargetSlot)
	}

	logger := log.WithComponent("orchestrator").With().
		Str("app", app).
		Str("rollout_id", req.ID).
		Str("target", string(req.TargetSlot)).
		Str("version", req.Version).
		Logger()

	logger.Info().Msg("starting rollout")
	o.setRunID(req.ID)
	o.publish(&events.Event{
		Type: events.EventRolloutStarted,
		App:  app,
		Metadata: map[string]string{
			"rollout_id": req.ID,
			"version":    req.Version,
			"target":     string(req.TargetSlot),
		},
	})

	started := time.Now()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RolloutDuration.WithLabelValues(app))

	probeCfg := prober.ConfigFromParams(req.Params)

	// Deploying
	o.setState(types.StateDeploying)
	if err := o.deployer.Deploy(ctx, req.TargetSlot, req.Version, req.Params); err != nil {
		// Traffic never moved; the standby is left unhealthy and
		// the active slot is unaffected.
		_ = o.registry.SetHealth(req.TargetSlot, types.HealthUnhealthy)
		return o.finish(req, active.ID, started, types.StateFailed, types.OutcomeFailed, err)
	}

	// PreSwitchProbing
	o.setState(types.StatePreSwitchProbing)
	target, err := o.registry.GetSlot(req.TargetSlot)
	if err != nil {
		return o.finish(req, active.ID, started, types.StateFailed, types.OutcomeFailed, err)
	}

	verdict, err := o.prober.Probe(ctx, target, probeCfg)
	if err != nil {
		// Cancelled mid-probe: abandon the attempt, active slot untouched
		return o.finish(req, active.ID, started, types.StateFailed, types.OutcomeFailed,
			fmt.Errorf("probing abandoned: %w", err))
	}
	if !verdict.Healthy {
		_ = o.registry.SetHealth(req.TargetSlot, types.HealthUnhealthy)
		metrics.SetSlotHealth(app, string(req.TargetSlot), false)
		return o.finish(req, active.ID, started, types.StateFailed, types.OutcomeFailed,
			fmt.Errorf("%w after %d attempts: %s", types.ErrHealthCheckFailed, verdict.Attempts, verdict.Reason()))
	}
	if err := o.registry.SetHealth(req.TargetSlot, types.HealthHealthy); err != nil {
		return o.finish(req, active.ID, started, types.StateFailed, types.OutcomeFailed, err)
	}
	metrics.SetSlotHealth(app, string(req.TargetSlot), true)

	// From here on the run must reach a terminal state even if the
	// caller goes away; a half-applied switch is the one state this
	// design never leaves unresolved.
	detached := context.WithoutCancel(ctx)

	// Switching
	o.setState(types.StateSwitching)
	if err := o.switcher.SwitchTo(detached, req.TargetSlot); err != nil {
		return o.rollBack(detached, req, active.ID, started, err)
	}

	// PostSwitchProbing
	o.setState(types.StatePostSwitchProbing)
	nowActive, gerr := o.registry.GetSlot(req.TargetSlot)
	if gerr != nil {
		return o.rollBack(detached, req, active.ID, started, gerr)
	}

	observed, err := o.prober.Observe(detached, nowActive, probeCfg)
	if err != nil {
		return o.rollBack(detached, req, active.ID, started, err)
	}
	if !observed.Healthy {
		return o.rollBack(detached, req, active.ID, started,
			fmt.Errorf("%w during observation window: %s", types.ErrHealthCheckFailed, observed.Reason()))
	}

	// Committed
	logger.Info().Dur("took", time.Since(started)).Msg("rollout committed")
	return o.finish(req, active.ID, started, types.StateCommitted, types.OutcomeCommitted, nil)
}

// rollBack drives the RollingBack → RolledBack | Failed tail of the
// state machine
func (o *Orchestrator) rollBack(ctx context.Context, req *types.DeploymentRequest, fromSlot types.SlotID, started time.Time, cause error) (*types.RolloutRecord, error) {
	o.setState(types.StateRollingBack)

	log.WithComponent("orchestrator").Warn().
		Str("app", o.registry.App()).
		Str("rollout_id", req.ID).
		Err(cause).
		Msg("rolling back")

	if err := o.rollback.Rollback(ctx, req.TargetSlot); err != nil {
		// Rollback itself failed: terminal, manual intervention
		return o.finish(req, fromSlot, started, types.StateFailed, types.OutcomeFailed,
			fmt.Errorf("%v; %w", cause, err))
	}

	return o.finish(req, fromSlot, started, types.StateRolledBack, types.OutcomeRolledBack, cause)
}

// finish records the terminal state and returns the rollout record
// along with the causing error, if any
func (o *Orchestrator) finish(req *types.DeploymentRequest, fromSlot types.SlotID, started time.Time, state types.RunState, outcome types.RolloutOutcome, cause error) (*types.RolloutRecord, error) {
	o.setState(state)
	app := o.registry.App()

	record := &types.RolloutRecord{
		ID:        uuid.New().String(),
		App:       app,
		RequestID: req.ID,
		FromSlot:  fromSlot,
		ToSlot:    req.TargetSlot,
		Version:   req.Version,
		State:     state,
		Outcome:   outcome,
		StartedAt: started,
		EndedAt:   time.Now(),
	}
	if cause != nil {
		record.Reason = cause.Error()
	}

	if err := o.store.AppendRolloutRecord(record); err != nil {
		log.WithComponent("orchestrator").Error().
			Str("app", app).
			Err(err).
			Msg("failed to append rollout record")
	}

	metrics.RolloutsTotal.WithLabelValues(app, string(outcome)).Inc()
	o.publish(events.Terminal(app, record))
	o.setState(types.StateIdle)
	o.setRunID("")

	return record, cause
}

// acquire claims the single in-flight run for the application
func (o *Orchestrator) acquire(app string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.busy {
		metrics.RolloutsRejected.WithLabelValues(app, "busy").Inc()
		return fmt.Errorf("%w: %s", types.ErrSlotBusy, app)
	}
	o.busy = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.busy = false
}

func (o *Orchestrator) setState(state types.RunState) {
	o.mu.Lock()
	o.state = state
	runID := o.runID
	o.mu.Unlock()

	if state != types.StateIdle {
		o.publish(events.StateMoved(o.registry.App(), runID, state))
	}
}

func (o *Orchestrator) setRunID(id string) {
	o.mu.Lock()
	o.runID = id
	o.mu.Unlock()
}

// publish emits an event when a broker is attached
func (o *Orchestrator) publish(e *events.Event) {
	if o.broker != nil {
		o.broker.Publish(e)
	}
}
