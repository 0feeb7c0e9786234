package types

import (
	"time"
)

// SlotID identifies one of the two deployment slots
type SlotID string

const (
	SlotBlue  SlotID = "blue"
	SlotGreen SlotID = "green"
)

// Valid reports whether the slot ID names a known slot
func (s SlotID) Valid() bool {
	return s == SlotBlue || s == SlotGreen
}

// Other returns the opposite slot
func (s SlotID) Other() SlotID {
	if s == SlotBlue {
		return SlotGreen
	}
	return SlotBlue
}

// HealthState represents the last known health of a slot
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// Activity marks whether a slot is receiving live traffic
type Activity string

const (
	ActivityActive  Activity = "active"
	ActivityStandby Activity = "standby"
)

// Slot represents one of the two deployment environments.
// Slots are created at bootstrap and never destroyed, only re-targeted.
type Slot struct {
	ID             SlotID      `json:"id"`
	App            string      `json:"app"`
	CurrentVersion string      `json:"current_version"`
	DesiredVersion string      `json:"desired_version"`
	Health         HealthState `json:"health"`
	Activity       Activity    `json:"activity"`
	Endpoint       string      `json:"endpoint"` // host:port serving this slot
	Replicas       int         `json:"replicas"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Active reports whether the slot currently receives live traffic
func (s *Slot) Active() bool {
	return s.Activity == ActivityActive
}

// RolloutParams controls a single orchestration run
type RolloutParams struct {
	Replicas int `json:"replicas" yaml:"replicas"`

	// ReadinessTimeout bounds how long the deployer waits for the
	// workload's own readiness signal
	ReadinessTimeout time.Duration `json:"readiness_timeout" yaml:"readinessTimeout"`

	// Probe settings for the candidate slot
	ProbeTimeout  time.Duration `json:"probe_timeout" yaml:"probeTimeout"`
	ProbeInterval time.Duration `json:"probe_interval" yaml:"probeInterval"`
	MaxAttempts   int           `json:"max_attempts" yaml:"maxAttempts"`

	// SuccessThreshold is the number of consecutive passing probes
	// required before the slot is considered healthy
	SuccessThreshold int `json:"success_threshold" yaml:"successThreshold"`

	// InitialDelay is the grace period before the first probe attempt
	InitialDelay time.Duration `json:"initial_delay" yaml:"initialDelay"`

	// ObservationWindow bounds post-switch probing of the newly
	// active slot before the rollout is committed
	ObservationWindow time.Duration `json:"observation_window" yaml:"observationWindow"`
}

// DefaultRolloutParams returns RolloutParams with sensible defaults
func DefaultRolloutParams() RolloutParams {
	return RolloutParams{
		Replicas:          1,
		ReadinessTimeout:  5 * time.Minute,
		ProbeTimeout:      5 * time.Second,
		ProbeInterval:     3 * time.Second,
		MaxAttempts:       10,
		SuccessThreshold:  1,
		InitialDelay:      3 * time.Second,
		ObservationWindow: 60 * time.Second,
	}
}

// Normalize fills zero-valued fields from the defaults
func (p *RolloutParams) Normalize() {
	def := DefaultRolloutParams()
	if p.Replicas <= 0 {
		p.Replicas = def.Replicas
	}
	if p.ReadinessTimeout <= 0 {
		p.ReadinessTimeout = def.ReadinessTimeout
	}
	if p.ProbeTimeout <= 0 {
		p.ProbeTimeout = def.ProbeTimeout
	}
	if p.ProbeInterval <= 0 {
		p.ProbeInterval = def.ProbeInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.SuccessThreshold <= 0 {
		p.SuccessThreshold = def.SuccessThreshold
	}
	if p.ObservationWindow <= 0 {
		p.ObservationWindow = def.ObservationWindow
	}
}

// DeploymentRequest asks the orchestrator to roll a new version onto
// the standby slot. Immutable once accepted; lives for one run.
type DeploymentRequest struct {
	ID         string        `json:"id"`
	App        string        `json:"app"`
	TargetSlot SlotID        `json:"target_slot"`
	Version    string        `json:"version"`
	Params     RolloutParams `json:"params"`
	CreatedAt  time.Time     `json:"created_at"`
}

// TrafficRoute maps a stable external identity to the active slot's
// endpoint. Exactly one target at a time.
type TrafficRoute struct {
	App       string    `json:"app"`
	Slot      SlotID    `json:"slot"`
	Endpoint  string    `json:"endpoint"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunState is a state of the orchestration state machine
type RunState string

const (
	StateIdle              RunState = "idle"
	StateDeploying         RunState = "deploying"
	StatePreSwitchProbing  RunState = "pre_switch_probing"
	StateSwitching         RunState = "switching"
	StatePostSwitchProbing RunState = "post_switch_probing"
	StateCommitted         RunState = "committed"
	StateRollingBack       RunState = "rolling_back"
	StateRolledBack        RunState = "rolled_back"
	StateFailed            RunState = "failed"
)

// Terminal reports whether the state ends an orchestration run
func (s RunState) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack || s == StateFailed
}

// RolloutOutcome summarizes how an orchestration run ended
type RolloutOutcome string

const (
	OutcomeCommitted  RolloutOutcome = "committed"
	OutcomeRolledBack RolloutOutcome = "rolled_back"
	OutcomeFailed     RolloutOutcome = "failed"
)

// RolloutRecord is an append-only audit entry for one orchestration
// attempt. Records are written at every terminal state and consulted
// by the rollback controller for the prior known-good version.
type RolloutRecord struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	App       string         `json:"app"`
	RequestID string         `json:"request_id"`
	FromSlot  SlotID         `json:"from_slot"`
	ToSlot    SlotID         `json:"to_slot"`
	Version   string         `json:"version"`
	State     RunState       `json:"state"`
	Outcome   RolloutOutcome `json:"outcome"`
	Reason    string         `json:"reason,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}
