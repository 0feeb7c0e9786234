package types

import "errors"

// Error taxonomy for orchestration runs. Callers match these with
// errors.Is; diagnostics are attached by wrapping with fmt.Errorf.
var (
	// ErrSlotBusy rejects a deployment request while another run
	// is in flight for the same application.
	ErrSlotBusy = errors.New("deployment already in flight for application")

	// ErrActiveSlotProtected rejects any attempt to mutate the slot
	// currently receiving live traffic.
	ErrActiveSlotProtected = errors.New("target slot is active and protected")

	// ErrInvalidTransition rejects registry mutations that violate
	// the single-active invariant (no-op switches included).
	ErrInvalidTransition = errors.New("invalid slot transition")

	// ErrDeployTimeout indicates the workload never reported ready
	// within the configured readiness timeout.
	ErrDeployTimeout = errors.New("deploy timed out waiting for readiness")

	// ErrDeployFailed indicates the workload applier reported an error.
	ErrDeployFailed = errors.New("deploy failed")

	// ErrHealthCheckFailed carries the last-attempt diagnostic after
	// probing exhausted its attempts.
	ErrHealthCheckFailed = errors.New("health check failed")

	// ErrSwitchFailed indicates the traffic switch could not complete;
	// it always triggers automatic rollback.
	ErrSwitchFailed = errors.New("traffic switch failed")

	// ErrRollbackFailed is fatal: the rollback itself errored and the
	// run halts for manual operator intervention.
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrNotFound is returned by the store for missing keys.
	ErrNotFound = errors.New("not found")
)
