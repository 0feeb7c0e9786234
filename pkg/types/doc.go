/*
Package types defines the core data structures shared across all HueShift components.

This package contains the domain model for blue/green deployments: slots, deployment
requests, traffic routes, rollout records, and the orchestration state machine states.
It has no dependencies on other HueShift packages, making it safe to import anywhere.

# The Slot Model

Two slots exist per application, conventionally "blue" and "green":

	┌───────────────┐        ┌───────────────┐
	│  Slot: blue   │        │  Slot: green  │
	│  active       │        │  standby      │
	│  v1.4.2       │        │  v1.5.0       │
	│  healthy      │        │  unknown      │
	└───────┬───────┘        └───────────────┘
	        │
	   live traffic

Exactly one slot is active at any time. This is the central invariant of the
system; the registry enforces it and every component consults the registry
before mutating slot state.

Slots are created at bootstrap and never destroyed. A rollout re-targets the
standby slot with a new version and, once it proves healthy, flips traffic to
it. The previous slot is retained as standby, which makes the next rollback
or rollout instantaneous.

# Orchestration States

A deployment request drives one run of the state machine:

	Idle → Deploying → PreSwitchProbing → Switching → PostSwitchProbing → Committed
	                                         │                 │
	                                         └──► RollingBack ◄┘
	                                                  │
	                                          RolledBack | Failed

Failures before Switching never require rollback: traffic was never moved.
Failures at or after Switching always attempt automatic rollback before
reporting. A failed rollback is terminal and surfaced for manual intervention.

# Error Taxonomy

Sentinel errors in errors.go classify every failure mode. Callers use
errors.Is to branch on them; components wrap them with fmt.Errorf("%w: ...")
to carry diagnostics without losing the classification.

# Rollout Records

Every terminal state appends a RolloutRecord to the store. Records are the
audit trail and the rollback controller's source for "prior known-good
version". State is never re-derived from logs.
*/
package types
