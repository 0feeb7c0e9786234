/*
Package orchestrator drives a deployment request through the blue/green
state machine.

A single Run owns the full lifecycle:

	Deploying → PreSwitchProbing → Switching → PostSwitchProbing → Committed

Any failure before Switching is terminal but harmless: traffic never
moved, so the run ends Failed with the active slot untouched. Any
failure at or after Switching triggers an automatic rollback, ending
RolledBack on success or Failed when the rollback itself cannot
complete.

Runs are serialized per orchestrator. A second request arriving while
one is in flight is rejected with ErrSlotBusy rather than queued, so
the caller always knows whether its request is the one being acted on.

Cancellation is honored only while it is still safe: during Deploying
and PreSwitchProbing the request context aborts the run. From Switching
onward the run continues on a detached context, because interrupting a
half-applied traffic switch is worse than finishing it.

Every run, whatever its outcome, appends exactly one rollout record to
the store before returning.
*/
package orchestrator
