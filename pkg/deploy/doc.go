/*
Package deploy applies new workload specs to the standby slot.

The Deployer enforces the standby-only precondition via a registry
lookup: deploying to the active slot is rejected with
ErrActiveSlotProtected before anything reaches the workload layer. On
success it records the new version in the registry and resets the
slot's health to unknown, forcing a fresh probe pass before the slot
can receive traffic.

The Applier interface abstracts the workload backend. The kube package
provides a Kubernetes implementation; tests use in-memory fakes.
Readiness is the workload's own signal (replica readiness), waited on
with a bounded timeout; expiry surfaces as ErrDeployTimeout and leaves
the slot's health flag untouched.
*/
package deploy
