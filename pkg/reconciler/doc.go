/*
Package reconciler restores standby health between rollouts.

A rollout that fails or rolls back marks its target slot unhealthy,
which disqualifies the slot as a deploy target. The reconciler closes
that loop: on a fixed interval it re-probes the standby slot and, when
the slot answers its health checks again, raises its health so the
next rollout can use it. It also catches the reverse case where an
idle standby silently decays.

The reconciler is level-triggered and stateless between cycles. All
decisions come from the registry's current view; missed cycles cost
nothing but latency. Cycles are skipped entirely while a rollout is in
flight, because the orchestrator owns slot health during a run.
*/
package reconciler
