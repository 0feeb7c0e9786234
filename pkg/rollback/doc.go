/*
Package rollback reverts a failed traffic switch.

The controller handles both failure shapes the orchestrator can hand
it: a switch that completed and then regressed (traffic moved, flip it
back), and a switch that failed partway (registry never moved, make
the backend agree with it). In both cases the failed slot is marked
unhealthy, which disqualifies it as a deploy target until the standby
reconciler re-probes it.

Rollback errors are ErrRollbackFailed and are never retried
automatically. A failed rollback means manual operator intervention.
*/
package rollback
