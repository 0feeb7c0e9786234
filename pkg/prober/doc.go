/*
Package prober polls a candidate slot's endpoint and reports a pass/fail
verdict after a bounded number of attempts.

Two checker transports are provided, both read-only against the target:

	┌──────────────────────────────────────┐
	│           Checker Interface          │
	│  • Check(ctx, endpoint) Result       │
	│  • Type() CheckType                  │
	└──────────┬───────────────┬───────────┘
	           ▼               ▼
	     ┌──────────┐    ┌──────────┐
	     │   HTTP   │    │   TCP    │
	     │ Checker  │    │ Checker  │
	     └──────────┘    └──────────┘

The Prober drives a checker through two kinds of passes:

  - Probe: pre-switch gating. Attempts are bounded by MaxAttempts with a
    per-attempt Timeout and an Interval between attempts. The verdict is
    Healthy once SuccessThreshold consecutive attempts pass (default 1,
    raise it for stricter gating); otherwise Unhealthy carrying the last
    failure reason (timeout, connection refused, unexpected status).

  - Observe: post-switch watching. The slot now receives live traffic,
    so the pass runs for a fixed Window and fails fast on
    FailureThreshold consecutive failures. It never retries beyond the
    window; regressions are handed to the rollback controller.

Probing never touches the active slot's serving path and never mutates
the slot it inspects. Verdicts, not errors, carry the health outcome;
errors are reserved for caller cancellation.
*/
package prober
