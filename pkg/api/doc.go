/*
Package api exposes the control API over HTTP/JSON.

Endpoints:

	POST /v1/deployments   trigger a rollout (blocks until terminal)
	GET  /v1/slots         current slot states
	GET  /v1/rollouts      rollout history, oldest first
	GET  /v1/events        rollout lifecycle events (SSE)
	GET  /health           process liveness
	GET  /ready            storage and registry readiness
	GET  /metrics          Prometheus metrics

A deployment request returns 200 when the rollout commits, 409 when
another rollout is in flight or the target is the active slot, and 502
with the terminal record when the rollout failed or rolled back.
*/
package api
