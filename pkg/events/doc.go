/*
Package events is an in-process broker for rollout lifecycle events.

The orchestrator publishes one event per state transition plus a
terminal event per run; the API streams them to watchers. Delivery is
best effort: a subscriber that stops draining its channel loses events
rather than blocking the publisher.
*/
package events
