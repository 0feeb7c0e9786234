/*
Package gateway implements the local traffic backend: an HTTP reverse
proxy whose upstream for each application is the currently active slot.

The switcher drives it through SetTarget, which replaces the upstream
atomically. Requests already in flight complete against the slot they
started on; new requests land on the new slot. Restore realigns the
proxy with the persisted traffic route after a restart.

For clusters the Kubernetes backend replaces this package; the gateway
exists for single-host setups and local development.
*/
package gateway
