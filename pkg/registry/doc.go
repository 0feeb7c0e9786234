/*
Package registry tracks the two deployment slots for an application and
enforces the single-active invariant.

The registry is the only component allowed to mutate a slot's activity
flag. The traffic switch goes through SetActive, which rejects no-op
switches and switches to an unhealthy slot with ErrInvalidTransition.
All mutations are serialized behind one mutex, so concurrent
orchestration runs cannot race on the active flag.

State is persisted through the storage layer on every mutation and
reloaded at startup, so a controller restart resumes with the slots
exactly where it left them. Missing slots are bootstrapped with blue
active and green standby.
*/
package registry
