/*
Package route moves live traffic between slots.

The Switcher performs the route update and the registry's SetActive as
one logical operation. The routing Backend is flipped first; if the
registry then rejects the transition, the backend is reverted before
the error is returned. A successful SwitchTo therefore always leaves
the route and the registry agreeing on the active slot. The one state
this system must never leave unresolved is a half-applied switch.

Backend implementations live elsewhere: the kube package patches a
Service selector, the gateway package flips a local reverse proxy.
Anything that can atomically repoint a stable identity at a slot
endpoint conforms.
*/
package route
