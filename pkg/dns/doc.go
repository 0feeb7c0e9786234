// Package dns serves slot discovery records over DNS.
//
// Clients inside the cluster can resolve the live endpoint of an
// application without going through the HTTP API:
//
//	<app>.<domain>          A/SRV of the slot currently receiving traffic
//	blue.<app>.<domain>     A/SRV of the blue slot
//	green.<app>.<domain>    A/SRV of the green slot
//
// Answers are built from persisted routes and slots, so they stay
// correct across controller restarts. TTLs are short because the
// active slot changes at every traffic switch.
package dns
