package prober

import (
	"context"
	"time"
)

// CheckType represents the type of endpoint check
type CheckType string

const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
)

// Result represents the outcome of a single check attempt
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the endpoint-checking transport the prober drives.
// Implementations must be read-only against the target: a probe never
// mutates the slot it inspects.
type Checker interface {
	// Check performs one attempt against the endpoint
	Check(ctx context.Context, endpoint string) Result

	// Type returns the type of check
	Type() CheckType
}
