package prober

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker verifies the slot endpoint accepts TCP connections
type TCPChecker struct {
	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP endpoint checker
func NewTCPChecker() *TCPChecker {
	return &TCPChecker{
		Timeout: 5 * time.Second,
	}
}

// Check performs one connection attempt against the slot endpoint
func (t *TCPChecker) Check(ctx context.Context, endpoint string) Result {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: t.Timeout,
	}

	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("TCP connection to %s successful", endpoint),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}
