package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialChecker performs connectivity health checks over an arbitrary
// net.Dial network (e.g. "tcp" for loopback HTTP endpoints, "unix" for
// IPC socket endpoints).
type DialChecker struct {
	// Network is the dial network, e.g. "tcp" or "unix".
	Network string

	// Address is the address to connect to (host:port, or a socket path).
	Address string

	// Timeout is the connection timeout (default: 5 seconds).
	Timeout time.Duration
}

// NewDialChecker creates a new dial-based health checker.
func NewDialChecker(network, address string) *DialChecker {
	return &DialChecker{
		Network: network,
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// NewTCPChecker creates a new TCP health checker.
func NewTCPChecker(address string) *DialChecker {
	return NewDialChecker("tcp", address)
}

// Check performs the dial-based health check.
func (d *DialChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{
		Timeout: d.Timeout,
	}

	conn, err := dialer.DialContext(ctx, d.Network, d.Address)
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
		Message:   fmt.Sprintf("%s connection to %s successful", d.Network, d.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the health check type.
func (d *DialChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout.
func (d *DialChecker) WithTimeout(timeout time.Duration) *DialChecker {
	d.Timeout = timeout
	return d
}
