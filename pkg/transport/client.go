// Package transport implements the two interchangeable local transports
// (duplex IPC byte stream, loopback HTTP) behind one uniform Client
// interface. The dispatch pipeline never knows which transport a worker
// uses — it calls Client.Call and interprets the returned error.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

// DefaultTimeout bounds a single dispatch call end to end when the
// caller's context carries no deadline of its own; a deadline on the
// caller's context, earlier or later, is used instead.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a call exceeds its deadline.
var ErrTimeout = errors.New("transport: deadline exceeded")

// Client exchanges a single request/response pair with a worker over one
// local transport. Each call opens (and closes) its own connection;
// transports do not pool connections across requests.
type Client interface {
	Call(ctx context.Context, addr endpoint.Address, req *types.Request) (*types.Response, error)
}

// ForMode returns the Client implementation for a worker's mode.
func ForMode(mode types.Mode) Client {
	switch mode {
	case types.ModeHTTP:
		return &HTTPClient{}
	default:
		return &IPCClient{}
	}
}

func withDefaultDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, DefaultTimeout)
}
