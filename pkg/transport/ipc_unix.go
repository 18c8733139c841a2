//go:build !windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

// IPCClient dispatches to a worker over a duplex AF_UNIX stream socket:
// dial, write the request JSON, half-close the write side to signal
// end-of-request, read to EOF, close. One connection per call.
type IPCClient struct{}

func (c *IPCClient) Call(ctx context.Context, addr endpoint.Address, req *types.Request) (*types.Response, error) {
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", addr.Value)
	if err != nil {
		return nil, fmt.Errorf("transport: connect failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	body, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}

	if _, err := conn.Write(body); err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: write failed: %w", err)
	}

	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return nil, fmt.Errorf("transport: half-close failed: %w", err)
		}
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: read failed: %w", err)
	}

	return decodeResponse(data)
}
