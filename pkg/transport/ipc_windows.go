//go:build windows

package transport

import (
	"context"
	"errors"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

// IPCClient is not implemented for Windows named pipes in this build.
// Endpoint addressing (pkg/endpoint) already derives the \\.\pipe\ name
// for Windows; only the dial/write/read half of the transport is
// unimplemented here.
type IPCClient struct{}

var errWindowsIPCUnsupported = errors.New("transport: IPC client not implemented on windows")

func (c *IPCClient) Call(ctx context.Context, addr endpoint.Address, req *types.Request) (*types.Response, error) {
	return nil, errWindowsIPCUnsupported
}
