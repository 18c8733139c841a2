// Package endpoint derives the local address a worker is reached at from
// its endpoint_name and mode. Addresses are never configured directly by
// a worker record: they are computed. An HTTP-mode endpoint_name always
// resolves to the same loopback port, on any run, on any platform; an
// IPC-mode address is built from endpoint_name and, on POSIX, the socket
// directory the caller passes in.
package endpoint

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cuemby/localproxy/pkg/types"
)

const (
	httpPortBase  = 9000
	httpPortRange = 1000

	// EnvPipeAddress is the environment variable handed to an IPC-mode
	// worker carrying its resolved socket/pipe address.
	EnvPipeAddress = "PIPE_ADDRESS"

	// EnvHTTPAddress is the environment variable handed to an HTTP-mode
	// worker carrying its resolved loopback address.
	EnvHTTPAddress = "HTTP_ADDRESS"
)

// Address is a resolved, dialable local address plus the network it
// should be dialed on ("unix" or "tcp").
type Address struct {
	Network string
	Value   string
}

// String renders the address the way it is handed to a dialer, e.g.
// "unix:/tmp/localproxy/svc_a.sock" or "tcp:127.0.0.1:9384".
func (a Address) String() string {
	return a.Network + ":" + a.Value
}

// Resolve computes the address for a worker record's endpoint_name and
// mode. tmpDir is the base directory used for IPC socket paths.
func Resolve(rec *types.WorkerRecord, tmpDir string) (Address, error) {
	switch rec.Mode {
	case types.ModeIPC, "":
		return resolveIPC(rec.EndpointName, tmpDir), nil
	case types.ModeHTTP:
		return resolveHTTP(rec.EndpointName), nil
	default:
		return Address{}, fmt.Errorf("worker %q: unknown mode %q", rec.ID, rec.Mode)
	}
}

// HTTPPort returns the deterministic TCP port an HTTP-mode endpoint_name
// resolves to. The hash is xxhash64, chosen for speed and stability: it
// is not cryptographic, but its output for a fixed input is identical
// across processes, platforms, and Go versions, which is the only
// property this mapping needs.
func HTTPPort(endpointName string) int {
	return httpPortBase + int(xxhash.Sum64String(endpointName)%httpPortRange)
}

func resolveHTTP(endpointName string) Address {
	return Address{
		Network: "tcp",
		Value:   fmt.Sprintf("127.0.0.1:%d", HTTPPort(endpointName)),
	}
}

func resolveIPC(endpointName, tmpDir string) Address {
	return Address{
		Network: "unix",
		Value:   socketPath(endpointName, tmpDir),
	}
}
