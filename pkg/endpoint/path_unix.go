//go:build !windows

package endpoint

import "path/filepath"

// socketPath returns the AF_UNIX stream socket path for an endpoint_name:
// <tmpDir>/<endpoint_name>.sock.
func socketPath(endpointName, tmpDir string) string {
	return filepath.Join(tmpDir, endpointName+".sock")
}
