//go:build !windows

package supervisor

import (
	"os"
	"syscall"
	"time"

	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/types"
)

// terminate sends SIGTERM, waits up to terminationGrace, then SIGKILLs.
// The IPC socket file (if any) is unlinked once the process is gone.
//
// It never calls cmd.Wait itself: spawnOne's own goroutine already owns
// that call and closes h.exited when it returns, and a second concurrent
// Wait on the same *exec.Cmd races on ProcessState and the underlying
// wait4. terminate only signals the process and waits on h.exited.
func terminate(h *Handle) {
	if h.cmd == nil || h.cmd.Process == nil {
		h.setState(types.Stopped)
		cleanupSocket(h)
		return
	}

	workerLog := log.WithWorkerID(h.Record.ID)

	_ = h.cmd.Process.Signal(syscall.SIGTERM)

	select {
	case <-h.exited:
	case <-time.After(terminationGrace):
		workerLog.Warn().Msg("worker did not exit within grace period, killing")
		_ = h.cmd.Process.Signal(syscall.SIGKILL)
		<-h.exited
	}

	h.setState(types.Stopped)
	metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Stopped))
	cleanupSocket(h)
}

func cleanupSocket(h *Handle) {
	if h.Addr.Network != "unix" {
		return
	}
	_ = os.Remove(h.Addr.Value)
}
