//go:build windows

package supervisor

import (
	"time"

	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/types"
)

// terminate sends no graceful signal, since Windows has no SIGTERM
// equivalent that os/exec can portably deliver: it waits up to
// terminationGrace for the worker to exit on its own, then kills it.
//
// It never calls cmd.Wait itself: spawnOne's own goroutine already owns
// that call and closes h.exited when it returns, and a second concurrent
// Wait on the same *exec.Cmd races on ProcessState. terminate only
// signals the process and waits on h.exited.
func terminate(h *Handle) {
	if h.cmd == nil || h.cmd.Process == nil {
		h.setState(types.Stopped)
		return
	}

	workerLog := log.WithWorkerID(h.Record.ID)

	select {
	case <-h.exited:
	case <-time.After(terminationGrace):
		workerLog.Warn().Msg("worker did not exit within grace period, killing")
		_ = h.cmd.Process.Kill()
		<-h.exited
	}

	h.setState(types.Stopped)
	metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Stopped))
}
