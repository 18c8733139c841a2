package supervisor

import (
	"os/exec"
	"sync"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

// Handle is the running-worker handle: an immutable reference to the
// worker record plus the resolved endpoint address, a process handle,
// and the mutable lifecycle state published atomically under mu.
type Handle struct {
	Record *types.WorkerRecord
	Addr   endpoint.Address

	cmd *exec.Cmd

	// exited is closed exactly once, by the single goroutine that calls
	// cmd.Wait(), when the worker process has exited. terminate selects
	// on it instead of calling Wait a second time, since calling Wait
	// concurrently from two goroutines races on the same *exec.Cmd.
	exited <-chan struct{}

	mu    sync.RWMutex
	state types.WorkerState
}

// NewHandle constructs a Handle in a given state without spawning a
// process. Used by the supervisor's own startup path before a spawn
// completes, and by callers (including tests) that need to wire a
// dispatch Pipeline against a handle table without a real child process.
func NewHandle(rec *types.WorkerRecord, addr endpoint.Address, state types.WorkerState) *Handle {
	return &Handle{Record: rec, Addr: addr, state: state}
}

// State returns the handle's current lifecycle state.
func (h *Handle) State() types.WorkerState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

func (h *Handle) setState(s types.WorkerState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}
