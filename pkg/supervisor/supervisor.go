// Package supervisor spawns, readiness-probes, and terminates the child
// worker processes a manifest describes. Spawning is concurrent across
// workers; ordering between workers is unobserved and unconstrained.
//
// Grounded on the control-flow idioms of the process-lifecycle code this
// system's worker fleet descends from (RWMutex-guarded handle table,
// stopCh-signalled shutdown, ticker-driven polling) and on a dial-based
// readiness loop adapted from a local-process-runner's backoff-free
// wait-for-port routine, here extended with exponential backoff and a
// bounded total budget per spec's requirement that readiness waits never
// hang indefinitely.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/health"
	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/types"
)

// Readiness polling bounds: exponential backoff from an initial interval
// up to a cap, within a total budget. Exact numbers are implementation
// freedom; what matters is that the wait is always bounded.
const (
	readinessInitialBackoff = 10 * time.Millisecond
	readinessMaxBackoff     = 500 * time.Millisecond
	readinessBudget         = 5 * time.Second

	// terminationGrace is how long Shutdown waits after SIGTERM before
	// force-killing a worker process.
	terminationGrace = 5 * time.Second
)

// Supervisor owns the set of running-worker handles. The handle table is
// written only during Spawn/Shutdown; during steady state it is
// read-only, and each handle's state field is published under its own
// lock, so concurrent dispatches never need to synchronize with the
// supervisor beyond a map read.
type Supervisor struct {
	tmpDir string

	mu      sync.RWMutex
	handles map[string]*Handle // keyed by worker record ID
}

// New creates a Supervisor that places IPC socket files under tmpDir.
func New(tmpDir string) *Supervisor {
	return &Supervisor{
		tmpDir:  tmpDir,
		handles: make(map[string]*Handle),
	}
}

// Register adds or replaces a handle in the supervisor's table. It is
// exported so a handle table can be assembled directly (e.g. in tests
// exercising the dispatch pipeline without spawning real processes);
// Spawn itself calls it when it starts a new worker.
func (s *Supervisor) Register(h *Handle) {
	s.mu.Lock()
	s.handles[h.Record.ID] = h
	s.mu.Unlock()
}

// Get returns the handle for a worker by its route-resolved record, or
// false if the supervisor never spawned it.
func (s *Supervisor) Get(id string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[id]
	return h, ok
}

// Spawn starts every worker record concurrently and blocks until each
// has either reached Ready or exhausted its readiness budget and been
// marked Failed. It returns an error only for conditions that must abort
// the whole startup (e.g. an address already bound by an unrelated
// process); a single worker never becoming ready is not such an error —
// its route stays configured and fails fast at dispatch time instead.
func (s *Supervisor) Spawn(ctx context.Context, records []*types.WorkerRecord) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		return fmt.Errorf("supervisor: create socket dir: %w", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(records))

	for _, rec := range records {
		rec := rec
		addr, err := endpoint.Resolve(rec, s.tmpDir)
		if err != nil {
			return fmt.Errorf("supervisor: %w", err)
		}

		h := NewHandle(rec, addr, types.Starting)
		s.Register(h)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.spawnOne(ctx, h); err != nil {
				errCh <- err
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		return err
	}
	return nil
}

// validateRecords enforces the cross-record invariants the loader
// cannot check on its own: unique id, unique endpoint_name, and no two
// distinct endpoint_names deriving the same HTTP-mode port. A duplicate
// endpoint_name is rejected whatever the two records' modes are, before
// the port-collision check runs.
func validateRecords(records []*types.WorkerRecord) error {
	ids := make(map[string]struct{}, len(records))
	names := make(map[string]struct{}, len(records))
	httpPorts := make(map[int]string, len(records))

	for _, rec := range records {
		if _, dup := ids[rec.ID]; dup {
			return fmt.Errorf("supervisor: duplicate worker id %q", rec.ID)
		}
		ids[rec.ID] = struct{}{}

		if _, dup := names[rec.EndpointName]; dup {
			return fmt.Errorf("supervisor: duplicate endpoint_name %q", rec.EndpointName)
		}
		names[rec.EndpointName] = struct{}{}

		if rec.Mode != types.ModeHTTP {
			continue
		}
		port := endpoint.HTTPPort(rec.EndpointName)
		if other, collide := httpPorts[port]; collide {
			return fmt.Errorf("supervisor: endpoint_name %q and %q both derive HTTP port %d", other, rec.EndpointName, port)
		}
		httpPorts[port] = rec.EndpointName
	}
	return nil
}

func (s *Supervisor) spawnOne(ctx context.Context, h *Handle) error {
	workerLog := log.WithWorkerID(h.Record.ID)

	// An address that already accepts connections belongs to some other
	// process; spawning this worker onto it is a startup failure.
	if health.NewDialChecker(h.Addr.Network, h.Addr.Value).Check(ctx).Healthy {
		h.setState(types.Failed)
		metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Failed))
		return fmt.Errorf("supervisor: worker %q: address %s is already in use", h.Record.ID, h.Addr.String())
	}

	if h.Addr.Network == "unix" {
		// A stale socket file from a previous run would make the bind
		// (performed by the worker process itself) fail; clear it first.
		_ = os.Remove(h.Addr.Value)
	}

	cmd := exec.CommandContext(ctx, h.Record.Executable, h.Record.Args...)
	cmd.Dir = h.Record.WorkingDir
	cmd.Env = append(os.Environ(), envAssignment(h.Record.Mode, h.Addr)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		h.setState(types.Failed)
		metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Failed))
		return fmt.Errorf("supervisor: worker %q failed to start: %w", h.Record.ID, err)
	}
	h.cmd = cmd

	exited := make(chan struct{})
	h.exited = exited
	go func() {
		cmd.Wait()
		close(exited)
	}()

	ready := waitReady(ctx, h.Addr, exited)
	if !ready {
		h.setState(types.Failed)
		metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Failed))
		workerLog.Warn().Str("route", h.Record.RoutePattern).Msg("worker never became ready")
		return nil
	}

	h.setState(types.Ready)
	metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Ready))
	workerLog.Info().Str("addr", h.Addr.String()).Msg("worker ready")

	// Watch for an unexpected exit after readiness: a worker that was
	// Ready and then exits has crashed, and is not restarted.
	go func() {
		<-exited
		if h.State() == types.Ready {
			h.setState(types.Failed)
			metrics.WorkerState.WithLabelValues(h.Record.ID).Set(float64(types.Failed))
			workerLog.Warn().Msg("worker exited unexpectedly")
		}
	}()

	return nil
}

// waitReady polls addr with exponential backoff until a connection
// succeeds, the process exits, the budget is exhausted, or ctx is done.
func waitReady(ctx context.Context, addr endpoint.Address, exited <-chan struct{}) bool {
	deadline := time.Now().Add(readinessBudget)
	backoff := readinessInitialBackoff
	checker := health.NewDialChecker(addr.Network, addr.Value)

	for {
		probeCtx, cancel := context.WithTimeout(ctx, backoff)
		result := checker.Check(probeCtx)
		cancel()
		if result.Healthy {
			return true
		}

		if time.Now().After(deadline) {
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-exited:
			return false
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > readinessMaxBackoff {
			backoff = readinessMaxBackoff
		}
	}
}

func envAssignment(mode types.Mode, addr endpoint.Address) []string {
	if mode == types.ModeHTTP {
		return []string{endpoint.EnvHTTPAddress + "=" + addr.Value}
	}
	return []string{endpoint.EnvPipeAddress + "=" + addr.Value}
}

// Shutdown terminates every spawned worker: SIGTERM, wait up to a grace
// period, then force-kill. Idempotent — calling Shutdown more than once,
// or on a handle that already exited, is not an error.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	handles := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		h := h
		wg.Add(1)
		go func() {
			defer wg.Done()
			terminate(h)
		}()
	}
	wg.Wait()
	return nil
}
