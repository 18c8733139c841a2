package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/localproxy/pkg/cache"
	"github.com/cuemby/localproxy/pkg/dispatch"
	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/ingress"
	"github.com/cuemby/localproxy/pkg/router"
	"github.com/cuemby/localproxy/pkg/supervisor"
	"github.com/cuemby/localproxy/pkg/types"
)

// countingIPCWorker listens on a real unix socket and answers every
// connection with a fixed 200 response, counting how many connections
// it has handled. It speaks the same JSON wire protocol the IPC
// transport client uses, so the full dispatch path exercises real
// encoding/decoding rather than a stand-in.
func countingIPCWorker(t *testing.T, sockPath string) *int32 {
	t.Helper()
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var hits int32
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&hits, 1)
			go func(c net.Conn) {
				defer c.Close()
				io.ReadAll(c)
				c.Write([]byte(`{"status":200,"headers":{"X-From":"worker"},"body":"aGVsbG8="}`))
			}(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return &hits
}

// buildPipeline wires a route table, cache, supervisor, and dispatch
// pipeline together the same way runProxy does, but with a handle
// registered directly against an in-process worker instead of a spawned
// process, so the test exercises the real transport and dispatch code
// without needing an external binary.
func buildPipeline(t *testing.T, rec *types.WorkerRecord, addr endpoint.Address, state types.WorkerState) *dispatch.Pipeline {
	t.Helper()
	tbl, err := router.Compile([]*types.WorkerRecord{rec})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c, err := cache.New(64)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	sup := supervisor.New(t.TempDir())
	sup.Register(supervisor.NewHandle(rec, addr, state))
	return dispatch.New(tbl, c, sup)
}

// TestScenarioCacheHitBypassesWorker drives two identical requests
// through the real ingress server and dispatch pipeline against a real
// IPC worker; the second request must be served from cache without a
// second connection to the worker.
func TestScenarioCacheHitBypassesWorker(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "svc_a.sock")
	hits := countingIPCWorker(t, sockPath)

	rec := &types.WorkerRecord{ID: "svc_a", RoutePattern: "/svc-a/*", EndpointName: "svc_a", Mode: types.ModeIPC}
	addr := endpoint.Address{Network: "unix", Value: sockPath}
	p := buildPipeline(t, rec, addr, types.Ready)
	srv := ingress.NewServer("127.0.0.1:0", p)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/svc-a/widgets", nil)
		w := httptest.NewRecorder()
		serveViaServer(srv, w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
		if w.Header().Get("X-From") != "worker" {
			t.Errorf("request %d: missing worker header", i)
		}
	}

	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("worker hit count = %d, want 1 (second request should be served from cache)", got)
	}
}

// TestScenarioWorkerNotReadyMaps502 drives a request whose route exists
// but whose worker handle has not reached Ready, and checks the ingress
// server answers 502 rather than hanging or leaking a raw error.
func TestScenarioWorkerNotReadyMaps502(t *testing.T) {
	rec := &types.WorkerRecord{ID: "svc_b", RoutePattern: "/svc-b/*", EndpointName: "svc_b", Mode: types.ModeIPC}
	addr := endpoint.Address{Network: "unix", Value: filepath.Join(t.TempDir(), "svc_b.sock")}
	p := buildPipeline(t, rec, addr, types.Failed)
	srv := ingress.NewServer("127.0.0.1:0", p)

	r := httptest.NewRequest(http.MethodGet, "/svc-b/anything", nil)
	w := httptest.NewRecorder()
	serveViaServer(srv, w, r)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

// TestScenarioRouteMissMaps404 checks a request with no matching route
// is answered 404 by the real ingress handler.
func TestScenarioRouteMissMaps404(t *testing.T) {
	rec := &types.WorkerRecord{ID: "svc_c", RoutePattern: "/svc-c/*", EndpointName: "svc_c", Mode: types.ModeIPC}
	addr := endpoint.Address{Network: "unix", Value: filepath.Join(t.TempDir(), "svc_c.sock")}
	p := buildPipeline(t, rec, addr, types.Ready)
	srv := ingress.NewServer("127.0.0.1:0", p)

	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	w := httptest.NewRecorder()
	serveViaServer(srv, w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// TestScenarioCrashedWorkerNeverRestarted spawns a real process that
// exits immediately, confirms the supervisor marks it Failed rather than
// respawning it, and confirms a dispatch through that route maps to 502.
func TestScenarioCrashedWorkerNeverRestarted(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no 'true' binary available in PATH")
	}

	rec := &types.WorkerRecord{
		ID:           "svc_crash",
		Executable:   truePath,
		EndpointName: "svc_crash",
		RoutePattern: "/crash/*",
		Mode:         types.ModeIPC,
	}

	tmpDir := t.TempDir()
	sup := supervisor.New(tmpDir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Spawn(ctx, []*types.WorkerRecord{rec}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	h, ok := sup.Get(rec.ID)
	if !ok {
		t.Fatal("handle not registered")
	}
	if h.State() != types.Failed {
		t.Fatalf("state = %v, want Failed", h.State())
	}

	tbl, err := router.Compile([]*types.WorkerRecord{rec})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c, err := cache.New(8)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	p := dispatch.New(tbl, c, sup)
	srv := ingress.NewServer("127.0.0.1:0", p)

	r := httptest.NewRequest(http.MethodGet, "/crash/x", nil)
	w := httptest.NewRecorder()
	serveViaServer(srv, w, r)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	// A second Spawn call is never made for a Failed worker; nothing in
	// this package restarts it automatically. Confirm the state is
	// unchanged after the dispatch above.
	if h.State() != types.Failed {
		t.Errorf("state changed to %v after dispatch, want it to stay Failed", h.State())
	}
}

// TestScenarioShutdownCleansUpProcessAndSocket spawns a real process
// over IPC, shuts the supervisor down, and checks both the handle
// reaches Stopped and its socket file has been removed.
func TestScenarioShutdownCleansUpProcessAndSocket(t *testing.T) {
	sleepPath, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("no 'sleep' binary available in PATH")
	}

	rec := &types.WorkerRecord{
		ID:           "svc_long",
		Executable:   sleepPath,
		Args:         []string{"30"},
		EndpointName: "svc_long",
		RoutePattern: "/long/*",
		Mode:         types.ModeIPC,
	}

	tmpDir := t.TempDir()
	sup := supervisor.New(tmpDir)

	spawnCtx, cancelSpawn := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelSpawn()
	// sleep never binds the socket, so Spawn gives up when spawnCtx
	// expires (after 2s, before the 5s readiness budget) and marks the
	// handle Failed; the process, started under spawnCtx, is killed then
	// too. That is fine here: this test only checks that Shutdown leaves
	// the handle Stopped and no socket file behind.
	_ = sup.Spawn(spawnCtx, []*types.WorkerRecord{rec})

	h, ok := sup.Get(rec.ID)
	if !ok {
		t.Fatal("handle not registered")
	}
	sockPath := h.Addr.Value

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if h.State() != types.Stopped {
		t.Errorf("state = %v, want Stopped", h.State())
	}
	if _, err := os.Stat(sockPath); !os.IsNotExist(err) {
		t.Errorf("socket file %s still present after Shutdown", sockPath)
	}
}

// serveViaServer invokes the ingress server's handler directly, so this
// file need not bind a real TCP listener per scenario.
func serveViaServer(srv *ingress.Server, w http.ResponseWriter, r *http.Request) {
	srv.Handler().ServeHTTP(w, r)
}
