package supervisor

import (
	"context"
	"net"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

func TestEnvAssignmentIPC(t *testing.T) {
	addr := endpoint.Address{Network: "unix", Value: "/tmp/x/svc_a.sock"}
	env := envAssignment(types.ModeIPC, addr)
	if len(env) != 1 || env[0] != "PIPE_ADDRESS=/tmp/x/svc_a.sock" {
		t.Errorf("env = %v", env)
	}
}

func TestEnvAssignmentHTTP(t *testing.T) {
	addr := endpoint.Address{Network: "tcp", Value: "127.0.0.1:9123"}
	env := envAssignment(types.ModeHTTP, addr)
	if len(env) != 1 || env[0] != "HTTP_ADDRESS=127.0.0.1:9123" {
		t.Errorf("env = %v", env)
	}
}

func TestWaitReadySucceedsOnceListening(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "ready.sock")
	addr := endpoint.Address{Network: "unix", Value: sockPath}

	time.AfterFunc(30*time.Millisecond, func() {
		ln, err := net.Listen("unix", sockPath)
		if err == nil {
			go func() {
				conn, _ := ln.Accept()
				if conn != nil {
					conn.Close()
				}
			}()
		}
	})

	exited := make(chan struct{})
	ok := waitReady(context.Background(), addr, exited)
	if !ok {
		t.Fatal("expected waitReady to succeed once the socket starts listening")
	}
}

func TestWaitReadyStopsOnExit(t *testing.T) {
	addr := endpoint.Address{Network: "unix", Value: filepath.Join(t.TempDir(), "never.sock")}
	exited := make(chan struct{})
	close(exited)

	ok := waitReady(context.Background(), addr, exited)
	if ok {
		t.Fatal("expected waitReady to fail immediately once the process has exited")
	}
}

func TestValidateRecordsRejectsDuplicateID(t *testing.T) {
	records := []*types.WorkerRecord{
		{ID: "svc_a", EndpointName: "svc_a", Mode: types.ModeIPC},
		{ID: "svc_a", EndpointName: "svc_b", Mode: types.ModeIPC},
	}
	if err := validateRecords(records); err == nil {
		t.Fatal("expected an error for duplicate worker id")
	}
}

func TestValidateRecordsRejectsDuplicateEndpointName(t *testing.T) {
	records := []*types.WorkerRecord{
		{ID: "svc_a", EndpointName: "shared", Mode: types.ModeIPC},
		{ID: "svc_b", EndpointName: "shared", Mode: types.ModeHTTP},
	}
	if err := validateRecords(records); err == nil {
		t.Fatal("expected an error for duplicate endpoint_name")
	}
}

func TestValidateRecordsRejectsHTTPPortCollision(t *testing.T) {
	// svc_2 and svc_6 are distinct names that derive the same HTTP port
	// under the xxhash-based mapping; verified offline against the real
	// hash, not chosen arbitrarily.
	records := []*types.WorkerRecord{
		{ID: "a", EndpointName: "svc_2", Mode: types.ModeHTTP},
		{ID: "b", EndpointName: "svc_6", Mode: types.ModeHTTP},
	}
	if endpoint.HTTPPort("svc_2") != endpoint.HTTPPort("svc_6") {
		t.Fatalf("test fixture assumption broken: svc_2 and svc_6 no longer collide (%d vs %d)",
			endpoint.HTTPPort("svc_2"), endpoint.HTTPPort("svc_6"))
	}
	if err := validateRecords(records); err == nil {
		t.Fatal("expected an error for a derived HTTP port collision")
	}
}

func TestValidateRecordsAcceptsDistinctRecords(t *testing.T) {
	records := []*types.WorkerRecord{
		{ID: "svc_a", EndpointName: "svc_a", Mode: types.ModeIPC},
		{ID: "svc_b", EndpointName: "svc_b", Mode: types.ModeHTTP},
	}
	if err := validateRecords(records); err != nil {
		t.Fatalf("validateRecords: %v", err)
	}
}

func TestSpawnRejectsInvalidRecordsBeforeSpawning(t *testing.T) {
	s := New(t.TempDir())
	records := []*types.WorkerRecord{
		{ID: "dup", Executable: "/bin/true", EndpointName: "svc_a", RoutePattern: "/a/*", Mode: types.ModeIPC},
		{ID: "dup", Executable: "/bin/true", EndpointName: "svc_b", RoutePattern: "/b/*", Mode: types.ModeIPC},
	}

	if err := s.Spawn(context.Background(), records); err == nil {
		t.Fatal("expected Spawn to reject duplicate worker ids before spawning anything")
	}

	if _, ok := s.Get("dup"); ok {
		t.Error("no handle should have been registered once validation failed")
	}
}

func TestSpawnOneMarksFailedWhenProcessExitsWithoutBinding(t *testing.T) {
	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no 'true' binary available in PATH")
	}

	s := New(t.TempDir())
	rec := &types.WorkerRecord{
		ID:           "svc_never_ready",
		Executable:   truePath,
		EndpointName: "svc_never_ready",
		RoutePattern: "/never/*",
		Mode:         types.ModeIPC,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	addr, err := endpoint.Resolve(rec, s.tmpDir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	h := NewHandle(rec, addr, types.Starting)
	s.Register(h)

	if err := s.spawnOne(ctx, h); err != nil {
		t.Fatalf("spawnOne: %v", err)
	}

	if h.State() != types.Failed {
		t.Errorf("state = %v, want Failed", h.State())
	}
}
