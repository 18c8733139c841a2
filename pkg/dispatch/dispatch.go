// Package dispatch implements the per-request dispatch pipeline: cache
// probe, route resolution, worker lookup, transport call, and cache
// insert. The pipeline is transport-blind — it calls transport.Client
// through the uniform interface and never branches on a worker's mode.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cuemby/localproxy/pkg/cache"
	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/router"
	"github.com/cuemby/localproxy/pkg/supervisor"
	"github.com/cuemby/localproxy/pkg/transport"
	"github.com/cuemby/localproxy/pkg/types"
)

// GatewayError carries the HTTP status the ingress server should answer
// the client with, alongside the underlying cause for logging.
type GatewayError struct {
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("dispatch: %s", e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Pipeline wires the route table, response cache, and worker supervisor
// together. It holds no per-request state: everything it needs for a
// given request is passed in or read from its (read-only at this layer)
// collaborators.
type Pipeline struct {
	Routes     *router.Table
	Cache      *cache.Cache
	Supervisor *supervisor.Supervisor

	// ClientFor resolves the transport client for a worker's mode.
	// Defaults to transport.ForMode; overridable in tests.
	ClientFor func(types.Mode) transport.Client
}

// New creates a dispatch Pipeline.
func New(routes *router.Table, c *cache.Cache, s *supervisor.Supervisor) *Pipeline {
	return &Pipeline{Routes: routes, Cache: c, Supervisor: s, ClientFor: transport.ForMode}
}

// Dispatch runs one request through the pipeline. A nil error with a nil
// response never happens; callers should translate a non-nil error into
// an HTTP response via StatusOf.
func (p *Pipeline) Dispatch(ctx context.Context, req *types.Request) (*types.Response, error) {
	timer := metrics.NewTimer()
	path := router.PathOnly(req.URI)
	key := cache.Key{Method: req.Method, Path: path}

	if resp, ok := p.Cache.Get(key); ok {
		p.record(timer, "cache_hit")
		return resp, nil
	}

	rec, ok := p.Routes.Resolve(path)
	if !ok {
		p.record(timer, "route_miss")
		return nil, &GatewayError{Status: http.StatusNotFound, Err: fmt.Errorf("no route matches %s %s", req.Method, path)}
	}

	handle, ok := p.Supervisor.Get(rec.ID)
	if !ok || handle.State() != types.Ready {
		p.record(timer, "worker_unready")
		return nil, &GatewayError{Status: http.StatusBadGateway, Err: fmt.Errorf("worker %q is not ready", rec.ID)}
	}

	client := p.ClientFor(rec.Mode)
	resp, err := client.Call(ctx, handle.Addr, req)
	if err != nil {
		return nil, p.classifyTransportErr(timer, ctx, err)
	}

	p.Cache.Insert(key, resp)
	p.record(timer, "ok")
	return resp, nil
}

func (p *Pipeline) classifyTransportErr(timer *metrics.Timer, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		// Client disconnected mid-dispatch: abort without counting it as
		// a gateway failure and without caching anything.
		p.record(timer, "cancelled")
		return ctx.Err()
	}
	if errors.Is(err, transport.ErrTimeout) {
		p.record(timer, "timeout")
		return &GatewayError{Status: http.StatusGatewayTimeout, Err: err}
	}
	p.record(timer, "transport_error")
	log.Error(fmt.Sprintf("transport error: %v", err))
	return &GatewayError{Status: http.StatusBadGateway, Err: err}
}

func (p *Pipeline) record(timer *metrics.Timer, outcome string) {
	metrics.DispatchTotal.WithLabelValues(outcome).Inc()
	timer.ObserveDurationVec(metrics.DispatchDuration, outcome)
}

// StatusOf maps a Dispatch error to the HTTP status the ingress server
// should reply with. Errors that are not a *GatewayError (e.g. context
// cancellation) have no response at all — the caller should simply stop
// writing, per the client-cancellation contract.
func StatusOf(err error) (status int, ok bool) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr.Status, true
	}
	return 0, false
}
