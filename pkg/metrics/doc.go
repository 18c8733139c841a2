/*
Package metrics provides Prometheus metrics collection and exposition for
localproxy, plus a small aggregated health/readiness/liveness surface used
by the CLI entry point's metrics listener.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Categories               │          │
	│  │                                              │          │
	│  │  Dispatch: outcome counts, latency histogram │          │
	│  │  Worker: per-worker lifecycle state gauge    │          │
	│  │  Cache: current entry count                 │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

Components register their health with RegisterComponent/UpdateComponent;
HealthHandler, ReadyHandler, and LivenessHandler expose the aggregate over
/health, /ready, and /live on the metrics listener, alongside Handler()
which exposes the Prometheus registry on /metrics.

# Usage

	metrics.DispatchTotal.WithLabelValues("cache_hit").Inc()

	timer := metrics.NewTimer()
	resp, err := client.Call(ctx, addr, req)
	timer.ObserveDurationVec(metrics.DispatchDuration, outcome)

	metrics.RegisterComponent("ingress", true, "")
	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
	http.Handle("/ready", metrics.ReadyHandler())
	http.Handle("/live", metrics.LivenessHandler())
*/
package metrics
