/*
Package log provides structured logging for localproxy using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog.Logger instance                  │          │
	│  │  - initialized via log.Init()               │          │
	│  │  - safe for concurrent use                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout or custom writer          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatch")                │          │
	│  │  - WithWorkerID("svc_a")                    │          │
	│  │  - WithRoute("/svc/*")                      │          │
	│  └──────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	log.Info("ingress listening")

	supervisorLog := log.WithComponent("supervisor")
	supervisorLog.Info().Str("worker_id", rec.ID).Msg("worker ready")

Console output during development:

	2026-01-01T10:30:01Z INF worker ready component=supervisor worker_id=svc_a

JSON output in production:

	{"level":"info","component":"supervisor","worker_id":"svc_a","time":"2026-01-01T10:30:01Z","message":"worker ready"}

log.Init must be called once, before any other package logs; it is typically
invoked from cobra.OnInitialize in the CLI entry point.
*/
package log
