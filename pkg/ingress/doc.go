/*
Package ingress implements the external-facing HTTP server: it accepts
inbound connections, translates each request into the internal request
record, hands it to the dispatch pipeline, and writes back the worker's
response (or an appropriate gateway status) to the client.

# Request Flow

 1. Client connects to the ingress address (default 127.0.0.1:3000).
 2. Method, URI (path + raw query), headers, and body are copied into
    an internal request record.
 3. The record is handed to dispatch.Pipeline.Dispatch.
 4. On success, the worker's status/headers/body are written back
    unchanged. On a gateway error, the mapped HTTP status is written.
    On client cancellation, nothing further is written.

# Usage

	srv := ingress.NewServer(manifest.IngressAddr, pipeline)
	err := srv.Start(ctx) // blocks until ctx is cancelled

Start performs a graceful shutdown on context cancellation: it stops
accepting new connections and waits (bounded) for in-flight requests to
finish before returning.
*/
package ingress
