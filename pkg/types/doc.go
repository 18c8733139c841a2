/*
Package types defines the data model shared across the dispatch engine.

# Core Types

Worker description and lifecycle:

  - WorkerRecord: one entry from the manifest (executable, args, route
    pattern, endpoint name, and transport Mode). Immutable after startup.
  - Mode: ModeIPC or ModeHTTP, selects the transport a worker is reached
    over.
  - WorkerState: Starting, Ready, Stopped, or Failed.

Transport-agnostic request/response records:

  - Request: method, URI, ordered Headers, and Body, built once per
    inbound request and handed unchanged to whichever transport.Client
    serves the matched route.
  - Header: a single ordered (name, value) pair, so duplicate header
    names survive the wire protocol.
  - Response: status, header map, and body, as returned by a worker.

# Usage

	rec := &types.WorkerRecord{
		ID:           "svc_a",
		Executable:   "/usr/local/bin/svc-a",
		RoutePattern: "/svc-a/*",
		EndpointName: "svc_a",
		Mode:         types.ModeIPC,
	}

	req := &types.Request{
		Method:  "GET",
		URI:     "/svc-a/widgets?limit=10",
		Headers: []types.Header{{Name: "Accept", Value: "application/json"}},
	}
*/
package types
