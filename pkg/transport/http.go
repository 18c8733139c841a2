package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cuemby/localproxy/pkg/endpoint"
	"github.com/cuemby/localproxy/pkg/types"
)

// HTTPClient dispatches to a worker over loopback HTTP: POST / with the
// request JSON as body, Content-Type application/json. The outer HTTP
// status is ignored; the response JSON's own status field is
// authoritative per the wire protocol.
type HTTPClient struct {
	// Transport overrides the underlying http.RoundTripper, for testing.
	Transport http.RoundTripper
}

func (c *HTTPClient) Call(ctx context.Context, addr endpoint.Address, req *types.Request) (*types.Response, error) {
	ctx, cancel := withDefaultDeadline(ctx)
	defer cancel()

	body, err := encodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("transport: encode request: %w", err)
	}

	url := "http://" + addr.Value + "/"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// One connection per call: close it after the response instead of
	// keeping it idle for reuse by a later call.
	httpReq.Close = true

	client := &http.Client{Transport: c.Transport}
	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: connect failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("transport: read response: %w", err)
	}

	return decodeResponse(data)
}
