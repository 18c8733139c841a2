// Package ingress implements the external HTTP/1.1 server: it accepts
// inbound connections, translates each request into the internal
// request record, hands it to the dispatch pipeline, and writes the
// resulting response (or an appropriate gateway error) back to the
// client.
package ingress

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/localproxy/pkg/dispatch"
	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/types"
)

// Server is the ingress HTTP server fronting the dispatch pipeline.
type Server struct {
	Addr     string
	Pipeline *dispatch.Pipeline

	httpServer *http.Server
}

// NewServer creates an ingress Server bound to addr.
func NewServer(addr string, pipeline *dispatch.Pipeline) *Server {
	return &Server{Addr: addr, Pipeline: pipeline}
}

// Handler returns the http.Handler Start serves, so a caller (or a test
// wiring the pipeline end to end) can drive requests through it without
// binding a real TCP listener.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start begins serving and blocks until ctx is cancelled, at which point
// it gracefully shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.Addr,
		Handler:      http.HandlerFunc(s.handleRequest),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("ingress: listen on %s: %w", s.Addr, err)
	}

	log.Info(fmt.Sprintf("ingress listening on %s", s.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("ingress: serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	req, err := toInternalRequest(r)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := s.Pipeline.Dispatch(r.Context(), req)
	if err != nil {
		if status, ok := dispatch.StatusOf(err); ok {
			log.Warn(fmt.Sprintf("dispatch %s %s: %v", req.Method, req.URI, err))
			http.Error(w, http.StatusText(status), status)
			return
		}
		// Not a GatewayError: the client went away mid-dispatch. Don't
		// write anything further.
		return
	}

	writeResponse(w, resp)
}

func toInternalRequest(r *http.Request) (*types.Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("ingress: read body: %w", err)
	}

	var headers []types.Header
	for name, values := range r.Header {
		for _, v := range values {
			headers = append(headers, types.Header{Name: name, Value: v})
		}
	}

	// RequestURI() is the raw, not-URL-decoded request target: the
	// internal wire protocol carries the path exactly as the client sent
	// it, not the percent-decoded form net/http exposes via r.URL.Path.
	uri := r.URL.RequestURI()

	return &types.Request{
		Method:  r.Method,
		URI:     uri,
		Headers: headers,
		Body:    body,
	}, nil
}

func writeResponse(w http.ResponseWriter, resp *types.Response) {
	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		log.Debug(fmt.Sprintf("ingress: write response: %v", err))
	}
}
