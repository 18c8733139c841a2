package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cuemby/localproxy/pkg/types"
)

// wireRequest is the JSON shape sent to a worker over either transport.
// Headers are an ordered list of pairs so duplicate header names survive
// the round trip; the body is base64-encoded opaque bytes.
type wireRequest struct {
	Method  string     `json:"method"`
	URI     string     `json:"uri"`
	Headers [][2]string `json:"headers"`
	Body    string     `json:"body"`
}

// wireResponse is the JSON shape a worker replies with. The outer
// transport status (for the HTTP transport) is ignored; this Status
// field is authoritative.
type wireResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func encodeRequest(req *types.Request) ([]byte, error) {
	wr := wireRequest{
		Method:  req.Method,
		URI:     req.URI,
		Headers: make([][2]string, 0, len(req.Headers)),
		Body:    base64.StdEncoding.EncodeToString(req.Body),
	}
	for _, h := range req.Headers {
		wr.Headers = append(wr.Headers, [2]string{h.Name, h.Value})
	}
	return json.Marshal(wr)
}

func decodeResponse(data []byte) (*types.Response, error) {
	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("malformed worker response: %w", err)
	}
	if wr.Status < 100 || wr.Status > 599 {
		return nil, fmt.Errorf("malformed worker response: status %d out of range", wr.Status)
	}
	body, err := base64.StdEncoding.DecodeString(wr.Body)
	if err != nil {
		return nil, fmt.Errorf("malformed worker response: invalid base64 body: %w", err)
	}
	return &types.Response{
		Status:  wr.Status,
		Headers: wr.Headers,
		Body:    body,
	}, nil
}
