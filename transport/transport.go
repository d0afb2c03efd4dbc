// Package transport implements the Protocol Adapter contract and its
// HTTP and gRPC implementations: building a typed request from a Frame
// and returning a response JSON value plus status.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
)

// Request is the materialized (template-resolved) request half of a
// Frame, ready for dispatch.
type Request struct {
	URI        string
	Body       interface{}
	Header     map[string]interface{}
	Entrypoint string
	Query      map[string]interface{}
	Form       map[string]interface{}
}

// Response is the actual response an Adapter observed.
type Response struct {
	Status int
	Body   interface{}
	Header http.Header
}

// Fallback carries adapter-specific out-of-band configuration that
// doesn't belong in a Frame (base URL, proto descriptors, grpcurl binary). It is
// threaded from the CLI/config layer down to Adapter.Send.
type Fallback struct {
	BaseURL  string
	ProtoDir string
	Proto    string
	GRPCBin  string
}

// Adapter dispatches one materialized Request over a given protocol.
type Adapter interface {
	Send(ctx context.Context, protocol frame.Protocol, req *Request, fallback Fallback) (*Response, error)
}

// decodeJSONBody parses raw bytes as JSON, using json.Number so integers
// round-trip, surfacing parse failure as a Transport error with a NonJSON
// reason per SPEC_FULL.md §4.7 — unconditional on body parseability.
func decodeJSONBody(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, dmerror.Wrap(dmerror.KindTransport, "response body is not valid JSON (NonJSON)", err)
	}
	return v, nil
}
