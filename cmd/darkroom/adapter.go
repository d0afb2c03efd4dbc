package main

import (
	"context"
	"fmt"

	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/transport"
)

// routingAdapter dispatches each Frame to the HTTP or gRPC adapter
// according to its declared protocol, so a Reel may freely mix Frames of
// either protocol.
type routingAdapter struct {
	http *transport.HTTPAdapter
	grpc *transport.GRPCAdapter
}

func newRoutingAdapter() (*routingAdapter, error) {
	h, err := transport.NewHTTPAdapter()
	if err != nil {
		return nil, err
	}
	return &routingAdapter{http: h, grpc: transport.NewGRPCAdapter()}, nil
}

func (a *routingAdapter) Send(ctx context.Context, protocol frame.Protocol, req *transport.Request, fallback transport.Fallback) (*transport.Response, error) {
	switch protocol {
	case frame.HTTP:
		return a.http.Send(ctx, protocol, req, fallback)
	case frame.GRPC:
		return a.grpc.Send(ctx, protocol, req, fallback)
	default:
		return nil, fmt.Errorf("darkroom: no adapter registered for protocol %q", protocol)
	}
}
