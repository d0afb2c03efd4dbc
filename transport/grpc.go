package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
)

// GRPCAdapter dispatches gRPC Frames by invoking an external
// grpcurl-compatible binary, passing the Frame's materialized request
// body as -d and the method from Request.Entrypoint, per SPEC_FULL.md
// §4.7. A non-zero exit is a Transport error.
type GRPCAdapter struct {
	Breaker *CircuitBreaker
}

// NewGRPCAdapter builds an adapter with its own circuit breaker.
func NewGRPCAdapter() *GRPCAdapter {
	return &GRPCAdapter{Breaker: NewCircuitBreaker(5, 0)}
}

// Send implements Adapter for gRPC Frames.
func (a *GRPCAdapter) Send(ctx context.Context, protocol frame.Protocol, req *Request, fallback Fallback) (*Response, error) {
	if protocol != frame.GRPC {
		return nil, dmerror.New(dmerror.KindTransport, fmt.Sprintf("GRPCAdapter cannot dispatch protocol %q", protocol))
	}
	if !a.Breaker.Allow() {
		return nil, dmerror.New(dmerror.KindTransport, "circuit breaker open: too many recent transport failures")
	}
	if req.Entrypoint == "" {
		a.Breaker.Failure()
		return nil, dmerror.New(dmerror.KindTransport, "gRPC request is missing entrypoint (method)")
	}

	bin := fallback.GRPCBin
	if bin == "" {
		bin = "grpcurl"
	}

	args := []string{"-plaintext", "-d", "@"}
	if fallback.ProtoDir != "" {
		args = append(args, "-import-path", fallback.ProtoDir)
	}
	if fallback.Proto != "" {
		args = append(args, "-proto", fallback.Proto)
	}
	args = append(args, req.URI, req.Entrypoint)

	payload, err := json.Marshal(req.Body)
	if err != nil {
		a.Breaker.Failure()
		return nil, dmerror.Wrap(dmerror.KindTransport, "encoding gRPC request body", err)
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		a.Breaker.Failure()
		return nil, dmerror.Wrap(dmerror.KindTransport,
			fmt.Sprintf("grpcurl exited with error: %s", stderr.String()), err)
	}

	body, err := decodeJSONBody(stdout.Bytes())
	if err != nil {
		a.Breaker.Failure()
		return nil, err
	}

	a.Breaker.Success()
	// grpcurl does not surface a numeric status on success; 0 (OK) is
	// the gRPC convention for success.
	return &Response{Status: 0, Body: body}, nil
}
