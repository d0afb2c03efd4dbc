// Package take implements the Frame Executor: the per-Frame pipeline of
// read-phase substitution, dispatch, compare-with-retry, write-phase
// extraction, and register pruning described in spec.md §4.6.
package take

import (
	"context"
	"fmt"
	"time"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/match"
	"github.com/Comcast/darkroom/selector"
	"github.com/Comcast/darkroom/template"
	"github.com/Comcast/darkroom/transport"
)

// DefaultTimeout is the default dispatch timeout, the same value
// config.Default starts from; an Options.Timeout of 0 disables the
// timeout, per spec.md §4.6.
const DefaultTimeout = 30 * time.Second

// Materialized is the emitted "take": the Frame as actually sent and
// received, for optional disk persistence.
type Materialized struct {
	Frame    *frame.Frame
	Request  *transport.Request
	Status   int
	Response interface{}
	Bindings match.Bindings
}

// Options configures one Execute call.
type Options struct {
	Adapter      transport.Adapter
	Fallback     transport.Fallback
	Timeout      time.Duration     // 0 or negative disables the dispatch timeout
	SelectorLang selector.Language // selector language for cut.to and validation selectors
}

// Execute runs the seven-step pipeline of spec.md §4.6 for a single Frame
// against reg, mutating reg in place per the write phase and prune step.
func Execute(ctx context.Context, f *frame.Frame, reg *cut.Register, opts Options) (*Materialized, error) {
	if opts.Adapter == nil {
		return nil, dmerror.New(dmerror.KindTransport, "take.Execute: no Adapter configured").WithFrame(f.Metadata.Filename)
	}

	req, err := readPhase(f, reg)
	if err != nil {
		return nil, withFrame(err, f)
	}

	attempts := uint32(1)
	delay := time.Duration(0)
	if f.Request.Attempts != nil {
		if f.Request.Attempts.Times > 0 {
			attempts = f.Request.Attempts.Times
		}
		delay = time.Duration(f.Request.Attempts.Ms) * time.Millisecond
	}

	timeout := opts.Timeout

	var lastErr error
	var resp *transport.Response
	var result match.Result

	for attempt := uint32(1); attempt <= attempts; attempt++ {
		dispatchCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			dispatchCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		resp, lastErr = opts.Adapter.Send(dispatchCtx, f.Protocol, req, opts.Fallback)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			result, lastErr = match.Compare(f.Response, resp.Status, resp.Body, opts.SelectorLang)
		}
		if lastErr == nil && result.Ok() {
			break
		}
		if lastErr == nil {
			lastErr = mismatchError(result)
		}

		if attempt < attempts {
			time.Sleep(delay)
		}
	}

	if lastErr != nil {
		return nil, withFrame(lastErr, f)
	}

	if err := writePhase(f, resp, result.Bindings, reg, opts.SelectorLang); err != nil {
		return nil, withFrame(err, f)
	}

	reg.PruneAfterFrame()

	return &Materialized{
		Frame:    f,
		Request:  req,
		Status:   resp.Status,
		Response: resp.Body,
		Bindings: result.Bindings,
	}, nil
}

// readPhase template-resolves the Frame's request against reg, producing
// a fully concrete transport.Request.
func readPhase(f *frame.Frame, reg *cut.Register) (*transport.Request, error) {
	resolved, err := template.Resolve(map[string]interface{}{
		"uri":        f.Request.URI,
		"body":       f.Request.Body,
		"header":     f.Request.Header,
		"entrypoint": f.Request.Entrypoint,
		"query":      f.Request.Query,
		"form":       f.Request.Form,
	}, reg)
	if err != nil {
		return nil, err
	}
	m := resolved.(map[string]interface{})

	req := &transport.Request{}
	if uri, ok := m["uri"].(string); ok {
		req.URI = uri
	}
	req.Body = m["body"]
	if h, ok := m["header"].(map[string]interface{}); ok {
		req.Header = h
	}
	if ep, ok := m["entrypoint"].(string); ok {
		req.Entrypoint = ep
	}
	if q, ok := m["query"].(map[string]interface{}); ok {
		req.Query = q
	}
	if form, ok := m["form"].(map[string]interface{}); ok {
		req.Form = form
	}
	return req, nil
}

// writePhase evaluates each cut.to selector against the actual response
// and stores the result into reg, per spec.md §4.6 step 5.
func writePhase(f *frame.Frame, resp *transport.Response, bindings match.Bindings, reg *cut.Register, lang selector.Language) error {
	if f.Cut == nil || len(f.Cut.To) == 0 {
		return nil
	}

	written := make(map[string]bool, len(f.Cut.To))
	envelope := map[string]interface{}{
		"response": map[string]interface{}{"status": resp.Status, "body": resp.Body},
	}

	for varName, expr := range f.Cut.To {
		if written[varName] {
			return dmerror.New(dmerror.KindWrite, fmt.Sprintf("duplicate extraction of %q", varName))
		}

		var value interface{}
		if bound, ok := bindings[varName]; ok {
			value = bound
		} else {
			var err error
			value, err = selector.EvalExpr(lang, expr, envelope)
			if err != nil {
				return err
			}
		}

		if err := reg.Write(varName, value); err != nil {
			return err
		}
		written[varName] = true
	}
	return nil
}

// mismatchError converts a failed match.Result into the most specific
// dmerror.Kind its first diff represents.
func mismatchError(result match.Result) error {
	if len(result.Diffs) == 0 {
		return dmerror.New(dmerror.KindValueMismatch, "response did not match expectation")
	}
	d := result.Diffs[0]
	var kind dmerror.Kind
	switch d.Kind {
	case match.FormMismatch:
		kind = dmerror.KindFormMismatch
	case match.StatusMismatch:
		kind = dmerror.KindStatusMismatch
	default:
		kind = dmerror.KindValueMismatch
	}
	return dmerror.New(kind, fmt.Sprintf("at %v: expected %v, got %v", d.Path, d.Expected, d.Actual))
}

func withFrame(err error, f *frame.Frame) error {
	if dm, ok := err.(*dmerror.Error); ok {
		return dm.WithFrame(f.Metadata.Filename)
	}
	return err
}
