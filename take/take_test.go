package take

import (
	"context"
	"testing"
	"time"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/transport"
)

// fakeAdapter scripts a sequence of responses/errors for dispatch-count
// and retry-bound tests (spec.md §8 property 9).
type fakeAdapter struct {
	calls     int
	callTimes []time.Time
	responses []*transport.Response
	errs      []error
}

func (f *fakeAdapter) Send(ctx context.Context, protocol frame.Protocol, req *transport.Request, fallback transport.Fallback) (*transport.Response, error) {
	f.callTimes = append(f.callTimes, time.Now())
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return f.responses[len(f.responses)-1], nil
}

func parseFrame(t *testing.T, js string) *frame.Frame {
	t.Helper()
	f, err := frame.Parse([]byte(js))
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	return f
}

func TestExecuteS1PostRoundTripWritesIP(t *testing.T) {
	// S1 from spec.md §8.
	reg, err := cut.Merge(map[string]interface{}{"URL": "http://h/p"})
	if err != nil {
		t.Fatal(err)
	}

	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "${URL}", "body": {"x": 1}},
		"response": {"status": 200, "body": {"ok": true, "ip": "${IP}"}},
		"cut": {"to": {"IP": "'response'.'body'.'ip'"}}
	}`)

	adapter := &fakeAdapter{
		responses: []*transport.Response{{Status: 200, Body: map[string]interface{}{"ok": true, "ip": "1.2.3.4"}}},
	}

	_, err = Execute(context.Background(), f, reg, Options{Adapter: adapter})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, err := reg.Read("IP")
	if err != nil || got != "1.2.3.4" {
		t.Errorf("register IP = %v, %v", got, err)
	}
}

func TestExecuteWriteFromPlaceholderBindingNeedsNoSelector(t *testing.T) {
	reg := cut.New()
	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "/x"},
		"response": {"status": 200, "body": {"ip": "${IP}"}},
		"cut": {"to": {"IP": "'response'.'body'.'ip'"}}
	}`)
	adapter := &fakeAdapter{responses: []*transport.Response{{Status: 200, Body: map[string]interface{}{"ip": "9.9.9.9"}}}}

	_, err := Execute(context.Background(), f, reg, Options{Adapter: adapter})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := reg.Read("IP")
	if got != "9.9.9.9" {
		t.Errorf("IP = %v", got)
	}
}

func TestExecuteRetriesUpToAttemptsThenSucceeds(t *testing.T) {
	reg := cut.New()
	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "/x", "attempts": {"times": 3, "ms": 1}},
		"response": {"status": 200, "body": {}}
	}`)
	adapter := &fakeAdapter{
		responses: []*transport.Response{
			{Status: 500, Body: map[string]interface{}{}},
			{Status: 500, Body: map[string]interface{}{}},
			{Status: 200, Body: map[string]interface{}{}},
		},
	}

	_, err := Execute(context.Background(), f, reg, Options{Adapter: adapter})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if adapter.calls != 3 {
		t.Errorf("dispatch count = %d, want 3", adapter.calls)
	}
}

func TestExecuteNeverExceedsAttemptsTimes(t *testing.T) {
	// Property 9 from spec.md §8: dispatch count never exceeds attempts.times.
	reg := cut.New()
	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "/x", "attempts": {"times": 2, "ms": 1}},
		"response": {"status": 200, "body": {}}
	}`)
	adapter := &fakeAdapter{
		responses: []*transport.Response{
			{Status: 500, Body: map[string]interface{}{}},
			{Status: 500, Body: map[string]interface{}{}},
			{Status: 500, Body: map[string]interface{}{}},
		},
	}

	if _, err := Execute(context.Background(), f, reg, Options{Adapter: adapter}); err == nil {
		t.Fatal("expected final failure after exhausting attempts")
	}
	if adapter.calls != 2 {
		t.Errorf("dispatch count = %d, want 2", adapter.calls)
	}
}

func TestExecuteLowercaseWriteIsPrunedAfterSuccess(t *testing.T) {
	// S2 from spec.md §8.
	reg := cut.New()
	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "/x"},
		"response": {"status": 200, "body": {}},
		"cut": {"to": {"temp": "'response'.'status'", "KEEP": "'response'.'status'"}}
	}`)
	adapter := &fakeAdapter{responses: []*transport.Response{{Status: 200, Body: map[string]interface{}{}}}}

	if _, err := Execute(context.Background(), f, reg, Options{Adapter: adapter}); err != nil {
		t.Fatal(err)
	}
	if reg.Has("temp") {
		t.Error("lowercase variable survived prune")
	}
	if !reg.Has("KEEP") {
		t.Error("standard variable was pruned")
	}
}

func TestExecuteInconsistentPlaceholderBindingFails(t *testing.T) {
	reg := cut.New()
	// cut.to is a JSON object, so one Frame cannot name the same variable
	// twice there; this checks the related guard instead: a placeholder
	// repeated in the expected body must bind one value, so actual "1"
	// and "2" for ${X} fail the Frame.
	f := parseFrame(t, `{
		"protocol": "HTTP",
		"request": {"uri": "/x"},
		"response": {"status": 200, "body": {"a": "${X}", "b": "${X}"}}
	}`)
	adapter := &fakeAdapter{responses: []*transport.Response{{Status: 200, Body: map[string]interface{}{"a": "1", "b": "2"}}}}

	if _, err := Execute(context.Background(), f, reg, Options{Adapter: adapter}); err == nil {
		t.Fatal("expected mismatch for inconsistent placeholder binding")
	}
}
