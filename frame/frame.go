// Package frame implements the Frame Parser & Model: deserializing and
// validating a single .fr.json request/response interaction.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/template"
)

// Protocol is the transport a Frame's request travels over.
type Protocol string

const (
	HTTP Protocol = "HTTP"
	GRPC Protocol = "gRPC"
)

// Type is the Frame-filename type tag: success, error, or
// post-success-error.
type Type string

const (
	TypeSuccess          Type = "s"
	TypeError            Type = "e"
	TypePostSuccessError Type = "se"
)

// rank orders types so that e < s < se, per spec.md §3.
func (t Type) rank() int {
	switch t {
	case TypeError:
		return 0
	case TypeSuccess:
		return 1
	case TypePostSuccessError:
		return 2
	default:
		return 3
	}
}

// Valid reports whether t is one of the three known type tags.
func (t Type) Valid() bool {
	return t.rank() < 3
}

// Attempts configures the retry policy for a Frame's dispatch.
type Attempts struct {
	Times uint32 `json:"times"`
	Ms    uint32 `json:"ms"`
}

// Request is the materializable request half of a Frame.
type Request struct {
	URI        string                 `json:"uri"`
	Body       interface{}            `json:"body,omitempty"`
	Header     map[string]interface{} `json:"header,omitempty"`
	Entrypoint string                 `json:"entrypoint,omitempty"`
	Query      map[string]interface{} `json:"query,omitempty"`
	Form       map[string]interface{} `json:"form,omitempty"`
	Attempts   *Attempts              `json:"attempts,omitempty"`
}

// Validation configures partial/unordered comparison at one selector.
type Validation struct {
	Partial   bool `json:"partial,omitempty"`
	Unordered bool `json:"unordered,omitempty"`
}

// Response is the expected response half of a Frame.
type Response struct {
	Status     int                   `json:"status"`
	Body       interface{}           `json:"body,omitempty"`
	Validation map[string]Validation `json:"validation,omitempty"`

	// StatusSet reports whether "status" was present in the Frame's JSON,
	// so a gRPC Frame expecting code 0 (OK) is distinguishable from one
	// that never declared a status to check at all.
	StatusSet bool `json:"-"`
}

// CutInstructions is the optional Cut Instruction Set: variables this
// Frame's request consumes ("from") and selectors this Frame's response
// populates ("to").
type CutInstructions struct {
	From []string          `json:"from,omitempty"`
	To   map[string]string `json:"to,omitempty"`
}

// Frame is the parsed record of a .fr.json file.
type Frame struct {
	Protocol Protocol         `json:"protocol"`
	Request  Request          `json:"request"`
	Response Response         `json:"response"`
	Cut      *CutInstructions `json:"cut,omitempty"`

	// Metadata is filename-derived positional information, attached by
	// the reel loader (or, for a standalone take, left zero).
	Metadata Metadata `json:"-"`

	unknownKeys []string
}

// Warnings reports non-fatal issues noticed while parsing, such as
// unknown top-level keys (spec.md §4.2: "ignore-with-warning").
func (f *Frame) Warnings() []string {
	if len(f.unknownKeys) == 0 {
		return nil
	}
	out := make([]string, len(f.unknownKeys))
	copy(out, f.unknownKeys)
	sort.Strings(out)
	return out
}

var knownTopLevelKeys = map[string]bool{
	"protocol": true,
	"request":  true,
	"response": true,
	"cut":      true,
}

// Parse decodes and validates a Frame from raw .fr.json bytes.
func Parse(data []byte) (*Frame, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, dmerror.Wrap(dmerror.KindFrameParse, "malformed frame JSON", err)
	}

	f := &Frame{}
	for k := range raw {
		if !knownTopLevelKeys[k] {
			f.unknownKeys = append(f.unknownKeys, k)
		}
	}

	if js, ok := raw["protocol"]; ok {
		if err := json.Unmarshal(js, &f.Protocol); err != nil {
			return nil, dmerror.Wrap(dmerror.KindFrameParse, "protocol", err)
		}
	}
	if f.Protocol != HTTP && f.Protocol != GRPC {
		return nil, dmerror.New(dmerror.KindFrameParse,
			fmt.Sprintf("unknown protocol %q", f.Protocol))
	}

	if js, ok := raw["request"]; ok {
		if err := decodeNumberPreserving(js, &f.Request); err != nil {
			return nil, dmerror.Wrap(dmerror.KindFrameParse, "request", err)
		}
	}
	if js, ok := raw["response"]; ok {
		if err := decodeNumberPreserving(js, &f.Response); err != nil {
			return nil, dmerror.Wrap(dmerror.KindFrameParse, "response", err)
		}
		var respFields map[string]json.RawMessage
		if err := json.Unmarshal(js, &respFields); err == nil {
			_, f.Response.StatusSet = respFields["status"]
		}
	}
	if js, ok := raw["cut"]; ok {
		var ci CutInstructions
		if err := json.Unmarshal(js, &ci); err != nil {
			return nil, dmerror.Wrap(dmerror.KindFrameParse, "cut", err)
		}
		f.Cut = &ci
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// validate enforces invariants 1 and 2 of spec.md §3: every from-variable
// must be referenced by the request, and every request reference must
// either be in from or be deferred to execution-time register lookup
// (checked here only for the from-side; the latter is checked by the
// executor against the live register).
func (f *Frame) validate() error {
	reqRefs, err := template.ScanRefs(map[string]interface{}{
		"uri":        f.Request.URI,
		"body":       f.Request.Body,
		"header":     f.Request.Header,
		"entrypoint": f.Request.Entrypoint,
		"query":      f.Request.Query,
		"form":       f.Request.Form,
	})
	if err != nil {
		return err
	}
	respRefs, err := template.ScanRefs(map[string]interface{}{
		"body": f.Response.Body,
	})
	if err != nil {
		return err
	}

	if f.Cut == nil {
		return nil
	}

	referenced := make(map[string]bool, len(reqRefs)+len(respRefs))
	for _, r := range reqRefs {
		referenced[r] = true
	}
	for _, r := range respRefs {
		referenced[r] = true
	}

	for _, name := range f.Cut.From {
		if !referenced[name] {
			return dmerror.New(dmerror.KindFrameParse,
				fmt.Sprintf("cut.from variable %q is never referenced by this frame", name))
		}
	}

	return nil
}

// RequestRefs returns the variable references occurring in the request
// subtree, used by the executor to decide which references must be
// satisfiable from cut.from versus the live register.
func (f *Frame) RequestRefs() ([]string, error) {
	return template.ScanRefs(map[string]interface{}{
		"uri":        f.Request.URI,
		"body":       f.Request.Body,
		"header":     f.Request.Header,
		"entrypoint": f.Request.Entrypoint,
		"query":      f.Request.Query,
		"form":       f.Request.Form,
	})
}

// FromSet returns the variables this Frame declares it consumes from the
// register via cut.from.
func (f *Frame) FromSet() map[string]bool {
	out := make(map[string]bool)
	if f.Cut == nil {
		return out
	}
	for _, name := range f.Cut.From {
		out[name] = true
	}
	return out
}

// decodeNumberPreserving unmarshals js into dst using a json.Number
// decoder, so that numeric values threaded through interface{} fields
// (Request.Body, Query, Form, Response.Body, ...) retain their original
// textual form rather than collapsing to float64.
func decodeNumberPreserving(js json.RawMessage, dst interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	return dec.Decode(dst)
}
