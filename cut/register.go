// Package cut implements the Cut Register: the ordered, keyed value store
// ("register") that carries data between Frames in a Reel.
package cut

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Comcast/darkroom/dmerror"
)

// NamePattern is the syntax a Cut Variable name must satisfy.
var NamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is a syntactically valid Cut Variable.
func ValidName(name string) bool {
	return NamePattern.MatchString(name)
}

// Hidden reports whether name is classified Hidden (starts with '_').
func Hidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Lowercase reports whether name is classified Lowercase/ignored: it
// contains no uppercase letter.
func Lowercase(name string) bool {
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			return false
		}
	}
	return true
}

// Register is the ordered mapping from Cut Variable to JSON Value.
// Keys preserve insertion order (Merge inserts each source's keys in
// sorted order) so that redacted dumps are deterministic across runs.
type Register struct {
	order  []string
	values map[string]interface{}
}

// New returns an empty Register.
func New() *Register {
	return &Register{values: make(map[string]interface{})}
}

// Merge performs a left-to-right deep-overwrite merge of sources into a new
// Register: later sources override earlier ones at the key level (value
// replacement, not recursive object merge).
func Merge(sources ...map[string]interface{}) (*Register, error) {
	r := New()
	for _, src := range sources {
		keys := make([]string, 0, len(src))
		for k := range src {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := src[k]
			if !ValidName(k) {
				return nil, dmerror.New(dmerror.KindRegisterParse,
					fmt.Sprintf("invalid cut variable name %q", k))
			}
			if err := checkJSONValue(v); err != nil {
				return nil, dmerror.Wrap(dmerror.KindRegisterParse,
					fmt.Sprintf("cut variable %q", k), err)
			}
			r.write(k, v)
		}
	}
	return r, nil
}

// checkJSONValue verifies v round-trips through JSON, satisfying invariant
// 3 of spec.md §3: register values are always syntactically valid JSON.
func checkJSONValue(v interface{}) error {
	_, err := json.Marshal(v)
	return err
}

// Read returns the value bound to name, failing with KindRead if absent.
func (r *Register) Read(name string) (interface{}, error) {
	v, ok := r.values[name]
	if !ok {
		return nil, dmerror.New(dmerror.KindRead, fmt.Sprintf("variable %q not in register", name))
	}
	return v, nil
}

// Has reports whether name is currently bound.
func (r *Register) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Write inserts or replaces the binding for name.
func (r *Register) Write(name string, value interface{}) error {
	if !ValidName(name) {
		return dmerror.New(dmerror.KindWrite, fmt.Sprintf("invalid cut variable name %q", name))
	}
	if err := checkJSONValue(value); err != nil {
		return dmerror.Wrap(dmerror.KindWrite, fmt.Sprintf("cut variable %q", name), err)
	}
	r.write(name, value)
	return nil
}

func (r *Register) write(name string, value interface{}) {
	if _, exists := r.values[name]; !exists {
		r.order = append(r.order, name)
	}
	r.values[name] = value
}

// PruneAfterFrame removes every entry whose name is Lowercase-classified.
// Called once a Frame completes successfully, per spec.md §4.1/§4.6.
func (r *Register) PruneAfterFrame() {
	kept := r.order[:0]
	for _, name := range r.order {
		if Lowercase(name) {
			delete(r.values, name)
			continue
		}
		kept = append(kept, name)
	}
	r.order = kept
}

// Names returns the currently bound variable names in insertion order.
func (r *Register) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Snapshot returns a plain map copy of the register contents, suitable for
// json.Marshal or for seeding a child VirtualReel register.
func (r *Register) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(r.values))
	for _, name := range r.order {
		out[name] = r.values[name]
	}
	return out
}

// Copy returns a Register holding the same bindings as r, independent of
// further mutation to either.
func (r *Register) Copy() *Register {
	cp := New()
	for _, name := range r.order {
		cp.write(name, r.values[name])
	}
	return cp
}

// MarshalRedacted serializes the register omitting Hidden entries, i.e.
// the redact_view operation of spec.md §4.1.
func (r *Register) MarshalRedacted() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, name := range r.order {
		if Hidden(name) {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler with the full (unredacted) view,
// used when writing a --cut-out file.
func (r *Register) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Snapshot())
}

// UnmarshalJSON implements json.Unmarshaler, preserving the key order of
// data. Go map iteration is not order preserving, so the object is decoded
// token by token; a repeated key keeps its first position and its last
// value.
func (r *Register) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("cut: expected JSON object")
	}

	r.order = nil
	r.values = make(map[string]interface{})

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("cut: expected string key")
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.write(key, unwrapNumbers(v))
	}
	return nil
}

// unwrapNumbers converts json.Number leaves to float64/int64-friendly
// values so downstream comparisons in match.Compare behave as plain Go
// numeric types while still preserving integer precision where possible.
func unwrapNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		for k, vv := range t {
			t[k] = unwrapNumbers(vv)
		}
		return t
	case []interface{}:
		for i, vv := range t {
			t[i] = unwrapNumbers(vv)
		}
		return t
	default:
		return v
	}
}
