// Package match implements the Response Matcher / Validator: structural
// and value comparison between an expected and an actual JSON tree, with
// selector-scoped partial/unordered transforms and placeholder binding.
package match

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/selector"
)

// DiffKind classifies a single comparison failure.
type DiffKind int

const (
	FormMismatch DiffKind = iota
	ValueMismatch
	StatusMismatch
)

func (k DiffKind) String() string {
	switch k {
	case FormMismatch:
		return "form"
	case ValueMismatch:
		return "value"
	case StatusMismatch:
		return "status"
	default:
		return "unknown"
	}
}

// Diff records one point of disagreement between expected and actual.
type Diff struct {
	Path     []string
	Expected interface{}
	Actual   interface{}
	Kind     DiffKind
}

// Bindings is the set of placeholder-to-value captures accumulated while
// matching, mirroring a pattern matcher's extend/copy idiom but
// restricted to single-valued, non-backtracking binds: each ${VAR} leaf
// binds exactly once to the actual value at that structural position.
type Bindings map[string]interface{}

// Copy returns an independent copy of b.
func (b Bindings) Copy() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Extend returns a copy of b with name bound to value, or an error if
// name is already bound to a different value (spec.md §4.5: repeated
// placeholders must bind identically).
func (b Bindings) Extend(name string, value interface{}) (Bindings, error) {
	if existing, ok := b[name]; ok {
		if !reflect.DeepEqual(existing, value) {
			return nil, dmerror.New(dmerror.KindValueMismatch,
				fmt.Sprintf("placeholder ${%s} bound to inconsistent values", name))
		}
		return b, nil
	}
	out := b.Copy()
	out[name] = value
	return out, nil
}

// Result is the outcome of Compare: successful iff len(Diffs) == 0.
type Result struct {
	Bindings Bindings
	Diffs    []Diff
}

// Ok reports whether the comparison found no mismatches.
func (r Result) Ok() bool { return len(r.Diffs) == 0 }

// Compare matches actualStatus/actualBody against the Frame's expected
// response, applying any selector-scoped Validation entries before
// recursive structural comparison, per spec.md §4.5. lang selects the
// selector language ("" dotted, "cel") used to evaluate the
// validation-scoped selectors. A Frame that declares no response body
// (or a null one) leaves the actual body unchecked, just as a Frame that
// declares no status leaves the actual status unchecked.
func Compare(expected frame.Response, actualStatus int, actualBody interface{}, lang selector.Language) (Result, error) {
	res := Result{Bindings: Bindings{}}

	if expected.StatusSet && expected.Status != actualStatus {
		res.Diffs = append(res.Diffs, Diff{
			Path:     nil,
			Expected: expected.Status,
			Actual:   actualStatus,
			Kind:     StatusMismatch,
		})
	}

	transformedActual, err := applyValidations(lang, expected.Validation, expected.Status, expected.Body, actualStatus, actualBody)
	if err != nil {
		return Result{}, err
	}

	if expected.Body != nil {
		bindings, diffs := compareValue(nil, expected.Body, transformedActual, res.Bindings)
		res.Bindings = bindings
		res.Diffs = append(res.Diffs, diffs...)
	}

	return res, nil
}

// applyValidations applies the partial/unordered transforms at each
// selector-scoped path, producing a modified copy of the actual body.
// Each selector is evaluated against the full response envelope
// {"response": {"status": ..., "body": ...}} so that validation keys
// written as 'response'.'body'.'items'... address the same tree a
// cut.to selector would. lang picks the selector language the
// validation keys are written in.
func applyValidations(lang selector.Language, validation map[string]frame.Validation, expectedStatus int, expected interface{}, actualStatus int, actual interface{}) (interface{}, error) {
	if len(validation) == 0 {
		return actual, nil
	}
	actual = deepCopy(actual)

	root := map[string]interface{}{
		"response": map[string]interface{}{"status": actualStatus, "body": actual},
	}
	expRoot := map[string]interface{}{
		"response": map[string]interface{}{"status": expectedStatus, "body": expected},
	}

	for expr, v := range validation {
		if !v.Partial && !v.Unordered {
			continue
		}

		actualNode, err := selector.EvalExpr(lang, expr, root)
		if err != nil {
			// A selector that cannot resolve against actual surfaces as a
			// downstream mismatch, not a hard error here.
			continue
		}
		expectedNode, err := selector.EvalExpr(lang, expr, expRoot)
		if err != nil {
			continue
		}

		transformed := actualNode
		if v.Partial {
			transformed = applyPartial(expectedNode, transformed)
		}
		if v.Unordered {
			transformed = applyUnordered(expectedNode, transformed)
		}

		sel, err := dottedSelectorFor(lang, expr)
		if err != nil {
			// The expression has no concrete tree location to write the
			// transform back into (e.g. a CEL filter/computation rather
			// than a plain attribute chain); the transform still ran for
			// evaluation purposes above, but splicing it back is only
			// possible for a path-shaped selector.
			continue
		}
		if err := setAt(root, sel, transformed); err != nil {
			return nil, err
		}
	}

	responseNode := root["response"].(map[string]interface{})
	return responseNode["body"], nil
}

// dottedSelectorFor resolves the concrete tree location expr addresses,
// for the setAt write-back step, regardless of which language selected
// it. A dotted selector is used directly. A CEL selector evaluates
// root bound as "input" (selector/cel.go), so a plain attribute chain
// written as "input.response.body.items" has the same path once that
// prefix is stripped; anything else (a CEL filter or computation) has
// no single tree location and is rejected here.
func dottedSelectorFor(lang selector.Language, expr string) (selector.Selector, error) {
	if lang == selector.LangCEL {
		expr = strings.TrimPrefix(expr, "input.")
	}
	return selector.Parse(expr)
}

// applyPartial implements spec.md §4.5's partial transform: at an object
// node, drop actual keys absent from expected; at an array node, search
// for the expected sequence as a contiguous subsequence of actual.
func applyPartial(expected, actual interface{}) interface{} {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return actual
		}
		out := make(map[string]interface{}, len(exp))
		for k := range exp {
			if v, found := act[k]; found {
				out[k] = v
			}
		}
		return out
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return actual
		}
		if len(exp) == 0 || len(exp) > len(act) {
			return actual
		}
		for start := 0; start+len(exp) <= len(act); start++ {
			if sliceEqualModuloPlaceholders(exp, act[start:start+len(exp)]) {
				return act[start : start+len(exp)]
			}
		}
		return actual
	default:
		return actual
	}
}

// applyUnordered implements spec.md §4.5's unordered transform: for each
// element of expected in order, move the first equal element of actual
// to the head of the remaining tail.
func applyUnordered(expected, actual interface{}) interface{} {
	exp, ok := expected.([]interface{})
	if !ok {
		return actual
	}
	act, ok := actual.([]interface{})
	if !ok {
		return actual
	}

	remaining := make([]interface{}, len(act))
	copy(remaining, act)
	reordered := make([]interface{}, 0, len(act))

	for _, e := range exp {
		idx := -1
		for i, a := range remaining {
			if isPlaceholder(e) || reflect.DeepEqual(e, a) {
				idx = i
				break
			}
		}
		if idx == -1 {
			// No matching element; fall back to original order, letting
			// the downstream comparison surface the mismatch.
			return actual
		}
		reordered = append(reordered, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	reordered = append(reordered, remaining...)
	return reordered
}

func sliceEqualModuloPlaceholders(expected, actual []interface{}) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if isPlaceholder(expected[i]) {
			continue
		}
		if !reflect.DeepEqual(expected[i], actual[i]) {
			return false
		}
	}
	return true
}

// setAt writes value at sel within root, mutating the wrapper map.
func setAt(root map[string]interface{}, sel selector.Selector, value interface{}) error {
	segs := sel.Segments()
	if len(segs) == 0 {
		return dmerror.New(dmerror.KindWrite, "empty selector cannot be assigned")
	}

	var cur interface{} = root
	for i := 0; i < len(segs)-1; i++ {
		switch seg := segs[i]; seg.Kind {
		case selector.Key:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return dmerror.New(dmerror.KindWrite, fmt.Sprintf("selector %q: expected object at %q", sel, seg.Name))
			}
			cur = m[seg.Name]
		case selector.Index:
			a, ok := cur.([]interface{})
			if !ok || seg.Idx < 0 || seg.Idx >= len(a) {
				return dmerror.New(dmerror.KindWrite, fmt.Sprintf("selector %q: index %d out of range", sel, seg.Idx))
			}
			cur = a[seg.Idx]
		}
	}

	last := segs[len(segs)-1]
	switch last.Kind {
	case selector.Key:
		m, ok := cur.(map[string]interface{})
		if !ok {
			return dmerror.New(dmerror.KindWrite, fmt.Sprintf("selector %q: cannot assign into non-object", sel))
		}
		m[last.Name] = value
	case selector.Index:
		a, ok := cur.([]interface{})
		if !ok || last.Idx < 0 || last.Idx >= len(a) {
			return dmerror.New(dmerror.KindWrite, fmt.Sprintf("selector %q: cannot assign at index %d", sel, last.Idx))
		}
		a[last.Idx] = value
	}
	return nil
}

// isPlaceholder reports whether v is a bare ${VAR} string, spec.md §4.5's
// placeholder leaf.
func isPlaceholder(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return len(s) > 3 && s[:2] == "${" && s[len(s)-1] == '}' &&
		!strings.ContainsAny(s[2:len(s)-1], "${}")
}

// deepCopy returns a copy of a decoded JSON value that shares no map or
// slice with v, so transforms written into it leave v untouched.
func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = deepCopy(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = deepCopy(vv)
		}
		return out
	default:
		return v
	}
}

func placeholderName(v interface{}) string {
	s := v.(string)
	return s[2 : len(s)-1]
}

// compareValue recursively compares expected against actual, threading
// placeholder bindings and accumulating diffs. path accumulates the
// selector-style breadcrumb used in Diff.Path for reporting.
func compareValue(path []string, expected, actual interface{}, bindings Bindings) (Bindings, []Diff) {
	if isPlaceholder(expected) {
		name := placeholderName(expected)
		next, err := bindings.Extend(name, actual)
		if err != nil {
			return bindings, []Diff{{Path: path, Expected: expected, Actual: actual, Kind: ValueMismatch}}
		}
		return next, nil
	}

	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return bindings, []Diff{{Path: path, Expected: expected, Actual: actual, Kind: FormMismatch}}
		}
		var diffs []Diff
		for k, ev := range exp {
			keyPath := append(append([]string{}, path...), k)
			av, found := act[k]
			if !found {
				diffs = append(diffs, Diff{Path: keyPath, Expected: ev, Actual: nil, Kind: FormMismatch})
				continue
			}
			var d []Diff
			bindings, d = compareValue(keyPath, ev, av, bindings)
			diffs = append(diffs, d...)
		}
		for k := range act {
			if _, found := exp[k]; !found {
				keyPath := append(append([]string{}, path...), k)
				diffs = append(diffs, Diff{Path: keyPath, Expected: nil, Actual: act[k], Kind: FormMismatch})
			}
		}
		return bindings, diffs

	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return bindings, []Diff{{Path: path, Expected: expected, Actual: actual, Kind: FormMismatch}}
		}
		if len(exp) != len(act) {
			return bindings, []Diff{{Path: path, Expected: expected, Actual: actual, Kind: FormMismatch}}
		}
		var diffs []Diff
		for i := range exp {
			elemPath := append(append([]string{}, path...), fmt.Sprintf("%d", i))
			var d []Diff
			bindings, d = compareValue(elemPath, exp[i], act[i], bindings)
			diffs = append(diffs, d...)
		}
		return bindings, diffs

	default:
		if !valuesEqual(expected, actual) {
			return bindings, []Diff{{Path: path, Expected: expected, Actual: actual, Kind: ValueMismatch}}
		}
		return bindings, nil
	}
}

// valuesEqual compares scalars, treating numbers by numeric value
// regardless of json.Number vs float64 representation.
func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
