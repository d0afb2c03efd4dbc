// Package selector implements the compact JSON-path subset spec.md §9
// requires for cut.to write-specs and validation scoping: dotted, quoted
// segments and integer array indices, with an optional CEL-based
// extended mode.
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Comcast/darkroom/dmerror"
)

// SegmentKind distinguishes an object-key segment from an array-index one.
type SegmentKind int

const (
	Key SegmentKind = iota
	Index
)

// Segment is one step of a parsed Selector.
type Segment struct {
	Kind SegmentKind
	Name string // valid when Kind == Key
	Idx  int    // valid when Kind == Index
}

// Selector is a parsed dotted-path expression, e.g. 'response'.'body'.'items'.2.
type Selector struct {
	raw      string
	segments []Segment
}

// String returns the original expression Parse was given.
func (s Selector) String() string { return s.raw }

// Segments exposes the parsed path, read-only.
func (s Selector) Segments() []Segment {
	out := make([]Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// Parse compiles a dotted-quoted-segment selector expression. Each
// segment is either 'quoted.key', a bare non-negative integer index, or a
// bare unquoted key. Segments are dot-separated; quotes may use either '
// or ".
func Parse(expr string) (Selector, error) {
	if strings.TrimSpace(expr) == "" {
		return Selector{}, dmerror.New(dmerror.KindWrite, "empty selector expression")
	}

	var segs []Segment
	i := 0
	for i < len(expr) {
		switch {
		case expr[i] == '\'' || expr[i] == '"':
			quote := expr[i]
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				j++
			}
			if j >= len(expr) {
				return Selector{}, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("unterminated quoted segment in selector %q", expr))
			}
			segs = append(segs, Segment{Kind: Key, Name: expr[i+1 : j]})
			i = j + 1
		default:
			j := i
			for j < len(expr) && expr[j] != '.' {
				j++
			}
			token := expr[i:j]
			if token == "" {
				return Selector{}, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("empty segment in selector %q", expr))
			}
			if n, err := strconv.Atoi(token); err == nil && n >= 0 {
				segs = append(segs, Segment{Kind: Index, Idx: n})
			} else {
				segs = append(segs, Segment{Kind: Key, Name: token})
			}
			i = j
		}

		if i < len(expr) {
			if expr[i] != '.' {
				return Selector{}, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("expected '.' at offset %d in selector %q", i, expr))
			}
			i++
			if i >= len(expr) {
				return Selector{}, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("trailing '.' in selector %q", expr))
			}
		}
	}

	if len(segs) == 0 {
		return Selector{}, dmerror.New(dmerror.KindWrite,
			fmt.Sprintf("no segments parsed from selector %q", expr))
	}

	return Selector{raw: expr, segments: segs}, nil
}

// Language selects which selector syntax EvalExpr parses expr with.
type Language string

const (
	// LangDotted is the default dotted/quoted-segment syntax Parse/Eval
	// implement directly.
	LangDotted Language = ""
	// LangCEL is the extended mode implemented by cel.go, gated behind
	// --selector-lang=cel.
	LangCEL Language = "cel"
)

// EvalExpr parses and evaluates expr against root in lang, for callers
// that select the language per-invocation rather than compiling once.
func EvalExpr(lang Language, expr string, root interface{}) (interface{}, error) {
	if lang == LangCEL {
		sel, err := ParseCEL(expr)
		if err != nil {
			return nil, err
		}
		return EvalCEL(sel, root)
	}
	sel, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return Eval(sel, root)
}

// Eval walks the parsed segments over root, returning the value reached.
func Eval(sel Selector, root interface{}) (interface{}, error) {
	cur := root
	for _, seg := range sel.segments {
		switch seg.Kind {
		case Key:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("selector %q: expected object at %q, got %T", sel.raw, seg.Name, cur))
			}
			v, found := m[seg.Name]
			if !found {
				return nil, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("selector %q: key %q not present", sel.raw, seg.Name))
			}
			cur = v
		case Index:
			a, ok := cur.([]interface{})
			if !ok {
				return nil, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("selector %q: expected array at index %d, got %T", sel.raw, seg.Idx, cur))
			}
			if seg.Idx < 0 || seg.Idx >= len(a) {
				return nil, dmerror.New(dmerror.KindWrite,
					fmt.Sprintf("selector %q: index %d out of range (len %d)", sel.raw, seg.Idx, len(a)))
			}
			cur = a[seg.Idx]
		}
	}
	return cur, nil
}
