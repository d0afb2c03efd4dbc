// Package template implements the Template Engine: resolution of ${VAR}
// references inside any JSON subtree against a Cut Register, with escape
// handling and typed (whole-string) substitution.
package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
)

type tokenKind int

const (
	tokLiteral tokenKind = iota
	tokRef
)

type token struct {
	kind tokenKind
	text string // literal text, for tokLiteral
	name string // variable name, for tokRef
}

// scan tokenizes s into literal and reference runs. "\$" is folded into a
// literal "$" and never opens a reference. An unterminated "${" is a
// FrameParse error.
func scan(s string) ([]token, error) {
	var toks []token
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			toks = append(toks, token{kind: tokLiteral, text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(s) {
		switch {
		case s[i] == '\\' && i+1 < len(s) && s[i+1] == '$':
			lit.WriteByte('$')
			i += 2
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '{':
			flush()
			j := i + 2
			for j < len(s) && s[j] != '}' {
				j++
			}
			if j >= len(s) {
				return nil, dmerror.New(dmerror.KindFrameParse,
					fmt.Sprintf("unterminated variable reference in %q", s))
			}
			toks = append(toks, token{kind: tokRef, name: s[i+2 : j]})
			i = j + 1
		default:
			lit.WriteByte(s[i])
			i++
		}
	}
	flush()
	return toks, nil
}

// ScanRefs returns the set of variable names referenced anywhere within v
// (deduplicated, first-seen order), used to validate Frame.cut.from against
// the actual references in a Frame's request/response per spec.md §4.2.
func ScanRefs(v interface{}) ([]string, error) {
	seen := make(map[string]bool)
	var order []string
	var walk func(interface{}) error
	walk = func(x interface{}) error {
		switch t := x.(type) {
		case string:
			toks, err := scan(t)
			if err != nil {
				return err
			}
			for _, tk := range toks {
				if tk.kind == tokRef && !seen[tk.name] {
					seen[tk.name] = true
					order = append(order, tk.name)
				}
			}
		case map[string]interface{}:
			for _, vv := range t {
				if err := walk(vv); err != nil {
					return err
				}
			}
		case []interface{}:
			for _, vv := range t {
				if err := walk(vv); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return order, nil
}

// Resolve deep-resolves every ${VAR} reference in v against reg, returning
// a new JSON subtree. A string whose entire content is exactly one ${VAR}
// reference is replaced by the register's native JSON value (full-JSON
// substitution); otherwise references are stringified and spliced into the
// surrounding text.
func Resolve(v interface{}, reg *cut.Register) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return resolveString(t, reg)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			rv, err := Resolve(vv, reg)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			rv, err := Resolve(vv, reg)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveString(s string, reg *cut.Register) (interface{}, error) {
	toks, err := scan(s)
	if err != nil {
		return nil, err
	}

	if len(toks) == 1 && toks[0].kind == tokRef {
		val, err := reg.Read(toks[0].name)
		if err != nil {
			return nil, err
		}
		return val, nil
	}

	var sb strings.Builder
	for _, tk := range toks {
		switch tk.kind {
		case tokLiteral:
			sb.WriteString(tk.text)
		case tokRef:
			val, err := reg.Read(tk.name)
			if err != nil {
				return nil, err
			}
			sb.WriteString(stringify(val))
		}
	}
	return sb.String(), nil
}

// stringify renders a register value for splicing into a larger string:
// strings are used verbatim, everything else is JSON-encoded.
func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	js, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(js)
}
