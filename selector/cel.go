package selector

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Comcast/darkroom/dmerror"
)

// CELSelector is the extended selector mode gated behind
// --selector-lang=cel: a selector string is compiled as a CEL expression
// over an `input` variable bound to the response JSON, per SPEC_FULL.md
// §4.5. It is strictly additive to the dotted-segment parser; callers
// choose one mode per invocation, never both.
type CELSelector struct {
	raw     string
	program cel.Program
}

var celEnv *cel.Env

func celEnvironment() (*cel.Env, error) {
	if celEnv != nil {
		return celEnv, nil
	}
	env, err := cel.NewEnv(cel.Variable("input", cel.DynType))
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindWrite, "constructing CEL environment", err)
	}
	celEnv = env
	return env, nil
}

// ParseCEL compiles expr as a CEL program over the `input` variable.
func ParseCEL(expr string) (*CELSelector, error) {
	env, err := celEnvironment()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, dmerror.New(dmerror.KindWrite,
			fmt.Sprintf("compiling CEL selector %q: %v", expr, issues.Err()))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindWrite, fmt.Sprintf("building CEL program %q", expr), err)
	}

	return &CELSelector{raw: expr, program: prg}, nil
}

// EvalCEL evaluates the compiled CEL program against root bound as `input`.
func EvalCEL(sel *CELSelector, root interface{}) (interface{}, error) {
	out, _, err := sel.program.Eval(map[string]interface{}{"input": root})
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindWrite, fmt.Sprintf("evaluating CEL selector %q", sel.raw), err)
	}
	return out.Value(), nil
}
