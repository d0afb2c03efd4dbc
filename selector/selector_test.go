package selector

import "testing"

func TestParseAndEvalDottedPath(t *testing.T) {
	sel, err := Parse(`'response'.'body'.'items'.2.'id'`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	root := map[string]interface{}{
		"response": map[string]interface{}{
			"body": map[string]interface{}{
				"items": []interface{}{
					map[string]interface{}{"id": "a"},
					map[string]interface{}{"id": "b"},
					map[string]interface{}{"id": "c"},
				},
			},
		},
	}

	got, err := Eval(sel, root)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != "c" {
		t.Errorf("Eval = %v, want c", got)
	}
}

func TestEvalMissingKeyFails(t *testing.T) {
	sel, _ := Parse(`'a'.'b'`)
	_, err := Eval(sel, map[string]interface{}{"a": map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestEvalOutOfRangeIndexFails(t *testing.T) {
	sel, _ := Parse(`'items'.5`)
	_, err := Eval(sel, map[string]interface{}{"items": []interface{}{"x"}})
	if err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestParseRejectsUnterminatedQuote(t *testing.T) {
	if _, err := Parse(`'unterminated`); err == nil {
		t.Fatal("expected error for unterminated quoted segment")
	}
}

func TestParseRejectsEmptyExpression(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty selector")
	}
}

func TestEvalExprDispatchesByLanguage(t *testing.T) {
	root := map[string]interface{}{"a": map[string]interface{}{"b": "dotted"}}

	got, err := EvalExpr(LangDotted, `'a'.'b'`, root)
	if err != nil || got != "dotted" {
		t.Errorf("EvalExpr(dotted) = %v, %v", got, err)
	}

	got, err = EvalExpr(LangCEL, "input.a.b", root)
	if err != nil || got != "dotted" {
		t.Errorf("EvalExpr(cel) = %v, %v", got, err)
	}
}

func TestCELSelectorEvaluatesOverInput(t *testing.T) {
	sel, err := ParseCEL(`input.body.status`)
	if err != nil {
		t.Fatalf("ParseCEL: %v", err)
	}
	got, err := EvalCEL(sel, map[string]interface{}{
		"body": map[string]interface{}{"status": "ready"},
	})
	if err != nil {
		t.Fatalf("EvalCEL: %v", err)
	}
	if got != "ready" {
		t.Errorf("EvalCEL = %v, want ready", got)
	}
}
