package template

import (
	"reflect"
	"testing"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
)

func mustReg(t *testing.T, kvs map[string]interface{}) *cut.Register {
	t.Helper()
	r, err := cut.Merge(kvs)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveWholeStringFullJSON(t *testing.T) {
	// Property 3 from spec.md §8: full-JSON substitution.
	obj := map[string]interface{}{"a": 1.0, "b": []interface{}{"x", "y"}}
	reg := mustReg(t, map[string]interface{}{"X": obj})

	got, err := Resolve("${X}", reg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, obj) {
		t.Errorf("Resolve(${X}) = %#v, want %#v", got, obj)
	}
}

func TestResolveSplicesStringifiedValue(t *testing.T) {
	reg := mustReg(t, map[string]interface{}{"URL": "http://h/p", "N": 3.0})

	got, err := Resolve("${URL}/items/${N}", reg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://h/p/items/3" {
		t.Errorf("got %q", got)
	}
}

func TestEscapeNeverOpensReference(t *testing.T) {
	// Property 2 from spec.md §8.
	reg := cut.New()
	got, err := Resolve(`price: \$5`, reg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "price: $5" {
		t.Errorf("got %q", got)
	}
}

func TestUnterminatedReferenceIsFrameParse(t *testing.T) {
	reg := cut.New()
	_, err := Resolve("${OOPS", reg)
	if !dmerror.Is(err, dmerror.KindFrameParse) {
		t.Fatalf("want FrameParse, got %v", err)
	}
}

func TestMissingVariableIsRead(t *testing.T) {
	reg := cut.New()
	_, err := Resolve("${MISSING}", reg)
	if !dmerror.Is(err, dmerror.KindRead) {
		t.Fatalf("want Read, got %v", err)
	}
}

func TestResolveIsDeterministicAndIdempotent(t *testing.T) {
	// Property 1 from spec.md §8: template round-trip.
	reg := mustReg(t, map[string]interface{}{"URL": "http://h/p"})
	body := map[string]interface{}{"uri": "${URL}/x", "n": 1.0}

	got1, err := Resolve(body, reg)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := Resolve(body, reg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got1, got2) {
		t.Errorf("resolution not deterministic: %#v vs %#v", got1, got2)
	}

	// Resolving again (on the already-concrete value, which has no more
	// references) must be a no-op.
	got3, err := Resolve(got1, reg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got1, got3) {
		t.Errorf("resolution not idempotent: %#v vs %#v", got1, got3)
	}
}

func TestScanRefsCollectsDeduplicated(t *testing.T) {
	body := map[string]interface{}{
		"a": "${X}-${Y}",
		"b": []interface{}{"${X}", "plain"},
	}
	refs, err := ScanRefs(body)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, r := range refs {
		seen[r] = true
	}
	if !seen["X"] || !seen["Y"] || len(refs) != 2 {
		t.Errorf("ScanRefs = %v", refs)
	}
}
