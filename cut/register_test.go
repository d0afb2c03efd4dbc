package cut

import (
	"encoding/json"
	"testing"
)

func TestMergeOverridesAtKeyLevel(t *testing.T) {
	// S6 from spec.md §8.
	base := map[string]interface{}{"A": "a", "B": "b"}
	o1 := map[string]interface{}{"A": "a2"}
	o2 := map[string]interface{}{"B": "b2", "C": "c"}

	r, err := Merge(base, o1, o2)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	for name, want := range map[string]string{"A": "a2", "B": "b2", "C": "c"} {
		got, err := r.Read(name)
		if err != nil {
			t.Fatalf("Read(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("Read(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMergeRejectsBadName(t *testing.T) {
	if _, err := Merge(map[string]interface{}{"1bad": "x"}); err == nil {
		t.Fatal("expected error for invalid variable name")
	}
}

func TestReadMissingFails(t *testing.T) {
	r := New()
	if _, err := r.Read("NOPE"); err == nil {
		t.Fatal("expected Read error for missing variable")
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		name               string
		hidden, lowercase  bool
	}{
		{"_STRIPE_KEY", true, false},
		{"temp", false, true},
		{"KEEP", false, false},
		{"mixedCase", false, false},
	}
	for _, c := range cases {
		if got := Hidden(c.name); got != c.hidden {
			t.Errorf("Hidden(%q) = %v, want %v", c.name, got, c.hidden)
		}
		if got := Lowercase(c.name); got != c.lowercase {
			t.Errorf("Lowercase(%q) = %v, want %v", c.name, got, c.lowercase)
		}
	}
}

func TestPruneAfterFrameDropsLowercaseOnly(t *testing.T) {
	// S2 from spec.md §8.
	r := New()
	if err := r.Write("temp", "..."); err != nil {
		t.Fatal(err)
	}
	if err := r.Write("KEEP", "..."); err != nil {
		t.Fatal(err)
	}

	r.PruneAfterFrame()

	if r.Has("temp") {
		t.Error("lowercase variable survived prune")
	}
	if !r.Has("KEEP") {
		t.Error("standard variable was pruned")
	}
}

func TestMarshalRedactedOmitsHidden(t *testing.T) {
	r := New()
	_ = r.Write("_SECRET", "s3cr3t")
	_ = r.Write("PUBLIC", "ok")

	js, err := r.MarshalRedacted()
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(js, &m); err != nil {
		t.Fatal(err)
	}
	if _, found := m["_SECRET"]; found {
		t.Error("redacted view leaked a hidden variable")
	}
	if _, found := m["PUBLIC"]; !found {
		t.Error("redacted view dropped a standard variable")
	}
}

func TestRegisterRoundTripsThroughJSON(t *testing.T) {
	r := New()
	_ = r.Write("URL", "http://h/p")
	_ = r.Write("COUNT", 3)

	js, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}

	r2 := New()
	if err := json.Unmarshal(js, r2); err != nil {
		t.Fatal(err)
	}
	v, err := r2.Read("URL")
	if err != nil || v != "http://h/p" {
		t.Errorf("URL round-trip = %v, %v", v, err)
	}
}
