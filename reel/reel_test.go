package reel

import (
	"testing"
	"testing/fstest"
)

func frameFile(uri string) []byte {
	return []byte(`{"protocol":"HTTP","request":{"uri":"` + uri + `"},"response":{"status":200}}`)
}

func TestLoadSortsByOrderingKey(t *testing.T) {
	fsys := fstest.MapFS{
		"login.02s.next.fr.json":  {Data: frameFile("/b")},
		"login.01e.guard.fr.json": {Data: frameFile("/a-error")},
		"login.01s.first.fr.json": {Data: frameFile("/a")},
	}

	r, err := Load(fsys, "login")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(r.Frames))
	}
	want := []string{"login.01e.guard.fr.json", "login.01s.first.fr.json", "login.02s.next.fr.json"}
	for i, f := range r.Frames {
		if f.Metadata.Filename != want[i] {
			t.Errorf("Frames[%d] = %s, want %s", i, f.Metadata.Filename, want[i])
		}
	}
}

func TestLoadRejectsDuplicateOrderKey(t *testing.T) {
	fsys := fstest.MapFS{
		"login.01s.first.fr.json":  {Data: frameFile("/a")},
		"login.01s.second.fr.json": {Data: frameFile("/a2")},
	}
	if _, err := Load(fsys, "login"); err == nil {
		t.Fatal("expected ReelLoad error for duplicate (seq,type,sub)")
	}
}

func TestLoadIgnoresOtherReels(t *testing.T) {
	fsys := fstest.MapFS{
		"login.01s.first.fr.json":  {Data: frameFile("/a")},
		"signup.01s.first.fr.json": {Data: frameFile("/s")},
	}
	r, err := Load(fsys, "login")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(r.Frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(r.Frames))
	}
}

func TestLoadReadsBaseCut(t *testing.T) {
	fsys := fstest.MapFS{
		"login.01s.first.fr.json": {Data: frameFile("/a")},
		"login.cut.json":          {Data: []byte(`{"HOST":"http://example.test"}`)},
	}
	r, err := Load(fsys, "login")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r.Cut["HOST"] != "http://example.test" {
		t.Errorf("Cut[HOST] = %v", r.Cut["HOST"])
	}
}

func TestLoadStrictRejectsSchemaViolation(t *testing.T) {
	fsys := fstest.MapFS{
		// response.status is required by the strict envelope schema.
		"login.01s.first.fr.json": {Data: []byte(`{"protocol":"HTTP","request":{"uri":"GET /a"},"response":{}}`)},
	}
	if _, err := LoadStrict(fsys, "login"); err == nil {
		t.Fatal("expected LoadStrict to reject a frame missing response.status")
	}
	if _, err := Load(fsys, "login"); err != nil {
		t.Fatalf("Load (non-strict) should tolerate the same frame, got: %v", err)
	}
}

func TestNamesListsDistinctReels(t *testing.T) {
	fsys := fstest.MapFS{
		"login.01s.first.fr.json":  {Data: frameFile("/a")},
		"login.02s.next.fr.json":   {Data: frameFile("/b")},
		"signup.01s.first.fr.json": {Data: frameFile("/s")},
	}
	names, err := Names(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "login" || names[1] != "signup" {
		t.Errorf("Names() = %v", names)
	}
}

func TestComponentPreludeKeepsOnlySuccessFrames(t *testing.T) {
	fsys := fstest.MapFS{
		"auth.01s.login.fr.json": {Data: frameFile("/login")},
		"auth.02e.guard.fr.json": {Data: frameFile("/guard")},
	}
	r, err := Load(fsys, "auth")
	if err != nil {
		t.Fatal(err)
	}
	prelude := r.ComponentPrelude()
	if len(prelude) != 1 || prelude[0].Metadata.Type != "s" {
		t.Errorf("ComponentPrelude() = %d success frames", len(prelude))
	}
}
