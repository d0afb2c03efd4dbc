package vreel

import (
	"testing"
	"testing/fstest"
)

func TestParseDescriptorAcceptsBareStringAndObjectFrames(t *testing.T) {
	data := []byte(`{
		"name": "combo",
		"frames": ["login.01s.x.fr.json", {"name": "custom", "path": "signup/signup.01s.y.fr.json"}],
		"cut": {"HOST": "http://example.test"}
	}`)
	d, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Frames[0].Name != "login.01s.x.fr.json" {
		t.Errorf("Frames[0].Name = %q", d.Frames[0].Name)
	}
	if d.Frames[1].Name != "custom" || d.Frames[1].Path != "signup/signup.01s.y.fr.json" {
		t.Errorf("Frames[1] = %+v", d.Frames[1])
	}
	if d.Cut["HOST"] != "http://example.test" {
		t.Errorf("Cut[HOST] = %v", d.Cut["HOST"])
	}
}

func TestParseDescriptorRejectsEmptyFrameList(t *testing.T) {
	if _, err := ParseDescriptor([]byte(`{"name":"x","frames":[]}`)); err == nil {
		t.Fatal("expected error for empty frames list")
	}
}

func TestBuildPreservesDeclaredOrderAcrossReels(t *testing.T) {
	fsys := fstest.MapFS{
		"login.02s.second.fr.json": {Data: []byte(`{"protocol":"HTTP","request":{"uri":"/b"},"response":{"status":200}}`)},
		"signup.01s.first.fr.json": {Data: []byte(`{"protocol":"HTTP","request":{"uri":"/a"},"response":{"status":200}}`)},
	}
	d := &Descriptor{
		Name: "combo",
		Frames: []FrameRef{
			{Path: "login.02s.second.fr.json"},
			{Path: "signup.01s.first.fr.json"},
		},
	}

	r, err := Build(fsys, d)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.Frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(r.Frames))
	}
	// Declared order must win even though the second reel's sequence
	// number is lower than the first's.
	if r.Frames[0].Request.URI != "/b" || r.Frames[1].Request.URI != "/a" {
		t.Errorf("declared order not preserved: %s, %s", r.Frames[0].Request.URI, r.Frames[1].Request.URI)
	}
}
