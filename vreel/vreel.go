// Package vreel implements VirtualReel: a synthetic Reel assembled from
// Frame files drawn from multiple paths with an overriding Cut, per
// spec.md §4.8.
package vreel

import (
	"encoding/json"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/reel"
)

// FrameRef is one entry of a VirtualReel Descriptor's frames list: either
// a bare path (name defaults to its basename) or an explicit {name, path}.
type FrameRef struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

// UnmarshalJSON accepts either a bare JSON string or a {name,path} object.
func (r *FrameRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Path = s
		r.Name = path.Base(s)
		return nil
	}
	type alias FrameRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = FrameRef(a)
	if r.Name == "" {
		r.Name = path.Base(r.Path)
	}
	return nil
}

// Descriptor is a *.vr.json VirtualReel Descriptor.
type Descriptor struct {
	Name   string                 `json:"name"`
	Frames []FrameRef             `json:"frames"`
	Cut    map[string]interface{} `json:"cut,omitempty"`
}

// ParseDescriptor decodes a VirtualReel Descriptor from raw *.vr.json bytes.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, dmerror.Wrap(dmerror.KindReelLoad, "malformed virtual reel descriptor", err)
	}
	if d.Name == "" {
		return nil, dmerror.New(dmerror.KindReelLoad, "virtual reel descriptor missing name")
	}
	if len(d.Frames) == 0 {
		return nil, dmerror.New(dmerror.KindReelLoad, "virtual reel descriptor has no frames")
	}
	return &d, nil
}

// Build loads each referenced Frame (in declared order, from fsys rooted
// at the descriptor's own directory) into a reel.Reel carrying the
// descriptor's name and override Cut. Unlike reel.Load, frame order is
// exactly the declared list — no ordering-key sort, no duplicate check,
// since spec.md §4.8 treats VirtualReel frame order as authoritative.
func Build(fsys fs.FS, d *Descriptor) (*reel.Reel, error) {
	r := &reel.Reel{Name: d.Name, Cut: d.Cut}

	for _, ref := range d.Frames {
		data, err := fs.ReadFile(fsys, ref.Path)
		if err != nil {
			return nil, dmerror.Wrap(dmerror.KindReelLoad,
				"reading virtual reel frame "+ref.Path, err)
		}
		f, err := frame.Parse(data)
		if err != nil {
			return nil, err
		}

		meta, err := frame.ParseFilename(path.Base(ref.Path))
		if err != nil {
			// A frame borrowed into a VirtualReel need not follow the
			// directory-scoped naming convention; fall back to a
			// synthetic, order-preserving Metadata.
			meta = frame.Metadata{ReelName: d.Name, Filename: ref.Name}
		}
		f.Metadata = meta

		r.Frames = append(r.Frames, f)
	}

	return r, nil
}

// ResolvePaths rewrites each FrameRef's Path to be relative to base, for
// callers driving Build from an fs.FS rooted elsewhere than the
// descriptor file's own directory.
func ResolvePaths(d *Descriptor, base string) {
	for i := range d.Frames {
		if !filepath.IsAbs(d.Frames[i].Path) {
			d.Frames[i].Path = filepath.Join(base, d.Frames[i].Path)
		}
	}
}
