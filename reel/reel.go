// Package reel implements the Reel Loader: discovering and ordering the
// Frames of a named reel within a directory (or any io/fs.FS).
package reel

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
)

// Reel is an ordered, deduplicated list of Frames sharing a reel name,
// plus any base Cut loaded from a <reel_name>.cut.json sibling.
type Reel struct {
	Name   string
	Frames []*frame.Frame
	Cut    map[string]interface{}
}

// item pairs a parsed Frame with the Metadata its filename yielded, kept
// together until the ordering-key sort and duplicate check are done.
type item struct {
	meta frame.Metadata
	fr   *frame.Frame
}

// Load discovers every file in fsys matching <name>.<seq><type>[_<sub>].<command>.fr.json,
// parses and validates each as a Frame, sorts them by ordering key, and
// rejects duplicate (seq,type,sub) tuples. If a <name>.cut.json sibling
// exists it is decoded as the Reel's base Cut.
func Load(fsys fs.FS, name string) (*Reel, error) {
	return load(fsys, name, false)
}

// LoadStrict is Load, but each Frame is decoded with frame.ParseStrict so a
// Frame violating the envelope schema is rejected; Load decodes it without
// the schema check.
func LoadStrict(fsys fs.FS, name string) (*Reel, error) {
	return load(fsys, name, true)
}

func load(fsys fs.FS, name string, strict bool) (*Reel, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindReelLoad, "reading reel directory", err)
	}

	var items []item

	prefix := name + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fname := e.Name()
		if !strings.HasPrefix(fname, prefix) || !strings.HasSuffix(fname, ".fr.json") {
			continue
		}

		meta, err := frame.ParseFilename(fname)
		if err != nil {
			return nil, err
		}
		if meta.ReelName != name {
			continue
		}

		data, err := fs.ReadFile(fsys, fname)
		if err != nil {
			return nil, dmerror.Wrap(dmerror.KindReelLoad, fmt.Sprintf("reading %s", fname), err)
		}
		var fr *frame.Frame
		if strict {
			fr, err = frame.ParseStrict(data)
		} else {
			fr, err = frame.Parse(data)
		}
		if err != nil {
			return nil, err
		}
		fr.Metadata = meta

		items = append(items, item{meta: meta, fr: fr})
	}

	if err := checkDuplicates(items); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return less(items[i].meta.OrderKey(), items[j].meta.OrderKey())
	})

	r := &Reel{Name: name}
	for _, it := range items {
		r.Frames = append(r.Frames, it.fr)
	}

	cutFile := name + ".cut.json"
	if data, err := fs.ReadFile(fsys, cutFile); err == nil {
		var base map[string]interface{}
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		if err := dec.Decode(&base); err != nil {
			return nil, dmerror.Wrap(dmerror.KindReelLoad, fmt.Sprintf("decoding %s", cutFile), err)
		}
		r.Cut = base
	}

	return r, nil
}

func checkDuplicates(items []item) error {
	seen := make(map[[3]uint64]string)
	for _, it := range items {
		key := it.meta.OrderKey()
		if prior, ok := seen[key]; ok {
			return dmerror.New(dmerror.KindReelLoad,
				fmt.Sprintf("duplicate frame (seq=%d type=%s sub=%d): %s collides with %s",
					it.meta.Seq, it.meta.Type, it.meta.Sub, it.meta.Filename, prior))
		}
		seen[key] = it.meta.Filename
	}
	return nil
}

func less(a, b [3]uint64) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Names lists the distinct reel names discoverable in fsys by scanning
// for *.fr.json filenames, without fully loading them. Filenames that do
// not parse as Frame filenames are skipped.
func Names(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindReelLoad, "reading reel directory", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".fr.json") {
			continue
		}
		meta, err := frame.ParseFilename(e.Name())
		if err != nil {
			continue
		}
		if !seen[meta.ReelName] {
			seen[meta.ReelName] = true
			names = append(names, meta.ReelName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// componentFrames filters fr to only the success-type "prelude" frames
// used when this reel is included as a component reel, per spec.md §4.7:
// a component reel contributes only its `s`-type frames.
func componentFrames(frames []*frame.Frame) []*frame.Frame {
	var out []*frame.Frame
	for _, f := range frames {
		if f.Metadata.Type == frame.TypeSuccess {
			out = append(out, f)
		}
	}
	return out
}

// ComponentPrelude returns this reel's Frames filtered down to the
// success-type subset usable as another reel's component-reel prelude.
func (r *Reel) ComponentPrelude() []*frame.Frame {
	return componentFrames(r.Frames)
}

// Base returns the directory portion of a path, for building an fs.FS
// rooted at a reel's containing directory.
func Base(path string) string {
	return filepath.Dir(path)
}
