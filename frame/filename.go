package frame

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Comcast/darkroom/dmerror"
)

// filenamePattern implements spec.md §3's Frame Filename grammar:
// <reel>.<seq><type>[_<sub>].<command>.fr.json
var filenamePattern = regexp.MustCompile(
	`^(?P<reel>.+)\.(?P<seq>\d+)(?P<type>se|s|e)(?:_(?P<sub>\d+))?\.(?P<command>[^.]+)\.fr\.json$`,
)

// Metadata is the positional information a Reel derives from a Frame's
// filename: its place in the ordering key and the reel it belongs to.
type Metadata struct {
	ReelName string
	Seq      uint64
	Type     Type
	Sub      uint64
	Command  string
	Filename string
}

// OrderKey returns the tuple a Reel sorts Frames by: (seq, type_rank, sub).
func (m Metadata) OrderKey() [3]uint64 {
	return [3]uint64{m.Seq, uint64(m.Type.rank()), m.Sub}
}

// ParseFilename extracts Metadata from a single Frame filename, per
// spec.md §3. The filename is matched in isolation; directory-level
// duplicate detection belongs to the reel package.
func ParseFilename(name string) (Metadata, error) {
	match := filenamePattern.FindStringSubmatch(name)
	if match == nil {
		return Metadata{}, dmerror.New(dmerror.KindReelLoad,
			fmt.Sprintf("filename %q does not match <reel>.<seq><type>[_<sub>].<command>.fr.json", name))
	}

	groups := make(map[string]string, len(match))
	for i, g := range filenamePattern.SubexpNames() {
		if i == 0 || g == "" {
			continue
		}
		groups[g] = match[i]
	}

	seq, err := strconv.ParseUint(groups["seq"], 10, 64)
	if err != nil {
		return Metadata{}, dmerror.Wrap(dmerror.KindReelLoad, "sequence number", err)
	}

	var sub uint64
	if s := groups["sub"]; s != "" {
		sub, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Metadata{}, dmerror.Wrap(dmerror.KindReelLoad, "sub-sequence number", err)
		}
	}

	t := Type(groups["type"])
	if !t.Valid() {
		return Metadata{}, dmerror.New(dmerror.KindReelLoad,
			fmt.Sprintf("filename %q has unknown frame type %q", name, groups["type"]))
	}

	return Metadata{
		ReelName: groups["reel"],
		Seq:      seq,
		Type:     t,
		Sub:      sub,
		Command:  groups["command"],
		Filename: name,
	}, nil
}
