// Package record implements the Reel Player ("record"): sequencing a
// Reel's Frames in order against a shared register, honoring range
// gating, component-reel preludes, and interactive stepping, per
// spec.md §4.7.
package record

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/reel"
	"github.com/Comcast/darkroom/take"
)

// Decision is the outcome of an interactive prompt for one Frame.
type Decision int

const (
	Proceed Decision = iota
	Skip
	Abort
)

// Prompter asks whether to proceed with, skip, or abort the next Frame,
// used only when Options.Interactive is set.
type Prompter func(f *frame.Frame) Decision

// Range gates execution to frames whose whole sequence number falls in
// [Lo, Hi] inclusive; a zero Hi means unbounded.
type Range struct {
	Lo, Hi uint64
}

func (r Range) includes(seq uint64) bool {
	if seq < r.Lo {
		return false
	}
	if r.Hi != 0 && seq > r.Hi {
		return false
	}
	return true
}

// Options configures one Run.
type Options struct {
	Range       Range
	Components  []*reel.Reel // already-loaded component reels, in --component order
	Interactive bool
	Prompt      Prompter
	TakeOpts    take.Options
	OnTake      func(*take.Materialized) // optional per-Frame emission hook
}

// Result summarizes one Reel Player run.
type Result struct {
	Takes   []*take.Materialized
	Skipped []string
}

// Run executes reelValue's frames (with any component prelude) in
// ordering-key order against reg, per spec.md §4.7. It stops at the
// first Frame failure and returns that error; reg reflects every
// successfully completed Frame's write phase up to that point.
func Run(ctx context.Context, reelValue *reel.Reel, reg *cut.Register, opts Options) (Result, error) {
	var result Result

	var sequence []*frame.Frame
	for _, comp := range opts.Components {
		sequence = append(sequence, comp.ComponentPrelude()...)
	}
	sequence = append(sequence, reelValue.Frames...)

	for _, f := range sequence {
		if !opts.Range.includes(f.Metadata.Seq) {
			result.Skipped = append(result.Skipped, f.Metadata.Filename)
			continue
		}

		if opts.Interactive {
			decision := Proceed
			if opts.Prompt != nil {
				decision = opts.Prompt(f)
			}
			switch decision {
			case Skip:
				result.Skipped = append(result.Skipped, f.Metadata.Filename)
				continue
			case Abort:
				return result, dmerror.New(dmerror.KindTransport, "aborted interactively").WithFrame(f.Metadata.Filename)
			}
		}

		m, err := take.Execute(ctx, f, reg, opts.TakeOpts)
		if err != nil {
			return result, err
		}
		result.Takes = append(result.Takes, m)
		if opts.OnTake != nil {
			opts.OnTake(m)
		}
	}

	return result, nil
}

// NewStdinPrompter builds a Prompter that reads a single line
// (p/s/a → proceed/skip/abort) from in, writing its question to out.
func NewStdinPrompter(in io.Reader, out io.Writer) Prompter {
	scanner := bufio.NewScanner(in)
	return func(f *frame.Frame) Decision {
		fmt.Fprintf(out, "run %s? [p]roceed/[s]kip/[a]bort: ", f.Metadata.Filename)
		if !scanner.Scan() {
			return Abort
		}
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "s", "skip":
			return Skip
		case "a", "abort":
			return Abort
		default:
			return Proceed
		}
	}
}
