package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/darkroom/config"
	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/reel"
	"github.com/Comcast/darkroom/record"
	"github.com/Comcast/darkroom/selector"
	"github.com/Comcast/darkroom/take"
	"github.com/Comcast/darkroom/takestore"
	"github.com/Comcast/darkroom/transport"
)

// runRecordCmd implements:
//
//	darkroom record <reel_dir> <reel_name> [merge_cuts...] \
//	    [-c <cut>] [-b <dir&reel>...] [-o <dir>] [-r <lo:hi>] [-t <secs>] [-i] [-s] [-d]
func runRecordCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("record", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		cutFile      string
		components   multiFlag
		outDir       string
		rangeStr     string
		timeoutSecs  int
		interactive  bool
		strictSchema bool
		takeDBPath   string
		selectorLang string
	)
	cmd.StringVar(&cutFile, "c", "", "base cut file")
	cmd.Var(&components, "b", `component reel, "<dir>&<reel>" (repeatable)`)
	cmd.StringVar(&outDir, "o", "", "directory to write the final register (<reel_name>.cut.json) into; per-frame takes are not written")
	cmd.StringVar(&rangeStr, "r", "", "whole-sequence range lo:hi (hi omitted = unbounded)")
	cmd.IntVar(&timeoutSecs, "t", 0, "dispatch timeout in seconds (0 = use config default)")
	cmd.BoolVar(&interactive, "i", false, "prompt before each frame")
	cmd.BoolVar(&strictSchema, "s", false, "validate frames against the strict envelope schema")
	cmd.StringVar(&takeDBPath, "d", "", "optional bbolt take-store path (takestore)")
	cmd.StringVar(&selectorLang, "selector-lang", "", `selector language: "" (dotted path, default) or "cel"`)

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 2 {
		fmt.Fprintln(stderr, "darkroom record: usage: record <reel_dir> <reel_name> [merge_cuts...]")
		return 2
	}

	reelDir := cmd.Arg(0)
	reelName := cmd.Arg(1)
	mergeCuts := cmd.Args()[2:]

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if strictSchema {
		cfg.StrictSchema = true
	}
	if selectorLang != "" {
		cfg.SelectorLang = selectorLang
	}

	lo, hi, err := parseRange(rangeStr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	loadReel := reel.Load
	if cfg.StrictSchema {
		loadReel = reel.LoadStrict
	}

	fsys := os.DirFS(reelDir)
	r, err := loadReel(fsys, reelName)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var compReels []*reel.Reel
	for _, c := range components {
		dir, name, ok := strings.Cut(c, "&")
		if !ok {
			fmt.Fprintf(stderr, "darkroom record: malformed -b %q, expected \"<dir>&<reel>\"\n", c)
			return 2
		}
		compReel, err := loadReel(os.DirFS(dir), name)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		compReels = append(compReels, compReel)
	}

	var baseCut map[string]interface{}
	if r.Cut != nil {
		baseCut = r.Cut
	}
	if cutFile != "" {
		sources, err := loadCutSources([]string{cutFile})
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		merged, err := cut.Merge(baseCut, sources[0])
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		baseCut = merged.Snapshot()
	}
	reg, err := buildRegister(baseCut, mergeCuts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	adapter, err := newRoutingAdapter()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var store *takestore.Store
	if takeDBPath != "" {
		store, err = takestore.Open(takeDBPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		defer store.Close()
	}
	runID := takestore.NewRunID()

	timeout := cfg.Timeout
	if timeoutSecs > 0 {
		timeout = time.Duration(timeoutSecs) * time.Second
	}

	opts := record.Options{
		Range:       record.Range{Lo: lo, Hi: hi},
		Components:  compReels,
		Interactive: interactive,
		TakeOpts: take.Options{
			Adapter:      adapter,
			Timeout:      timeout,
			Fallback:     transport.Fallback{},
			SelectorLang: selector.Language(cfg.SelectorLang),
		},
	}
	if interactive {
		opts.Prompt = record.NewStdinPrompter(os.Stdin, stdout)
	}
	if store != nil {
		opts.OnTake = func(m *take.Materialized) {
			if err := store.Record(runID, reelName, m, stampNow()); err != nil {
				logger.Warn("failed to record take", "error", err)
			}
		}
	}

	result, runErr := record.Run(context.Background(), r, reg, opts)

	for _, m := range result.Takes {
		fmt.Fprintf(stdout, "ok %s (status %d)\n", m.Frame.Metadata.Filename, m.Status)
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(stdout, "skip %s\n", skipped)
	}

	if outDir != "" {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		js, err := reg.MarshalJSON()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		if err := os.WriteFile(outDir+"/"+reelName+".cut.json", js, 0644); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	if runErr != nil {
		logger.Error("record failed", "kind", dmerror.KindOf(runErr), "error", runErr)
		return 1
	}
	return 0
}

func stampNow() time.Time { return time.Now() }

func parseRange(s string) (lo, hi uint64, err error) {
	if s == "" {
		return 0, 0, nil
	}
	before, after, _ := strings.Cut(s, ":")
	lo, err = strconv.ParseUint(before, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("darkroom record: invalid range %q: %w", s, err)
	}
	if after == "" {
		return lo, 0, nil
	}
	hi, err = strconv.ParseUint(after, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("darkroom record: invalid range %q: %w", s, err)
	}
	return lo, hi, nil
}
