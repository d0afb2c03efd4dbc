package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Comcast/darkroom/config"
	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/record"
	"github.com/Comcast/darkroom/selector"
	"github.com/Comcast/darkroom/take"
	"github.com/Comcast/darkroom/takestore"
	"github.com/Comcast/darkroom/transport"
	"github.com/Comcast/darkroom/vreel"
)

// runVRecordCmd implements `darkroom vrecord <descriptor.vr.json> [merge_cuts...]
// [-c <cut>] [-o <dir>] [-t <secs>] [-i] [-d <take_db>]`, assembling and
// playing a VirtualReel. The descriptor's inline cut is merged last, over
// the -c cut file and the positional merge cuts.
func runVRecordCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("vrecord", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		cutFile     string
		outDir      string
		timeoutSecs int
		interactive bool
		takeDBPath  string
	)
	cmd.StringVar(&cutFile, "c", "", "additional cut file, overridden by the descriptor's own cut")
	cmd.StringVar(&outDir, "o", "", "directory to write the resulting cut file into")
	cmd.IntVar(&timeoutSecs, "t", 0, "dispatch timeout in seconds (0 = use config default)")
	cmd.BoolVar(&interactive, "i", false, "prompt before each frame")
	cmd.StringVar(&takeDBPath, "d", "", "optional bbolt take-store path (takestore)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "darkroom vrecord: usage: vrecord <descriptor.vr.json> [merge_cuts...]")
		return 2
	}

	descPath := cmd.Arg(0)
	mergeCuts := cmd.Args()[1:]

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	data, err := os.ReadFile(descPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	desc, err := vreel.ParseDescriptor(data)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	vreel.ResolvePaths(desc, filepath.Dir(descPath))

	r, err := vreel.Build(os.DirFS("."), desc)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	var baseCut map[string]interface{}
	if cutFile != "" {
		sources, err := loadCutSources([]string{cutFile})
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		baseCut = sources[0]
	}
	built, err := buildRegister(baseCut, mergeCuts)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	reg, err := cut.Merge(built.Snapshot(), desc.Cut)
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
			if err := store.Record(runID, desc.Name, m, stampNow()); err != nil {
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
		if err := os.WriteFile(filepath.Join(outDir, desc.Name+".cut.json"), js, 0644); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	if runErr != nil {
		logger.Error("vrecord failed", "kind", dmerror.KindOf(runErr), "error", runErr)
		return 1
	}
	return 0
}
