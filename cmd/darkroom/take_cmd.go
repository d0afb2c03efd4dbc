package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Comcast/darkroom/config"
	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
	"github.com/Comcast/darkroom/selector"
	"github.com/Comcast/darkroom/take"
	"github.com/Comcast/darkroom/transport"
)

// runTakeCmd implements `darkroom take <frame...> -c <cut> [-o <file>]`.
//
// Exit codes:
//
//	0 = the Frame matched
//	1 = a Form/Value/Status mismatch, or a transport/register error
//	2 = usage or configuration error
func runTakeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("take", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		cutFile      string
		outFile      string
		strictSchema bool
	)
	cmd.StringVar(&cutFile, "c", "", "cut file to seed the register")
	cmd.StringVar(&outFile, "o", "", "write the materialized take to this path (of the last frame that succeeded, when several are given)")
	cmd.BoolVar(&strictSchema, "strict-schema", false, "validate each frame against the strict envelope schema before decoding")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() == 0 {
		fmt.Fprintln(stderr, "darkroom take: at least one frame file is required")
		return 2
	}

	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if strictSchema {
		cfg.StrictSchema = true
	}

	var base map[string]interface{}
	if cutFile != "" {
		sources, err := loadCutSources([]string{cutFile})
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		base = sources[0]
	}
	reg, err := cut.Merge(base)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	adapter, err := newRoutingAdapter()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	failed := false
	var lastTake *take.Materialized
	for _, path := range cmd.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}

		var f *frame.Frame
		if cfg.StrictSchema {
			f, err = frame.ParseStrict(data)
		} else {
			f, err = frame.Parse(data)
		}
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		if len(f.Warnings()) > 0 {
			logger.Warn("frame parsed with warnings", "frame", path, "warnings", f.Warnings())
		}

		m, err := take.Execute(context.Background(), f, reg, take.Options{
			Adapter:      adapter,
			Timeout:      cfg.Timeout,
			Fallback:     transport.Fallback{},
			SelectorLang: selector.Language(cfg.SelectorLang),
		})
		if err != nil {
			logger.Error("take failed", "frame", path, "kind", dmerror.KindOf(err), "error", err)
			failed = true
			continue
		}
		lastTake = m
		fmt.Fprintf(stdout, "ok %s (status %d)\n", path, m.Status)
	}

	if outFile != "" && lastTake != nil {
		js, err := json.Marshal(lastTake)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
		if err := os.WriteFile(outFile, js, 0644); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}

	if failed {
		return 1
	}
	return 0
}
