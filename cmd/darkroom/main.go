// Command darkroom runs filmReel contract tests: single Frames (take),
// whole Reels (record), and VirtualReels assembled across directories
// (vrecord).
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the CLI entrypoint, split out from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "take":
		return runTakeCmd(args[2:], stdout, stderr)
	case "record":
		return runRecordCmd(args[2:], stdout, stderr)
	case "vrecord":
		return runVRecordCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "darkroom: unknown subcommand %q\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: darkroom <take|record|vrecord> [flags]")
	fmt.Fprintln(w, "  take <frame...> -c <cut> [-o <file>]")
	fmt.Fprintln(w, "  record <reel_dir> <reel_name> [merge_cuts...] [-c <cut>] [-b <dir&reel>...] [-o <dir>] [-r <lo:hi>] [-t <secs>] [-i] [-s] [-d]")
	fmt.Fprintln(w, "  vrecord <vr.json>")
}
