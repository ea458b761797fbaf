// Command tenderoni-log is a tool for viewing and analyzing connection event
// log files.
//
// Log files are written by tenderoni when it runs with the -event-log flag.
//
// Usage:
//
//	tenderoni-log <command> [flags] <file.wlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON or CSV format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	tenderoni-log view boot.wlog
//
//	# View one cycle's radio events
//	tenderoni-log view --cycle 3f2a9c1e-... --category radio boot.wlog
//
//	# Export to JSONL
//	tenderoni-log export --format jsonl boot.wlog
//
//	# Show statistics
//	tenderoni-log stats boot.wlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tenderoni/tenderoni-go/cmd/tenderoni-log/commands"
)

const usage = `tenderoni-log - Connection Event Log Analyzer

Usage:
  tenderoni-log <command> [flags] <file.wlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON or CSV format
  stats    Show statistics about the log file

Use "tenderoni-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tenderoni-log view - View log file in human-readable format

Usage:
  tenderoni-log view [flags] <file.wlog>

Flags:
`)
		fs.PrintDefaults()
	}

	cycle := fs.String("cycle", "", "Filter by cycle ID")
	category := fs.String("category", "", "Filter by category (state, radio, outcome, error)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	filter := commands.ViewFilter{CycleID: *cycle}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Category = &c
	}

	if *timeStart != "" {
		t, err := commands.ParseTimeFlag(*timeStart)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.TimeStart = &t
	}

	if *timeEnd != "" {
		t, err := commands.ParseTimeFlag(*timeEnd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.TimeEnd = &t
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tenderoni-log export - Export log file to JSON or CSV format

Usage:
  tenderoni-log export [flags] <file.wlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunExport(fs.Arg(0), *format, *output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `tenderoni-log stats - Show statistics about the log file

Usage:
  tenderoni-log stats <file.wlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	if err := commands.RunStats(fs.Arg(0), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
