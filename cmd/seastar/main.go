// seastar - launch and track local simulation runs
//
// Usage:
//
//	seastar run [flags] -- <command>    Run command, follow its output
//	seastar run -b <blueprint.yaml>     Run a blueprint
//	seastar tail <file>                 Follow an output file
//	seastar check <blueprint.yaml>      Validate a blueprint
//	seastar serve                       Run the HTTP API server
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/seastar-sci/seastar/internal/status"
)

// Global flags
var (
	blueprintFlag   string
	durationFlag    time.Duration
	workdirFlag     string
	prefixFlag      string
	ttyFlag         bool
	cancelOnIntFlag bool
	killFlag        bool
	listenFlag      string
	socketFlag      string
)

func main() {
	flag.StringVarP(&blueprintFlag, "blueprint", "b", "", "Run the command described by this blueprint file")
	flag.DurationVarP(&durationFlag, "duration", "d", 0, "How long to follow output (0 = until the run exits)")
	flag.StringVarP(&workdirFlag, "dir", "C", "", "Working directory for the run (default $SEASTAR_OUTPUT_DIR or .)")
	flag.StringVar(&prefixFlag, "prefix", "", "Output file prefix (default: command basename)")
	flag.BoolVar(&ttyFlag, "tty", false, "Run the command on a pseudo-terminal")
	flag.BoolVar(&cancelOnIntFlag, "cancel-on-interrupt", false, "Also cancel the run when following is interrupted")
	flag.BoolVar(&killFlag, "kill", false, "Use SIGKILL instead of SIGTERM when cancelling")
	flag.StringVar(&listenFlag, "listen", "", "TCP address for the API server (default: unix socket in the runtime dir)")
	flag.StringVar(&socketFlag, "socket", "", "Unix socket path for the API server (overrides --listen)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `seastar - launch and track local simulation runs

Usage:
  seastar run [flags] -- <command>    Run command, follow its output
  seastar run -b <blueprint.yaml>     Run a blueprint
  seastar tail <file>                 Follow an output file
  seastar check <blueprint.yaml>      Validate a blueprint
  seastar serve                       Run the HTTP API server

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Colored status output only when talking to a terminal.
	color.NoColor = color.NoColor || !term.IsTerminal(int(os.Stdout.Fd()))

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "run":
		cmdRun(cmdArgs)
	case "tail":
		if len(cmdArgs) == 0 {
			fatal("usage: seastar tail <file>")
		}
		cmdTail(cmdArgs[0])
	case "check":
		if len(cmdArgs) == 0 {
			fatal("usage: seastar check <blueprint.yaml>")
		}
		cmdCheck(cmdArgs[0])
	case "serve":
		cmdServe()
	default:
		fatal("unknown command: %s", cmd)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// statusColor maps each lifecycle state to a display color.
func statusColor(s status.ExecutionStatus) *color.Color {
	switch s {
	case status.Running:
		return color.New(color.FgCyan)
	case status.Completed:
		return color.New(color.FgGreen)
	case status.Cancelled:
		return color.New(color.FgYellow)
	case status.Failed:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

func printStatus(s status.ExecutionStatus) {
	fmt.Printf("status: %s\n", statusColor(s).Sprint(s))
}
