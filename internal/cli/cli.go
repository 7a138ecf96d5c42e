// Package cli defines the jobman command-line executable: global flag
// parsing, subcommand dispatch, and the hidden reexec entrypoints the
// detacher and abort monitor hand control back to.
//
// Grounded on tjper-teleport's internal/jobworker/cli.Run shape (flag.Parse
// then switch on a positional subcommand token), adapted here to dispatch
// on the FIRST positional argument rather than the last, since jobman's
// subcommand is `jobman SUBCOMMAND [flags] ...` rather than
// `jobworker [flags] SUBCOMMAND`.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/reexec"
)

// version is the executable's reported version.
const version = "0.1.0"

const (
	subRun                = "run"
	subStatus             = "status"
	subLogs               = "logs"
	subKill               = "kill"
	subLs                 = "ls"
	subPurge              = "purge"
	subReset              = "reset"
	subInstallCompletions = "install-completions"
)

// Run is the entrypoint of the jobman executable. It returns the process
// exit code that should terminate the process for the outcome.
func Run() int {
	args := os.Args[1:]
	if len(args) == 0 {
		return help("")
	}

	// The hidden reexec subcommands never carry jobman's own global flags;
	// detach.Spawn/RunStep1/abort.Spawn invoke the executable with the
	// marker as argv[1] directly.
	switch args[0] {
	case reexec.DetachStep1, reexec.DetachStep2, reexec.AbortMonitor:
		return runReexec(context.Background(), args[0], args[1:])
	}

	fs := flag.NewFlagSet("jobman", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	quiet := fs.Bool("quiet", false, "suppress non-essential output")
	fs.BoolVar(quiet, "q", false, "alias for -quiet")
	jsonOut := fs.Bool("json", false, "emit structured JSON output")
	fs.BoolVar(jsonOut, "j", false, "alias for -json")
	plain := fs.Bool("plain", false, "emit unstyled plain output")
	fs.BoolVar(plain, "p", false, "alias for -plain")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.BoolVar(debug, "d", false, "alias for -debug")
	showHelp := fs.Bool("help", false, "show usage")
	fs.BoolVar(showHelp, "h", false, "alias for -help")
	showVersion := fs.Bool("version", false, "show version")
	fs.BoolVar(showVersion, "V", false, "alias for -version")

	if err := fs.Parse(args); err != nil {
		return jobmanerr.Usage.ExitCode()
	}
	if *showVersion {
		fmt.Fprintln(os.Stdout, version)
		return jobmanerr.OK.ExitCode()
	}
	if *showHelp {
		return help("")
	}
	if *jsonOut && *plain {
		fmt.Fprintln(os.Stderr, "ERROR! -j/--json and -p/--plain are mutually exclusive")
		return jobmanerr.Config.ExitCode()
	}

	mode := displayPretty
	switch {
	case *jsonOut:
		mode = displayJSON
	case *plain:
		mode = displayPlain
	}
	disp := &display{mode: mode, quiet: *quiet, stdout: os.Stdout, stderr: os.Stderr}

	rest := fs.Args()
	if len(rest) == 0 {
		return help("Too few arguments")
	}
	sub, subArgs := rest[0], rest[1:]
	ctx := context.Background()

	switch sub {
	case subRun:
		return runRun(ctx, disp, *debug, subArgs)
	case subStatus:
		return runStatus(ctx, disp, *debug, subArgs)
	case subLogs:
		return runLogs(ctx, disp, *debug, subArgs)
	case subKill:
		return runKill(ctx, disp, *debug, subArgs)
	case subLs:
		return runLs(ctx, disp, *debug, subArgs)
	case subPurge:
		return runPurge(ctx, disp, *debug, subArgs)
	case subReset:
		return runReset(ctx, disp, *debug, subArgs)
	case subInstallCompletions:
		return runInstallCompletions(disp, subArgs)
	default:
		return help(fmt.Sprintf("Unrecognized subcommand %q.", sub))
	}
}

// help prints usage and an optional notice, returning the Usage exit code.
func help(text string) int {
	var b strings.Builder
	if text != "" {
		fmt.Fprintf(&b, "\nNotice: %s\n", text)
	}
	b.WriteString(`
Jobman runs a shell command in the background, detached from the
controlling terminal, and records enough state that later invocations can
inspect, tail, signal, or garbage-collect it.

Usage:
  jobman [global flags] COMMAND [command flags] ...

Available Commands:
  run                   Submit and detach a new job.
  status                Show the recorded state of one or more jobs.
  logs                  Read or tail a job's stdout/stderr.
  kill                  Signal a job's running attempt.
  ls                    List jobs.
  purge                 Delete logs (and optionally metadata) for complete jobs.
  reset                 Destroy and recreate jobman's storage.
  install-completions   Install a shell completion hook.

Global Flags:
  -q, --quiet    suppress non-essential output
  -j, --json     emit structured JSON output
  -p, --plain    emit unstyled plain output
  -d, --debug    enable debug logging
  -h, --help     show this message
  -V, --version  show the executable's version
`)
	fmt.Fprint(os.Stdout, b.String())
	if text != "" {
		return jobmanerr.Usage.ExitCode()
	}
	return jobmanerr.OK.ExitCode()
}
