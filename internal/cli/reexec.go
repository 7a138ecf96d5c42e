package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ryancswallace/jobman/internal/abort"
	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/detach"
	"github.com/ryancswallace/jobman/internal/hostid"
	"github.com/ryancswallace/jobman/internal/jlog"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/reexec"
	"github.com/ryancswallace/jobman/internal/store"
	"github.com/ryancswallace/jobman/internal/supervisor"
)

// runReexec dispatches one of the three hidden subcommands the detacher and
// abort monitor hand control to: the two double-fork hops and the abort
// monitor loop.
func runReexec(ctx context.Context, marker string, args []string) int {
	switch marker {
	case reexec.DetachStep1:
		if err := detach.RunStep1(args); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR! %v\n", err)
			return jobmanerr.OS.ExitCode()
		}
		return jobmanerr.OK.ExitCode()
	case reexec.DetachStep2:
		return runDetachStep2(ctx, args)
	case reexec.AbortMonitor:
		if err := abort.RunMonitorSubcommand(ctx, args); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR! %v\n", err)
			return jobmanerr.OS.ExitCode()
		}
		return jobmanerr.OK.ExitCode()
	default:
		fmt.Fprintf(os.Stderr, "ERROR! unrecognized reexec marker %q\n", marker)
		return jobmanerr.Usage.ExitCode()
	}
}

// runDetachStep2 is the fully-detached grandchild's entrypoint: it is the
// supervisor process for the job named by args[0].
func runDetachStep2(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "ERROR! detach-step2 expects exactly one job id, got %d\n", len(args))
		return jobmanerr.Usage.ExitCode()
	}
	jobID := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR! %v\n", err)
		return jobmanerr.ExitCode(err)
	}
	hid, err := hostid.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR! %v\n", err)
		return jobmanerr.OS.ExitCode()
	}
	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR! %v\n", err)
		return jobmanerr.Internal.ExitCode()
	}
	defer s.Close()

	logFile, ferr := os.OpenFile(jlogPath(cfg.StoragePath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	var log *jlog.Logger
	if ferr != nil {
		log = jlog.New(os.Stderr, "jobman["+jobID+"]: ")
	} else {
		defer logFile.Close()
		log = jlog.New(logFile, "jobman["+jobID+"]: ")
	}

	if err := supervisor.RunDetached(ctx, cfg, s, hid, jobID, log); err != nil {
		log.Errorf("supervisor run %s: %v", jobID, err)
		return jobmanerr.ExitCode(err)
	}
	return jobmanerr.OK.ExitCode()
}

func jlogPath(storagePath string) string {
	return filepath.Join(storagePath, "supervisor.log")
}
