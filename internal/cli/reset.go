package cli

import (
	"context"
	"flag"

	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/ops"
	"github.com/ryancswallace/jobman/internal/store"
)

func runReset(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	force := fs.Bool("f", false, "skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse reset flags"))
		return jobmanerr.Usage.ExitCode()
	}

	if !confirm(*force, "Resetting will permanently delete all job history and logs. Continue?") {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "reset aborted"))
		return jobmanerr.Usage.ExitCode()
	}

	cfg, err := config.Load()
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}

	var current *store.Store
	if s, err := store.Open(ctx, cfg.DBPath); err == nil {
		current = s
	}

	if _, err := ops.Reset(ctx, cfg.DBPath, cfg.StdioPath, current); err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "reset")
		disp.Error(wrapped)
		return jobmanerr.ExitCode(wrapped)
	}

	disp.Line("jobman storage reset")
	return jobmanerr.OK.ExitCode()
}
