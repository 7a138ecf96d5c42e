package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

func runStatus(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse status flags"))
		return jobmanerr.Usage.ExitCode()
	}
	ids := fs.Args()
	if len(ids) == 0 {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "status requires at least one job id"))
		return jobmanerr.Usage.ExitCode()
	}

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	result, err := a.ops.Status(ctx, ids)
	if err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "status")
		disp.Error(wrapped)
		return jobmanerr.ExitCode(wrapped)
	}
	if len(result.MissingIDs) > 0 {
		wrapped := jobmanerr.New(jobmanerr.Unavailable, fmt.Sprintf("unknown job id(s): %v", result.MissingIDs))
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}

	for _, jr := range result.Jobs {
		disp.Data(fmt.Sprintf("%s\t%s\truns=%d", jr.Job.JobID, jr.Job.State, len(jr.Runs)))
	}
	return jobmanerr.OK.ExitCode()
}
