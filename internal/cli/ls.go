package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

func runLs(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	all := fs.Bool("a", false, "include complete jobs")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse ls flags"))
		return jobmanerr.Usage.ExitCode()
	}

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	jobs, err := a.ops.Ls(ctx, *all)
	if err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "ls")
		disp.Error(wrapped)
		return jobmanerr.ExitCode(wrapped)
	}

	for _, j := range jobs {
		disp.Data(fmt.Sprintf("%s\t%s\t%s", j.JobID, j.State, j.Command))
	}
	return jobmanerr.OK.ExitCode()
}
