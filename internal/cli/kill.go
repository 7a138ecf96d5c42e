package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/sigparse"
)

func runKill(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("kill", flag.ContinueOnError)
	sigName := fs.String("s", "SIGINT", "signal to deliver")
	allowRetries := fs.Bool("r", false, "allow the supervisor to retry after this signal")
	// -f/--force is accepted for CLI compatibility with the original
	// command's surface; kill never prompts for confirmation, so it has
	// nothing to force.
	fs.Bool("f", false, "accepted for compatibility; kill never prompts")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse kill flags"))
		return jobmanerr.Usage.ExitCode()
	}
	ids := fs.Args()
	if len(ids) == 0 {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "kill requires at least one job id"))
		return jobmanerr.Usage.ExitCode()
	}
	sig, err := sigparse.Parse(*sigName)
	if err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse -s/--signal"))
		return jobmanerr.Usage.ExitCode()
	}

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	result, err := a.ops.Kill(ctx, ids, sig, *allowRetries)
	if err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "kill")
		disp.Error(wrapped)
		return jobmanerr.ExitCode(wrapped)
	}

	for _, ref := range result.KilledRuns {
		disp.Data(fmt.Sprintf("killed %s/%d", ref.JobID, ref.Attempt))
	}

	if len(result.NonexistentJobIDs) > 0 || len(result.NonrunningJobIDs) > 0 || len(result.FailedKilledRuns) > 0 {
		wrapped := jobmanerr.New(jobmanerr.DataErr, fmt.Sprintf(
			"kill had partial failures: nonexistent=%v nonrunning=%v failed=%v",
			result.NonexistentJobIDs, result.NonrunningJobIDs, result.FailedKilledRuns))
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}
	return jobmanerr.OK.ExitCode()
}
