package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/ops"
)

func runPurge(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("purge", flag.ContinueOnError)
	all := fs.Bool("a", false, "purge every complete job")
	metadata := fs.Bool("m", false, "also delete store rows, not just logs")
	since := fs.String("s", "", "only purge jobs started at or after this time")
	until := fs.String("u", "", "only purge jobs started at or before this time")
	force := fs.Bool("f", false, "skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse purge flags"))
		return jobmanerr.Usage.ExitCode()
	}
	ids := fs.Args()
	if (len(ids) > 0) == *all {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "purge requires either job ids or -a/--all, but not both"))
		return jobmanerr.Usage.ExitCode()
	}

	filter := ops.PurgeFilter{JobIDs: ids, All: *all, Metadata: *metadata}
	if *since != "" {
		t, err := parseTime(*since)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse -s/--since"))
			return jobmanerr.Usage.ExitCode()
		}
		filter.Since = &t
	}
	if *until != "" {
		t, err := parseTime(*until)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse -u/--until"))
			return jobmanerr.Usage.ExitCode()
		}
		filter.Until = &t
	}

	if !confirm(*force, "Purging will permanently delete all specified job history and logs. Continue?") {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "purge aborted"))
		return jobmanerr.Usage.ExitCode()
	}

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	result, err := a.ops.Purge(ctx, filter)
	if err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "purge")
		disp.Error(wrapped)
		return jobmanerr.ExitCode(wrapped)
	}

	for _, id := range result.Purged {
		disp.Data(fmt.Sprintf("purged %s", id))
	}
	for _, id := range result.Skipped {
		disp.Data(fmt.Sprintf("skipped %s: not yet complete", id))
	}
	if len(result.Skipped) > 0 || len(result.Nonexistent) > 0 {
		var msgs []string
		if len(result.Skipped) > 0 {
			msgs = append(msgs, fmt.Sprintf("skipped job id(s) not yet complete: %v", result.Skipped))
		}
		if len(result.Nonexistent) > 0 {
			msgs = append(msgs, fmt.Sprintf("unknown job id(s): %v", result.Nonexistent))
		}
		wrapped := jobmanerr.New(jobmanerr.DataErr, strings.Join(msgs, "; "))
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}
	return jobmanerr.OK.ExitCode()
}
