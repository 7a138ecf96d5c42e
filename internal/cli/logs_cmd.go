package cli

import (
	"context"
	"flag"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/ops"
	"github.com/ryancswallace/jobman/internal/store"
)

func runLogs(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	hideStdout := fs.Bool("o", false, "hide stdout")
	hideStderr := fs.Bool("e", false, "hide stderr")
	follow := fs.Bool("f", false, "tail logs as they arrive")
	noPrefix := fs.Bool("x", false, "omit the job/attempt/stream prefix")
	tail := fs.Int("n", 0, "show only the last N lines")
	since := fs.String("s", "", "only include runs started at or after this time")
	until := fs.String("u", "", "only include runs started at or before this time")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse logs flags"))
		return jobmanerr.Usage.ExitCode()
	}
	ids := fs.Args()
	if len(ids) != 1 {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "logs requires exactly one job id"))
		return jobmanerr.Usage.ExitCode()
	}

	filter := ops.LogFilter{
		Tail:        *tail,
		HideStdout:  *hideStdout,
		HideStderr:  *hideStderr,
		NoLogPrefix: *noPrefix,
		Follow:      *follow,
	}
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

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	err = a.ops.Logs(ctx, ids[0], filter, func(l ops.LogLine) {
		disp.Line("%s", l.Render(filter.NoLogPrefix))
	})
	if err == store.ErrNotFound {
		wrapped := jobmanerr.New(jobmanerr.Unavailable, "unknown job id: "+ids[0])
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}
	if err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.Internal, err, "logs")
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}
	return jobmanerr.OK.ExitCode()
}
