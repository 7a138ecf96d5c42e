package cli

import (
	"context"
	"flag"

	"github.com/ryancswallace/jobman/internal/detach"
	"github.com/ryancswallace/jobman/internal/duration"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/ops"
	"github.com/ryancswallace/jobman/internal/supervisor"
)

func runRun(ctx context.Context, disp *display, debug bool, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	waitTime := fs.String("wait-time", "", "absolute time before which the job does not launch")
	waitDuration := fs.String("wait-duration", "", "duration to wait from submission before launch")
	var waitForFiles repeatableFlag
	fs.Var(&waitForFiles, "wait-for-file", "path that must exist before launch (repeatable)")
	abortTime := fs.String("abort-time", "", "absolute time after which the run is aborted")
	abortDuration := fs.String("abort-duration", "", "duration after submission after which the run is aborted")
	var abortForFiles repeatableFlag
	fs.Var(&abortForFiles, "abort-for-file", "path whose appearance aborts the run (repeatable)")
	retryAttempts := fs.Int("retry-attempts", 0, "number of retries beyond the first attempt")
	retryDelay := fs.String("retry-delay", "", "delay between retry attempts")
	retryExpoBackoff := fs.Bool("retry-expo-backoff", false, "double the retry delay on each attempt")
	retryJitter := fs.Bool("retry-jitter", false, "randomize the retry delay by +/-10%")
	var successCodes intListFlag
	fs.Var(&successCodes, "success-code", "exit code counted as success (repeatable)")
	fs.Var(&successCodes, "c", "alias for -success-code")
	var onRunCompletion, onRunSuccess, onRunFailure repeatableFlag
	var onJobCompletion, onJobSuccess, onJobFailure repeatableFlag
	fs.Var(&onRunCompletion, "notify-on-run-completion", "callback fired on every run completion (repeatable)")
	fs.Var(&onRunSuccess, "notify-on-run-success", "callback fired when a run succeeds (repeatable)")
	fs.Var(&onRunFailure, "notify-on-run-failure", "callback fired when a run fails (repeatable)")
	fs.Var(&onJobCompletion, "notify-on-job-completion", "callback fired on job completion (repeatable)")
	fs.Var(&onJobSuccess, "notify-on-job-success", "callback fired when the job succeeds (repeatable)")
	fs.Var(&onJobFailure, "notify-on-job-failure", "callback fired when the job fails (repeatable)")
	follow := fs.Bool("follow", false, "tail the run's logs from this terminal after submission")
	fs.BoolVar(follow, "f", false, "alias for -follow")

	if err := fs.Parse(args); err != nil {
		disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse run flags"))
		return jobmanerr.Usage.ExitCode()
	}
	tokens := fs.Args()
	if len(tokens) == 0 {
		disp.Error(jobmanerr.New(jobmanerr.Usage, "run requires a command"))
		return jobmanerr.Usage.ExitCode()
	}

	policy := supervisor.Policy{
		Command:               detach.ShellQuote(tokens),
		WaitForFiles:          []string(waitForFiles),
		AbortForFiles:         []string(abortForFiles),
		RetryAttempts:         *retryAttempts,
		RetryExpoBackoff:      *retryExpoBackoff,
		RetryJitter:           *retryJitter,
		SuccessCodes:          []int(successCodes),
		NotifyOnRunCompletion: []string(onRunCompletion),
		NotifyOnRunSuccess:    []string(onRunSuccess),
		NotifyOnRunFailure:    []string(onRunFailure),
		NotifyOnJobCompletion: []string(onJobCompletion),
		NotifyOnJobSuccess:    []string(onJobSuccess),
		NotifyOnJobFailure:    []string(onJobFailure),
		Follow:                *follow,
	}

	if *waitTime != "" {
		t, err := parseTime(*waitTime)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse wait-time"))
			return jobmanerr.Usage.ExitCode()
		}
		policy.WaitTime = &t
	}
	if *waitDuration != "" {
		d, err := duration.Parse(*waitDuration)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse wait-duration"))
			return jobmanerr.Usage.ExitCode()
		}
		policy.WaitDuration = &d
	}
	if *abortTime != "" {
		t, err := parseTime(*abortTime)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse abort-time"))
			return jobmanerr.Usage.ExitCode()
		}
		policy.AbortTime = &t
	}
	if *abortDuration != "" {
		d, err := duration.Parse(*abortDuration)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse abort-duration"))
			return jobmanerr.Usage.ExitCode()
		}
		policy.AbortDuration = &d
	}
	if *retryDelay != "" {
		d, err := duration.Parse(*retryDelay)
		if err != nil {
			disp.Error(jobmanerr.Wrap(jobmanerr.Usage, err, "parse retry-delay"))
			return jobmanerr.Usage.ExitCode()
		}
		policy.RetryDelay = d
	}

	a, cleanup, err := newApp(ctx, disp, debug)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	defer cleanup()

	job, err := supervisor.Submit(ctx, a.store, a.hostID, policy)
	if err != nil {
		disp.Error(err)
		return jobmanerr.ExitCode(err)
	}
	disp.Data(job.JobID)

	if policy.Follow {
		followSubmission(ctx, a, job.JobID)
	}

	if err := supervisor.Detach(job.JobID); err != nil {
		wrapped := jobmanerr.Wrap(jobmanerr.OS, err, "detach supervisor")
		disp.Error(wrapped)
		return wrapped.Kind.ExitCode()
	}
	return jobmanerr.OK.ExitCode()
}

// followSubmission tails the not-yet-started job's logs from the
// submitting terminal, blocking until the job completes. It runs before
// Detach so it executes in the original process, never the detached
// supervisor.
func followSubmission(ctx context.Context, a *app, jobID string) {
	filter := ops.LogFilter{Follow: true}
	_ = a.ops.Logs(ctx, jobID, filter, func(l ops.LogLine) {
		a.disp.Line("%s", l.Render(false))
	})
}
