// Package supervisor implements jobman's core loop: the per-job controller
// that builds and persists a Job, detaches from the terminal, drives the
// job through wait → run → observe → retry → notify, and finalizes its
// terminal state.
//
// Grounded on tjper-teleport's internal/jobworker/job.Job (the mutex-
// guarded status/exitCode fields, the start/wait/signalContinue shape) and
// on the original Python jobman's core/supervisor/run.py (build_job/
// run_job decomposition, preproc_cmd, _generate_random_job_id).
package supervisor

import (
	"context"
	"crypto/rand"
	"fmt"
	mathrand "math/rand/v2"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ryancswallace/jobman/internal/abort"
	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/detach"
	"github.com/ryancswallace/jobman/internal/gate"
	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/jlog"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/jobrun"
	"github.com/ryancswallace/jobman/internal/notify"
	"github.com/ryancswallace/jobman/internal/store"
)

// Policy is a fully-validated job submission, the boundary value the CLI
// hands to the supervisor.
type Policy struct {
	Command string

	WaitTime     *time.Time
	WaitDuration *time.Duration
	WaitForFiles []string

	AbortTime     *time.Time
	AbortDuration *time.Duration
	AbortForFiles []string

	RetryAttempts    int
	RetryDelay       time.Duration
	RetryExpoBackoff bool
	RetryJitter      bool

	SuccessCodes []int

	NotifyOnRunCompletion []string
	NotifyOnJobCompletion []string
	NotifyOnJobSuccess    []string
	NotifyOnRunSuccess    []string
	NotifyOnJobFailure    []string
	NotifyOnRunFailure    []string

	Follow bool
}

// abortSignal is the signal jobman's abort monitor delivers to the
// supervisor's own pid by default.
const abortSignal = syscall.SIGINT

// GenerateJobID returns a fresh 8-lowercase-hex-char id. Callers are
// responsible for retrying on a store collision.
func GenerateJobID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", ierrors.Wrap(err, "generate job id")
	}
	return fmt.Sprintf("%x", b), nil
}

// Submit builds a Job from policy, assigns it a fresh collision-checked id,
// and persists it with state=Submitted. The caller must print the returned
// Job's JobID to the user's terminal before detaching.
func Submit(ctx context.Context, s *store.Store, hostID string, p Policy) (*store.Job, error) {
	now := time.Now()

	successCodes := p.SuccessCodes
	if len(successCodes) == 0 {
		successCodes = []int{0}
	}

	job := &store.Job{
		HostID:                hostID,
		Command:               p.Command,
		WaitForFiles:          p.WaitForFiles,
		AbortForFiles:         p.AbortForFiles,
		RetryAttempts:         p.RetryAttempts,
		RetryExpoBackoff:      p.RetryExpoBackoff,
		RetryJitter:           p.RetryJitter,
		SuccessCodes:          successCodes,
		NotifyOnRunCompletion: p.NotifyOnRunCompletion,
		NotifyOnJobCompletion: p.NotifyOnJobCompletion,
		NotifyOnJobSuccess:    p.NotifyOnJobSuccess,
		NotifyOnRunSuccess:    p.NotifyOnRunSuccess,
		NotifyOnJobFailure:    p.NotifyOnJobFailure,
		NotifyOnRunFailure:    p.NotifyOnRunFailure,
		Follow:                p.Follow,
		StartTime:             store.NewNullTime(now),
		State:                 store.JobSubmitted,
	}
	if p.WaitTime != nil {
		job.WaitTime = store.NewNullTime(*p.WaitTime)
	}
	if p.WaitDuration != nil {
		job.WaitDuration = store.NewNullDuration(*p.WaitDuration)
	}
	if p.AbortTime != nil {
		job.AbortTime = store.NewNullTime(*p.AbortTime)
	}
	if p.AbortDuration != nil {
		job.AbortDuration = store.NewNullDuration(*p.AbortDuration)
	}
	if p.RetryDelay > 0 {
		job.RetryDelay = store.NewNullDuration(p.RetryDelay)
	}

	for attempt := 0; attempt < 10; attempt++ {
		id, err := GenerateJobID()
		if err != nil {
			return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "generate job id")
		}
		job.JobID = id

		err = s.InsertJob(ctx, job)
		if err == nil {
			return job, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, jobmanerr.New(jobmanerr.Internal, "could not allocate a unique job id")
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLite's primary-key conflict as a generic
	// error whose text names the constraint; string-matching is what every
	// pure-Go sqlite caller without a typed error wrapper falls back to.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// RunDetached drives jobID through wait, retry loop, and finalization. It
// must be called from the fully double-fork-detached grandchild process;
// the Job and its policy are reloaded from the store so no state needs to
// cross the reexec boundary except jobID itself.
func RunDetached(ctx context.Context, cfg *config.Config, s *store.Store, hostID, jobID string, log *jlog.Logger) error {
	job, err := s.GetJob(ctx, hostID, jobID)
	if err != nil {
		return ierrors.Wrapf(err, "load job %s", jobID)
	}

	dispatcher := notify.New(cfg, log)

	var abortDeadlinePtr *time.Time
	if d := abort.Deadline(nullTimePtr(job.AbortTime), nullDurationPtr(job.AbortDuration), job.StartTime.Time); d != nil {
		abortDeadlinePtr = d
	}

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	monitor, err := abort.Spawn(monitorCtx, os.Getpid(), abortSignal, abortDeadlinePtr, job.AbortForFiles)
	if err != nil {
		return ierrors.Wrap(err, "spawn abort monitor")
	}
	defer monitor.Stop()

	var currentChildPID int32
	var aborted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	notifySignal(sigCh, abortSignal)
	defer stopSignal(sigCh)
	go func() {
		for range sigCh {
			aborted.Store(true)
			if pid := atomic.LoadInt32(&currentChildPID); pid != 0 {
				syscall.Kill(-int(pid), abortSignal)
			}
		}
	}()

	waitDeadline := gate.Deadline(nullTimePtr(job.WaitTime), nullDurationPtr(job.WaitDuration), job.StartTime.Time)
	if err := gate.Wait(ctx, waitDeadline, job.WaitForFiles); err != nil {
		return ierrors.Wrap(err, "wait gate")
	}

	if err := s.UpdateJobState(ctx, jobID, store.JobRunning); err != nil {
		return ierrors.Wrap(err, "transition job to running")
	}

	successCodes := job.SuccessCodes
	if len(successCodes) == 0 {
		successCodes = store.DefaultSuccessCodes
	}

	var lastRun *store.Run
	for attempt := 0; attempt <= job.RetryAttempts; attempt++ {
		if attempt > 0 {
			if lastRun.IsComplete() && (lastRun.ExitCode != nil && store.Succeeded(*lastRun.ExitCode, successCodes) || lastRun.Killed) {
				break
			}
			time.Sleep(retryDelay(attempt, job.RetryDelay.Duration, job.RetryExpoBackoff, job.RetryJitter))
		}

		logDir := runLogDir(cfg.StdioPath, jobID, attempt)
		run := &store.Run{
			JobID:   jobID,
			Attempt: attempt,
			LogPath: logDir,
			State:   store.RunSubmitted,
		}
		if err := s.InsertRun(ctx, run); err != nil {
			return ierrors.Wrapf(err, "insert run %s/%d", jobID, attempt)
		}

		extraEnv := []string{
			fmt.Sprintf("JOBMAN_JOB_ID=%s", jobID),
			fmt.Sprintf("JOBMAN_ATTEMPT_NUM=%d", attempt),
		}
		jr, err := jobrun.Start(ctx, job.Command, logDir, extraEnv)
		if err != nil {
			return ierrors.Wrapf(err, "start run %s/%d", jobID, attempt)
		}

		pid := jr.Pid()
		startTime := time.Now()
		if err := s.UpdateRunStarted(ctx, jobID, attempt, pid, startTime); err != nil {
			return ierrors.Wrapf(err, "persist run started %s/%d", jobID, attempt)
		}
		atomic.StoreInt32(&currentChildPID, int32(pid))

		exitCode, waitErr := jr.Wait()
		atomic.StoreInt32(&currentChildPID, 0)
		if waitErr != nil {
			log.Warnf("run %s/%d: wait: %v", jobID, attempt, waitErr)
		}
		finishTime := time.Now()
		if err := s.UpdateRunFinished(ctx, jobID, attempt, finishTime, exitCode); err != nil {
			return ierrors.Wrapf(err, "persist run finished %s/%d", jobID, attempt)
		}

		run, err = s.GetRun(ctx, jobID, attempt)
		if err != nil {
			return ierrors.Wrapf(err, "reload run %s/%d", jobID, attempt)
		}
		lastRun = run

		succeeded := store.Succeeded(exitCode, successCodes)
		payload := notify.Payload{JobID: jobID, Attempt: &attempt, ExitCode: &exitCode, Timestamp: finishTime}
		payload.Event = notify.EventRunCompletion
		dispatcher.Dispatch(ctx, job.NotifyOnRunCompletion, payload)
		if succeeded {
			payload.Event = notify.EventRunSuccess
			dispatcher.Dispatch(ctx, job.NotifyOnRunSuccess, payload)
		} else {
			payload.Event = notify.EventRunFailure
			dispatcher.Dispatch(ctx, job.NotifyOnRunFailure, payload)
		}
	}

	monitor.Stop()

	finalExitCode := 0
	if lastRun != nil && lastRun.ExitCode != nil {
		finalExitCode = *lastRun.ExitCode
	}
	finishTime := time.Now()
	if lastRun != nil && lastRun.FinishTime.Valid {
		finishTime = lastRun.FinishTime.Time
	}
	if err := s.UpdateJobComplete(ctx, jobID, finishTime, finalExitCode); err != nil {
		return ierrors.Wrap(err, "finalize job")
	}

	jobSucceeded := lastRun != nil && store.Succeeded(finalExitCode, successCodes)
	jobPayload := notify.Payload{JobID: jobID, ExitCode: &finalExitCode, Timestamp: finishTime}
	jobPayload.Event = notify.EventJobCompletion
	dispatcher.Dispatch(ctx, job.NotifyOnJobCompletion, jobPayload)
	if jobSucceeded {
		jobPayload.Event = notify.EventJobSuccess
		dispatcher.Dispatch(ctx, job.NotifyOnJobSuccess, jobPayload)
	} else {
		jobPayload.Event = notify.EventJobFailure
		dispatcher.Dispatch(ctx, job.NotifyOnJobFailure, jobPayload)
	}

	_ = aborted.Load() // observed only for future diagnostics; does not alter retry eligibility
	return nil
}

// retryDelay computes the delay before the next attempt:
// base * (2^(n-1) if expo else 1) + jitter, clamped to zero.
func retryDelay(attempt int, base time.Duration, expo, jitter bool) time.Duration {
	d := base
	if expo && attempt > 1 {
		d = base * time.Duration(1<<uint(attempt-1))
	}
	if jitter && base > 0 {
		spread := float64(base) / 10
		j := (mathrand.Float64()*2 - 1) * spread
		d += time.Duration(j)
	}
	if d < 0 {
		return 0
	}
	return d
}

func nullTimePtr(t store.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullDurationPtr(d store.NullDuration) *time.Duration {
	if !d.Valid {
		return nil
	}
	v := d.Duration
	return &v
}

// Detach performs the double-fork, re-execing with jobID as the
// positional argument so the detached grandchild knows which Job to load
// and run.
func Detach(jobID string) error {
	return detach.Spawn([]string{jobID})
}

func runLogDir(stdioRoot, jobID string, attempt int) string {
	return filepath.Join(stdioRoot, jobID, strconv.Itoa(attempt))
}

func notifySignal(ch chan os.Signal, sig syscall.Signal) {
	signal.Notify(ch, sig)
}

func stopSignal(ch chan os.Signal) {
	signal.Stop(ch)
	close(ch)
}
