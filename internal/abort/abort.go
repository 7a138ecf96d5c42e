// Package abort implements jobman's abort monitor: a one-shot watcher that
// delivers a signal to a target pid once any of an absolute deadline, a
// relative duration, or a set of marker files fires.
//
// The monitor must survive signal handling in the supervisor, so it must
// not be a goroutine sharing the supervisor's address space and signal
// mask; Spawn below runs it as a sibling OS process instead, the same
// self-reexec idiom tjper-teleport uses for its jobworker grandchild
// (internal/jobworker/job.New's exec.CommandContext(ctx, shellCmd,
// jobworker.Reexec)).
package abort

import (
	"context"
	"os"
	"syscall"
	"time"
)

// pollInterval is the monitor's sampling cadence.
const pollInterval = 100 * time.Millisecond

// Deadline combines an absolute time and a relative duration: whichever
// resolves earlier is the effective deadline, since the abort condition
// fires as soon as any configured trigger becomes true. This is the
// opposite of gate.Deadline's "later of the two" combination, which waits
// for every precondition to be satisfied rather than firing on the first.
func Deadline(absolute *time.Time, duration *time.Duration, since time.Time) *time.Time {
	var candidates []time.Time
	if absolute != nil {
		candidates = append(candidates, *absolute)
	}
	if duration != nil {
		candidates = append(candidates, since.Add(*duration))
	}
	if len(candidates) == 0 {
		return nil
	}
	earliest := candidates[0]
	for _, c := range candidates[1:] {
		if c.Before(earliest) {
			earliest = c
		}
	}
	return &earliest
}

// Fired reports whether the abort condition currently holds: now is at or
// past deadline, or any path in files exists.
func Fired(deadline *time.Time, files []string) bool {
	if deadline != nil && !time.Now().Before(*deadline) {
		return true
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			return true
		}
	}
	return false
}

// Run polls at pollInterval until Fired reports true or ctx is cancelled,
// then delivers sig to pid exactly once. A pid that has already exited is
// not reported as an error; the caller should log it instead.
func Run(ctx context.Context, pid int, sig syscall.Signal, deadline *time.Time, files []string) error {
	if !Fired(deadline, files) {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if Fired(deadline, files) {
					break loop
				}
			}
		}
	}

	if err := syscall.Kill(pid, sig); err != nil && err != syscall.ESRCH {
		return err
	}
	return nil
}
