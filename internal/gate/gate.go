// Package gate implements jobman's wait gate: blocking until a Job's launch
// preconditions are simultaneously satisfied.
//
// Grounded on tjper-teleport's fsnotify-based polling idiom (see
// internal/jobworker/job.Job.waitForOutput), adapted here to plain
// time.Ticker polling since the condition being watched is file existence
// plus a deadline, not a single file's mtime.
package gate

import (
	"context"
	"os"
	"time"
)

// pollInterval is the gate's sampling cadence.
const pollInterval = 100 * time.Millisecond

// Wait blocks until now >= deadline (if deadline is non-nil) AND every path
// in files exists, sampled together on every tick. An absent deadline or
// empty files list is satisfied immediately for that component. Wait
// returns early if ctx is cancelled.
func Wait(ctx context.Context, deadline *time.Time, files []string) error {
	if satisfied(deadline, files) {
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if satisfied(deadline, files) {
				return nil
			}
		}
	}
}

// Deadline combines an optional absolute time and an optional duration
// relative to since into the single effective deadline,
// max(wait_time, submission_time + wait_duration). It returns nil if both
// components are absent.
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
	latest := candidates[0]
	for _, c := range candidates[1:] {
		if c.After(latest) {
			latest = c
		}
	}
	return &latest
}

func satisfied(deadline *time.Time, files []string) bool {
	if deadline != nil && time.Now().Before(*deadline) {
		return false
	}
	for _, f := range files {
		if !fileExists(f) {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
