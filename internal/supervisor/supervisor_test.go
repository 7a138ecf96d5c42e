package supervisor

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/jlog"
	"github.com/ryancswallace/jobman/internal/store"
)

func TestGenerateJobIDFormat(t *testing.T) {
	id, err := GenerateJobID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("expected 8 lowercase hex chars, got %q", id)
	}
}

func TestRetryDelayNoExpoNoJitter(t *testing.T) {
	got := retryDelay(1, 2*time.Second, false, false)
	if got != 2*time.Second {
		t.Errorf("got %v, want 2s", got)
	}
	got = retryDelay(3, 2*time.Second, false, false)
	if got != 2*time.Second {
		t.Errorf("got %v, want 2s (no backoff)", got)
	}
}

func TestRetryDelayExpoBackoff(t *testing.T) {
	base := time.Second
	if got := retryDelay(1, base, true, false); got != base {
		t.Errorf("attempt 1: got %v, want %v", got, base)
	}
	if got := retryDelay(2, base, true, false); got != 2*base {
		t.Errorf("attempt 2: got %v, want %v", got, 2*base)
	}
	if got := retryDelay(3, base, true, false); got != 4*base {
		t.Errorf("attempt 3: got %v, want %v", got, 4*base)
	}
}

func TestRetryDelayZeroBaseNeverNegative(t *testing.T) {
	got := retryDelay(5, 0, true, true)
	if got < 0 {
		t.Errorf("expected non-negative delay, got %v", got)
	}
}

func TestSubmitAndRunDetachedReachesComplete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.Open(ctx, filepath.Join(dir, "jobman.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	const hostID = "test-host"
	policy := Policy{
		Command:      "exit 0",
		SuccessCodes: []int{0},
	}

	job, err := Submit(ctx, s, hostID, policy)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.State != store.JobSubmitted {
		t.Fatalf("expected freshly submitted job to be Submitted, got %v", job.State)
	}

	cfg := &config.Config{StdioPath: filepath.Join(dir, "stdio")}
	log := jlog.New(io.Discard, "test: ")

	if err := RunDetached(ctx, cfg, s, hostID, job.JobID, log); err != nil {
		t.Fatalf("run detached: %v", err)
	}

	got, err := s.GetJob(ctx, hostID, job.JobID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if got.State != store.JobComplete {
		t.Errorf("expected job to reach Complete, got %v", got.State)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", got.ExitCode)
	}
}

func TestSubmitAndRunDetachedExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.Open(ctx, filepath.Join(dir, "jobman.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	const hostID = "test-host"
	policy := Policy{
		Command:       "exit 1",
		SuccessCodes:  []int{0},
		RetryAttempts: 2,
		RetryDelay:    0,
	}

	job, err := Submit(ctx, s, hostID, policy)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cfg := &config.Config{StdioPath: filepath.Join(dir, "stdio")}
	log := jlog.New(io.Discard, "test: ")

	if err := RunDetached(ctx, cfg, s, hostID, job.JobID, log); err != nil {
		t.Fatalf("run detached: %v", err)
	}

	got, err := s.GetJob(ctx, hostID, job.JobID)
	if err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if got.State != store.JobComplete {
		t.Errorf("expected job to reach Complete, got %v", got.State)
	}
	if got.ExitCode == nil || *got.ExitCode != 1 {
		t.Errorf("expected final exit code 1 after exhausting retries, got %v", got.ExitCode)
	}

	runs, err := s.ListRunsForJobs(ctx, []string{job.JobID})
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != policy.RetryAttempts+1 {
		t.Errorf("expected %d runs (initial + retries), got %d", policy.RetryAttempts+1, len(runs))
	}
}

func TestRetryDelayJitterWithinBound(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		got := retryDelay(1, base, false, true)
		if got < 0 {
			t.Fatalf("jittered delay went negative: %v", got)
		}
		lower := base - base/10 - time.Millisecond
		upper := base + base/10 + time.Millisecond
		if got < lower || got > upper {
			t.Fatalf("jittered delay %v outside expected band [%v, %v]", got, lower, upper)
		}
	}
}
