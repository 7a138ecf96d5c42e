package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "jobman.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	return s
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobman.db")

	s1, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s2, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("expected reopen to succeed; error: %v", err)
	}
	if err := s2.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInsertAndGetJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := &Job{
		JobID:        "job-1",
		HostID:       "host-a",
		Command:      "echo hi",
		RetryDelay:   NewNullDuration(5 * time.Second),
		SuccessCodes: IntList{0, 3},
		WaitForFiles: StringList{"/tmp/a", "/tmp/b"},
		StartTime:    NewNullTime(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		State:        JobSubmitted,
	}
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetJob(ctx, "host-a", "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Command != j.Command {
		t.Errorf("command: got %q, want %q", got.Command, j.Command)
	}
	if len(got.SuccessCodes) != 2 || got.SuccessCodes[0] != 0 || got.SuccessCodes[1] != 3 {
		t.Errorf("success codes: got %v", got.SuccessCodes)
	}
	if len(got.WaitForFiles) != 2 || got.WaitForFiles[1] != "/tmp/b" {
		t.Errorf("wait for files: got %v", got.WaitForFiles)
	}
	if !got.RetryDelay.Valid || got.RetryDelay.Duration != 5*time.Second {
		t.Errorf("retry delay: got %+v", got.RetryDelay)
	}
	if got.State != JobSubmitted {
		t.Errorf("state: got %v", got.State)
	}

	if _, err := s.GetJob(ctx, "host-a", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetJob(ctx, "host-b", "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected job scoped to host-a to be invisible to host-b, got %v", err)
	}
}

func TestJobDefaultsSuccessCodes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	j := &Job{JobID: "job-2", HostID: "host-a", Command: "true"}
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetJob(ctx, "host-a", "job-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.SuccessCodes) != 1 || got.SuccessCodes[0] != 0 {
		t.Errorf("expected default success codes [0], got %v", got.SuccessCodes)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{JobID: "job-3", HostID: "host-a", Command: "sleep 1"}
	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := &Run{JobID: "job-3", Attempt: 0, LogPath: "/var/log/jobman/job-3/0", State: RunSubmitted}
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	started := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	if err := s.UpdateRunStarted(ctx, "job-3", 0, 4242, started); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetRun(ctx, "job-3", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != RunRunning {
		t.Errorf("expected running, got %v", got.State)
	}
	if got.PID == nil || *got.PID != 4242 {
		t.Errorf("expected pid 4242, got %v", got.PID)
	}

	active, err := s.ActiveRuns(ctx, []string{"job-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active run, got %d", len(active))
	}

	finished := started.Add(2 * time.Second)
	if err := s.UpdateRunFinished(ctx, "job-3", 0, finished, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err = s.ActiveRuns(ctx, []string{"job-3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected 0 active runs after finish, got %d", len(active))
	}

	got, err = s.GetRun(ctx, "job-3", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != RunComplete {
		t.Errorf("expected complete, got %v", got.State)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", got.ExitCode)
	}

	if err := s.SetRunKilled(ctx, "job-3", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = s.GetRun(ctx, "job-3", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Killed {
		t.Errorf("expected killed=true")
	}
}

func TestUpdateJobComplete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{JobID: "job-4", HostID: "host-a", Command: "false", SuccessCodes: IntList{0}}
	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	finish := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := s.UpdateJobComplete(ctx, "job-4", finish, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetJob(ctx, "host-a", "job-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsComplete() {
		t.Errorf("expected job to be complete")
	}
	if !got.IsFailed() {
		t.Errorf("expected job to be failed (exit 1 not in success codes [0])")
	}
}

func TestListJobsFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	jobs := []*Job{
		{JobID: "a", HostID: "host-a", Command: "x", State: JobSubmitted, StartTime: NewNullTime(base)},
		{JobID: "b", HostID: "host-a", Command: "x", State: JobRunning, StartTime: NewNullTime(base.Add(time.Hour))},
		{JobID: "c", HostID: "host-a", Command: "x", State: JobComplete, StartTime: NewNullTime(base.Add(2 * time.Hour))},
		{JobID: "d", HostID: "host-b", Command: "x", State: JobComplete, StartTime: NewNullTime(base.Add(3 * time.Hour))},
	}
	for _, j := range jobs {
		if err := s.InsertJob(ctx, j); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := s.ListJobs(ctx, "host-a", JobFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 jobs for host-a, got %d", len(all))
	}
	// newest-first.
	if all[0].JobID != "c" {
		t.Errorf("expected newest-first ordering, got %q first", all[0].JobID)
	}

	byState, err := s.ListJobs(ctx, "host-a", JobFilter{States: []JobState{JobComplete}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byState) != 1 || byState[0].JobID != "c" {
		t.Fatalf("expected only job c, got %v", byState)
	}

	byID, err := s.ListJobs(ctx, "host-a", JobFilter{JobIDs: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byID) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(byID))
	}

	after := base.Add(90 * time.Minute)
	byTime, err := s.ListJobs(ctx, "host-a", JobFilter{StartAfter: &after})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byTime) != 1 || byTime[0].JobID != "c" {
		t.Fatalf("expected only job c after cutoff, got %v", byTime)
	}
}

func TestDeleteJobCascade(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{JobID: "job-5", HostID: "host-a", Command: "x"}
	if err := s.InsertJob(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run := &Run{JobID: "job-5", Attempt: 0, LogPath: "/var/log/jobman/job-5/0"}
	if err := s.InsertRun(ctx, run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.DeleteJobCascade(ctx, "host-a", "job-5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.GetJob(ctx, "host-a", "job-5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected job to be gone, got %v", err)
	}
	if _, err := s.GetRun(ctx, "job-5", 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected run to be cascade-deleted, got %v", err)
	}
}

func TestListRunsForJobsEmpty(t *testing.T) {
	s := openTestStore(t)
	runs, err := s.ListRunsForJobs(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs != nil {
		t.Errorf("expected nil for empty job id set, got %v", runs)
	}
}

func TestStringListRejectsDelimiter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	job := &Job{JobID: "job-6", HostID: "host-a", Command: "x", WaitForFiles: StringList{"has|pipe"}}
	if err := s.InsertJob(ctx, job); err == nil {
		t.Fatalf("expected error inserting a list element containing the delimiter")
	}
}
