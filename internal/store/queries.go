package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

// ErrNotFound indicates the requested Job or Run does not exist for the
// given host.
var ErrNotFound = errors.New("not found")

// InsertJob persists a newly-submitted Job.
func (s *Store) InsertJob(ctx context.Context, j *Job) error {
	const q = `
INSERT INTO jobs (
	job_id, host_id, command,
	wait_time, wait_duration, wait_for_files,
	abort_time, abort_duration, abort_for_files,
	retry_attempts, retry_delay, retry_expo_backoff, retry_jitter,
	success_codes,
	notify_on_run_completion, notify_on_job_completion, notify_on_job_success,
	notify_on_run_success, notify_on_job_failure, notify_on_run_failure,
	follow, start_time, finish_time, state, exit_code
) VALUES (?,?,?, ?,?,?, ?,?,?, ?,?,?,?, ?, ?,?,?,?,?,?, ?,?,?,?,?)`

	successCodes := j.SuccessCodes
	if len(successCodes) == 0 {
		successCodes = DefaultSuccessCodes
	}

	_, err := s.db.ExecContext(ctx, q,
		j.JobID, j.HostID, j.Command,
		j.WaitTime, j.WaitDuration, j.WaitForFiles,
		j.AbortTime, j.AbortDuration, j.AbortForFiles,
		j.RetryAttempts, j.RetryDelay, j.RetryExpoBackoff, j.RetryJitter,
		successCodes,
		j.NotifyOnRunCompletion, j.NotifyOnJobCompletion, j.NotifyOnJobSuccess,
		j.NotifyOnRunSuccess, j.NotifyOnJobFailure, j.NotifyOnRunFailure,
		j.Follow, j.StartTime, j.FinishTime, j.State, nullInt(j.ExitCode),
	)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "insert job")
	}
	return nil
}

// InsertRun persists a newly-created Run.
func (s *Store) InsertRun(ctx context.Context, r *Run) error {
	const q = `
INSERT INTO runs (job_id, attempt, log_path, pid, start_time, finish_time, state, exit_code, killed)
VALUES (?,?,?,?,?,?,?,?,?)`

	_, err := s.db.ExecContext(ctx, q,
		r.JobID, r.Attempt, r.LogPath, nullInt(r.PID), r.StartTime, r.FinishTime, r.State, nullInt(r.ExitCode), r.Killed,
	)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "insert run")
	}
	return nil
}

// UpdateRunStarted records that a Run's child process has started.
// Persisting pid alongside state=Running, before the caller returns from
// awaiting the child, guarantees a concurrent kill that observes
// state=Running also observes a usable pid.
func (s *Store) UpdateRunStarted(ctx context.Context, jobID string, attempt, pid int, start time.Time) error {
	const q = `UPDATE runs SET pid = ?, start_time = ?, state = ? WHERE job_id = ? AND attempt = ?`
	_, err := s.db.ExecContext(ctx, q, pid, NewNullTime(start), RunRunning, jobID, attempt)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "update run started")
	}
	return nil
}

// UpdateRunFinished records a Run's terminal outcome.
func (s *Store) UpdateRunFinished(ctx context.Context, jobID string, attempt int, finish time.Time, exitCode int) error {
	const q = `UPDATE runs SET finish_time = ?, exit_code = ?, state = ? WHERE job_id = ? AND attempt = ?`
	_, err := s.db.ExecContext(ctx, q, NewNullTime(finish), exitCode, RunComplete, jobID, attempt)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "update run finished")
	}
	return nil
}

// SetRunKilled flips a Run's killed flag, used by kill (with
// allow_retries=false) before signalling the pid.
func (s *Store) SetRunKilled(ctx context.Context, jobID string, attempt int) error {
	const q = `UPDATE runs SET killed = 1 WHERE job_id = ? AND attempt = ?`
	_, err := s.db.ExecContext(ctx, q, jobID, attempt)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "set run killed")
	}
	return nil
}

// UpdateJobState transitions a Job's state field.
func (s *Store) UpdateJobState(ctx context.Context, jobID string, state JobState) error {
	const q = `UPDATE jobs SET state = ? WHERE job_id = ?`
	_, err := s.db.ExecContext(ctx, q, state, jobID)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "update job state")
	}
	return nil
}

// UpdateJobComplete finalizes a Job once its last Run has completed.
func (s *Store) UpdateJobComplete(ctx context.Context, jobID string, finish time.Time, exitCode int) error {
	const q = `UPDATE jobs SET finish_time = ?, exit_code = ?, state = ? WHERE job_id = ?`
	_, err := s.db.ExecContext(ctx, q, NewNullTime(finish), exitCode, JobComplete, jobID)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "update job complete")
	}
	return nil
}

// GetJob fetches a single Job scoped to hostID. Returns ErrNotFound if no
// matching row exists.
func (s *Store) GetJob(ctx context.Context, hostID, jobID string) (*Job, error) {
	const q = jobSelectCols + ` FROM jobs WHERE host_id = ? AND job_id = ?`
	row := s.db.QueryRowContext(ctx, q, hostID, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "get job")
	}
	return j, nil
}

// JobFilter narrows ListJobs to a subset of Jobs for a host.
type JobFilter struct {
	JobIDs     []string
	States     []JobState
	StartAfter *time.Time
	StartUntil *time.Time
}

// ListJobs fetches Jobs for hostID matching filter, newest-first by
// start_time with nulls last.
func (s *Store) ListJobs(ctx context.Context, hostID string, filter JobFilter) ([]Job, error) {
	q := jobSelectCols + ` FROM jobs WHERE host_id = ?`
	args := []interface{}{hostID}

	if len(filter.JobIDs) > 0 {
		ph := make([]string, len(filter.JobIDs))
		for i, id := range filter.JobIDs {
			ph[i] = "?"
			args = append(args, id)
		}
		q += fmt.Sprintf(" AND job_id IN (%s)", joinPH(ph))
	}
	if len(filter.States) > 0 {
		ph := make([]string, len(filter.States))
		for i, st := range filter.States {
			ph[i] = "?"
			args = append(args, st)
		}
		q += fmt.Sprintf(" AND state IN (%s)", joinPH(ph))
	}
	if filter.StartAfter != nil {
		q += " AND start_time >= ?"
		args = append(args, NewNullTime(*filter.StartAfter))
	}
	if filter.StartUntil != nil {
		q += " AND start_time <= ?"
		args = append(args, NewNullTime(*filter.StartUntil))
	}
	q += " ORDER BY (start_time IS NULL) ASC, start_time DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "list jobs")
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "scan job")
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// ListRunsForJobs fetches every Run belonging to any of jobIDs, ordered by
// job_id then attempt.
func (s *Store) ListRunsForJobs(ctx context.Context, jobIDs []string) ([]Run, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}
	ph := make([]string, len(jobIDs))
	args := make([]interface{}, len(jobIDs))
	for i, id := range jobIDs {
		ph[i] = "?"
		args[i] = id
	}
	q := runSelectCols + fmt.Sprintf(` FROM runs WHERE job_id IN (%s) ORDER BY job_id, attempt`, joinPH(ph))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "scan run")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetRun fetches a single Run by composite key.
func (s *Store) GetRun(ctx context.Context, jobID string, attempt int) (*Run, error) {
	q := runSelectCols + ` FROM runs WHERE job_id = ? AND attempt = ?`
	row := s.db.QueryRowContext(ctx, q, jobID, attempt)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "get run")
	}
	return r, nil
}

// LastRun fetches the highest-attempt Run for jobID.
func (s *Store) LastRun(ctx context.Context, jobID string) (*Run, error) {
	q := runSelectCols + ` FROM runs WHERE job_id = ? ORDER BY attempt DESC LIMIT 1`
	row := s.db.QueryRowContext(ctx, q, jobID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "last run")
	}
	return r, nil
}

// ActiveRuns returns every Run among jobIDs that is Running with a non-null
// pid.
func (s *Store) ActiveRuns(ctx context.Context, jobIDs []string) ([]Run, error) {
	all, err := s.ListRunsForJobs(ctx, jobIDs)
	if err != nil {
		return nil, err
	}
	var out []Run
	for _, r := range all {
		if r.State == RunRunning && r.PID != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteJobCascade removes a Job and, via the runs.job_id foreign key's
// ON DELETE CASCADE, all of its Runs.
func (s *Store) DeleteJobCascade(ctx context.Context, hostID, jobID string) error {
	const q = `DELETE FROM jobs WHERE host_id = ? AND job_id = ?`
	_, err := s.db.ExecContext(ctx, q, hostID, jobID)
	if err != nil {
		return jobmanerr.Wrap(jobmanerr.Internal, err, "delete job")
	}
	return nil
}

const jobSelectCols = `SELECT
	job_id, host_id, command,
	wait_time, wait_duration, wait_for_files,
	abort_time, abort_duration, abort_for_files,
	retry_attempts, retry_delay, retry_expo_backoff, retry_jitter,
	success_codes,
	notify_on_run_completion, notify_on_job_completion, notify_on_job_success,
	notify_on_run_success, notify_on_job_failure, notify_on_run_failure,
	follow, start_time, finish_time, state, exit_code`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var j Job
	var exitCode sql.NullInt64
	if err := row.Scan(
		&j.JobID, &j.HostID, &j.Command,
		&j.WaitTime, &j.WaitDuration, &j.WaitForFiles,
		&j.AbortTime, &j.AbortDuration, &j.AbortForFiles,
		&j.RetryAttempts, &j.RetryDelay, &j.RetryExpoBackoff, &j.RetryJitter,
		&j.SuccessCodes,
		&j.NotifyOnRunCompletion, &j.NotifyOnJobCompletion, &j.NotifyOnJobSuccess,
		&j.NotifyOnRunSuccess, &j.NotifyOnJobFailure, &j.NotifyOnRunFailure,
		&j.Follow, &j.StartTime, &j.FinishTime, &j.State, &exitCode,
	); err != nil {
		return nil, err
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		j.ExitCode = &v
	}
	return &j, nil
}

const runSelectCols = `SELECT job_id, attempt, log_path, pid, start_time, finish_time, state, exit_code, killed`

func scanRun(row scanner) (*Run, error) {
	var r Run
	var pid, exitCode sql.NullInt64
	if err := row.Scan(
		&r.JobID, &r.Attempt, &r.LogPath, &pid, &r.StartTime, &r.FinishTime, &r.State, &exitCode, &r.Killed,
	); err != nil {
		return nil, err
	}
	if pid.Valid {
		v := int(pid.Int64)
		r.PID = &v
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		r.ExitCode = &v
	}
	return &r, nil
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func joinPH(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}
