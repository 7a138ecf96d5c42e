// Package ops implements jobman's inspection and control operations: ls,
// status, logs, kill, purge, and reset. Each is a thin, read-mostly
// collaborator over internal/store, scoped to the local host's id,
// mirroring the "service wraps a store" shape of
// rezkam-mono/internal/storage/sql/repository.
package ops

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/store"
)

// Ops collaborates with a Store to satisfy the inspection and control
// surface of jobman's CLI.
type Ops struct {
	store     *store.Store
	hostID    string
	dbPath    string
	stdioRoot string
}

// New builds an Ops scoped to hostID, with s as the durable record and
// dbPath/stdioRoot as the on-disk layout Reset must recreate.
func New(s *store.Store, hostID, dbPath, stdioRoot string) *Ops {
	return &Ops{store: s, hostID: hostID, dbPath: dbPath, stdioRoot: stdioRoot}
}

// Store exposes the underlying store, e.g. for the supervisor to reuse the
// same handle an inspection op already opened.
func (o *Ops) Store() *store.Store { return o.store }

// RunLogDir returns the conventional stdio directory for one Run.
func (o *Ops) RunLogDir(jobID string, attempt int) string {
	return filepath.Join(o.stdioRoot, jobID, strconv.Itoa(attempt))
}

// Ls lists Jobs for this host, newest-first by start_time (nulls last). If
// all is false, only Submitted/Running Jobs are returned.
func (o *Ops) Ls(ctx context.Context, all bool) ([]store.Job, error) {
	filter := store.JobFilter{}
	if !all {
		filter.States = []store.JobState{store.JobSubmitted, store.JobRunning}
	}
	return o.store.ListJobs(ctx, o.hostID, filter)
}

// JobWithRuns pairs a Job with all of its Runs.
type JobWithRuns struct {
	Job  store.Job
	Runs []store.Run
}

// StatusResult is the outcome of Status: the Jobs found, and the subset of
// requested ids that did not match any Job for this host.
type StatusResult struct {
	Jobs       []JobWithRuns
	MissingIDs []string
}

// Status fetches each id's Job (scoped to this host) along with its Runs.
func (o *Ops) Status(ctx context.Context, ids []string) (StatusResult, error) {
	var result StatusResult
	for _, id := range ids {
		job, err := o.store.GetJob(ctx, o.hostID, id)
		if err == store.ErrNotFound {
			result.MissingIDs = append(result.MissingIDs, id)
			continue
		}
		if err != nil {
			return result, err
		}
		runs, err := o.store.ListRunsForJobs(ctx, []string{id})
		if err != nil {
			return result, err
		}
		result.Jobs = append(result.Jobs, JobWithRuns{Job: *job, Runs: runs})
	}
	return result, nil
}

// KillResult partitions the requested ids into the disjoint sets the kill
// operation reports.
type KillResult struct {
	NonexistentJobIDs []string
	NonrunningJobIDs  []string
	KilledRuns        []RunRef
	FailedKilledRuns  []RunRef
}

// RunRef identifies one Run by its composite key.
type RunRef struct {
	JobID   string
	Attempt int
}

// Kill signals every Run among ids that is currently Running with a known
// pid. When allowRetries is false, each selected Run's killed flag is set
// before signalling, so the owning supervisor's attempt loop breaks instead
// of retrying.
func (o *Ops) Kill(ctx context.Context, ids []string, sig syscall.Signal, allowRetries bool) (KillResult, error) {
	var result KillResult

	for _, id := range ids {
		_, err := o.store.GetJob(ctx, o.hostID, id)
		if err == store.ErrNotFound {
			result.NonexistentJobIDs = append(result.NonexistentJobIDs, id)
			continue
		}
		if err != nil {
			return result, err
		}

		active, err := o.store.ActiveRuns(ctx, []string{id})
		if err != nil {
			return result, err
		}
		if len(active) == 0 {
			result.NonrunningJobIDs = append(result.NonrunningJobIDs, id)
			continue
		}

		for _, run := range active {
			ref := RunRef{JobID: run.JobID, Attempt: run.Attempt}
			if !allowRetries {
				if err := o.store.SetRunKilled(ctx, run.JobID, run.Attempt); err != nil {
					result.FailedKilledRuns = append(result.FailedKilledRuns, ref)
					continue
				}
			}
			if err := syscall.Kill(*run.PID, sig); err != nil && err != syscall.ESRCH {
				result.FailedKilledRuns = append(result.FailedKilledRuns, ref)
				continue
			}
			result.KilledRuns = append(result.KilledRuns, ref)
		}
	}

	return result, nil
}

// PurgeFilter selects which Jobs purge targets. Exactly one of JobIDs (non-
// empty) or All must be set; that mutual-exclusivity is a usage-level
// concern enforced by the CLI, not here.
type PurgeFilter struct {
	JobIDs   []string
	All      bool
	Metadata bool
	Since    *time.Time
	Until    *time.Time
}

// PurgeResult reports the disposition of every Job purge considered.
type PurgeResult struct {
	Purged      []string
	Skipped     []string
	Nonexistent []string
}

// Purge deletes the log directories (and, if Metadata is set, the store
// rows) of every Complete Job matching filter. Jobs that exist but are not
// yet Complete are skipped, not purged.
func (o *Ops) Purge(ctx context.Context, filter PurgeFilter) (PurgeResult, error) {
	var result PurgeResult

	storeFilter := store.JobFilter{StartAfter: filter.Since, StartUntil: filter.Until}
	if !filter.All {
		storeFilter.JobIDs = filter.JobIDs
	}
	jobs, err := o.store.ListJobs(ctx, o.hostID, storeFilter)
	if err != nil {
		return result, err
	}

	found := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		found[j.JobID] = true
		if j.State != store.JobComplete {
			result.Skipped = append(result.Skipped, j.JobID)
			continue
		}
		if err := os.RemoveAll(filepath.Join(o.stdioRoot, j.JobID)); err != nil {
			return result, ierrors.Wrapf(err, "remove log directory for job %s", j.JobID)
		}
		if filter.Metadata {
			if err := o.store.DeleteJobCascade(ctx, o.hostID, j.JobID); err != nil {
				return result, err
			}
		}
		result.Purged = append(result.Purged, j.JobID)
	}

	if !filter.All {
		for _, id := range filter.JobIDs {
			if !found[id] {
				result.Nonexistent = append(result.Nonexistent, id)
			}
		}
	}

	sort.Strings(result.Purged)
	sort.Strings(result.Skipped)
	sort.Strings(result.Nonexistent)
	return result, nil
}

// Reset deletes the store file (and its WAL/SHM siblings) and every log
// directory, then recreates the schema from scratch. The caller's existing
// Ops and its Store are no longer usable after Reset; use the returned
// Store.
func Reset(ctx context.Context, dbPath, stdioRoot string, current *store.Store) (*store.Store, error) {
	if current != nil {
		if err := current.Close(); err != nil {
			return nil, ierrors.Wrap(err, "close store before reset")
		}
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return nil, ierrors.Wrapf(err, "remove %s", dbPath+suffix)
		}
	}
	if err := os.RemoveAll(stdioRoot); err != nil {
		return nil, ierrors.Wrap(err, "remove stdio root")
	}

	return store.Open(ctx, dbPath)
}
