package ops

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/jobrun"
	"github.com/ryancswallace/jobman/internal/store"
	"github.com/ryancswallace/jobman/internal/watch"
)

// LogFilter narrows and shapes Logs' output.
type LogFilter struct {
	Tail        int // 0 means unlimited
	Since       *time.Time
	Until       *time.Time
	HideStdout  bool
	HideStderr  bool
	NoLogPrefix bool
	Follow      bool
}

// LogLine is one rendered line of output from a Run's out.txt or err.txt.
type LogLine struct {
	JobID   string
	Attempt int
	Stream  string // "stdout" or "stderr"
	Text    string
}

// Render formats l the way a non-JSON displayer would print it, prefixed
// with its job/attempt/stream origin unless suppressed.
func (l LogLine) Render(noPrefix bool) string {
	if noPrefix {
		return l.Text
	}
	return fmt.Sprintf("[%s/%d/%s] %s", l.JobID, l.Attempt, l.Stream, l.Text)
}

// Logs reads the out.txt/err.txt of every Run belonging to jobID (scoped to
// this host), restricted to Runs whose start_time falls within
// [filter.Since, filter.Until], oldest run first. filter.Tail, if non-zero,
// limits the result to the last N lines across the concatenated output.
// With filter.Follow, Logs blocks tailing the last Run's files until the
// Job reaches store.JobComplete, invoking emit for each newly-available
// line as it streams it live. This runs in the original, pre-detach
// terminal process and never blocks the supervisor's own detach.
func (o *Ops) Logs(ctx context.Context, jobID string, filter LogFilter, emit func(LogLine)) error {
	if _, err := o.store.GetJob(ctx, o.hostID, jobID); err != nil {
		return err
	}

	runs, err := o.store.ListRunsForJobs(ctx, []string{jobID})
	if err != nil {
		return err
	}

	var lines []LogLine
	for _, run := range runs {
		if filter.Since != nil && run.StartTime.Valid && run.StartTime.Time.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && run.StartTime.Valid && run.StartTime.Time.After(*filter.Until) {
			continue
		}
		runLines, err := readRunLines(run, filter)
		if err != nil {
			return err
		}
		lines = append(lines, runLines...)
	}

	if filter.Tail > 0 && len(lines) > filter.Tail {
		lines = lines[len(lines)-filter.Tail:]
	}
	for _, l := range lines {
		emit(l)
	}

	if !filter.Follow || len(runs) == 0 {
		return nil
	}
	return o.followLast(ctx, jobID, runs[len(runs)-1], filter, emit)
}

func readRunLines(run store.Run, filter LogFilter) ([]LogLine, error) {
	var out []LogLine
	if !filter.HideStdout {
		stdout, err := readLines(run.JobID, run.Attempt, "stdout", outPath(run.LogPath))
		if err != nil {
			return nil, err
		}
		out = append(out, stdout...)
	}
	if !filter.HideStderr {
		stderr, err := readLines(run.JobID, run.Attempt, "stderr", errPath(run.LogPath))
		if err != nil {
			return nil, err
		}
		out = append(out, stderr...)
	}
	return out, nil
}

func readLines(jobID string, attempt int, stream, path string) ([]LogLine, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ierrors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var out []LogLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out = append(out, LogLine{JobID: jobID, Attempt: attempt, Stream: stream, Text: scanner.Text()})
	}
	if err := scanner.Err(); err != nil {
		return nil, ierrors.Wrapf(err, "scan %s", path)
	}
	return out, nil
}

// followLast tails the last Run's log files, emitting new lines as they
// arrive, until the Job's state reaches store.JobComplete.
func (o *Ops) followLast(ctx context.Context, jobID string, last store.Run, filter LogFilter, emit func(LogLine)) error {
	files := map[string]string{}
	if !filter.HideStdout {
		files["stdout"] = outPath(last.LogPath)
	}
	if !filter.HideStderr {
		files["stderr"] = errPath(last.LogPath)
	}

	readers := make(map[string]*bufio.Reader)
	handles := make(map[string]*os.File)
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	pollTicker := time.NewTicker(watch.DefaultInterval)
	defer pollTicker.Stop()

	for {
		for stream, path := range files {
			if _, ok := handles[stream]; !ok {
				opened, err := os.Open(path)
				if err != nil {
					continue
				}
				handles[stream] = opened
				readers[stream] = bufio.NewReader(opened)
			}
			for {
				line, err := readers[stream].ReadString('\n')
				if line != "" {
					text := trimNewline(line)
					emit(LogLine{JobID: jobID, Attempt: last.Attempt, Stream: stream, Text: text})
				}
				if err == io.EOF {
					break
				}
				if err != nil {
					break
				}
			}
		}

		current, err := o.store.GetJob(ctx, o.hostID, jobID)
		if err != nil {
			return err
		}
		if current.State == store.JobComplete {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pollTicker.C:
		}
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

func outPath(logDir string) string { p, _ := jobrun.LogPaths(logDir); return p }
func errPath(logDir string) string { _, p := jobrun.LogPaths(logDir); return p }
