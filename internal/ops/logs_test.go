package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ryancswallace/jobman/internal/store"
)

func TestLogsReadsBothStreamsWithPrefix(t *testing.T) {
	o, _, stdioRoot := openTestOps(t)
	ctx := context.Background()

	if err := o.Store().InsertJob(ctx, &store.Job{JobID: "a", HostID: "host-a", Command: "x", State: store.JobComplete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logDir := filepath.Join(stdioRoot, "a", "0")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Store().InsertRun(ctx, &store.Run{JobID: "a", Attempt: 0, LogPath: logDir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "out.txt"), []byte("line1\nline2\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "err.txt"), []byte("oops\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var lines []LogLine
	err := o.Logs(ctx, "a", LogFilter{}, func(l LogLine) { lines = append(lines, l) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Render(false) != "[a/0/stdout] line1" {
		t.Errorf("got %q", lines[0].Render(false))
	}
	if lines[0].Render(true) != "line1" {
		t.Errorf("got %q", lines[0].Render(true))
	}
}

func TestLogsHideStreamsAndTail(t *testing.T) {
	o, _, stdioRoot := openTestOps(t)
	ctx := context.Background()

	if err := o.Store().InsertJob(ctx, &store.Job{JobID: "a", HostID: "host-a", Command: "x", State: store.JobComplete}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logDir := filepath.Join(stdioRoot, "a", "0")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Store().InsertRun(ctx, &store.Run{JobID: "a", Attempt: 0, LogPath: logDir}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(logDir, "out.txt"), []byte("l1\nl2\nl3\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var lines []LogLine
	err := o.Logs(ctx, "a", LogFilter{HideStderr: true, Tail: 2}, func(l LogLine) { lines = append(lines, l) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 || lines[0].Text != "l2" || lines[1].Text != "l3" {
		t.Fatalf("expected last 2 lines [l2 l3], got %+v", lines)
	}
}

func TestLogsUnknownJobErrors(t *testing.T) {
	o, _, _ := openTestOps(t)
	err := o.Logs(context.Background(), "missing", LogFilter{}, func(LogLine) {})
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
