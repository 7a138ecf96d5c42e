package abort

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/reexec"
	"github.com/ryancswallace/jobman/internal/sigparse"
)

// Monitor is a running abort-monitor sibling process.
type Monitor struct {
	cmd *exec.Cmd
}

// Spawn launches the current executable as a detached sibling process
// running the abort monitor for pid, targeted with sig, under the
// reexec.AbortMonitor hidden subcommand. The monitor runs in its own
// session so signals sent to the supervisor's process group never reach
// it.
func Spawn(ctx context.Context, pid int, sig syscall.Signal, deadline *time.Time, files []string) (*Monitor, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, ierrors.Wrap(err, "locate jobman executable")
	}

	args := []string{reexec.AbortMonitor, "-pid", strconv.Itoa(pid), "-signal", sigparse.Name(sig)}
	if deadline != nil {
		args = append(args, "-deadline", deadline.UTC().Format(time.RFC3339Nano))
	}
	for _, f := range files {
		args = append(args, "-file", f)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return nil, ierrors.Wrap(err, "open null device for abort monitor")
	}
	defer devNull.Close()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return nil, ierrors.Wrap(err, "start abort monitor")
	}
	return &Monitor{cmd: cmd}, nil
}

// Stop unconditionally terminates the monitor process. Errors are
// swallowed by the caller; a monitor that has already exited (because it
// fired) is not an error.
func (m *Monitor) Stop() error {
	if m == nil || m.cmd.Process == nil {
		return nil
	}
	err := m.cmd.Process.Kill()
	m.cmd.Wait()
	if err != nil && err != os.ErrProcessDone {
		return err
	}
	return nil
}

// RunMonitorSubcommand implements the reexec.AbortMonitor entrypoint:
// parses the flags Spawn encoded and runs the monitor loop until it fires
// or the process is killed.
func RunMonitorSubcommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(reexec.AbortMonitor, flag.ContinueOnError)
	pid := fs.Int("pid", 0, "target pid")
	sigName := fs.String("signal", "SIGINT", "signal to deliver")
	deadlineStr := fs.String("deadline", "", "absolute RFC3339Nano deadline")
	var files stringSliceFlag
	fs.Var(&files, "file", "abort marker file (repeatable)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pid <= 0 {
		return fmt.Errorf("abort monitor: missing -pid")
	}
	sig, err := sigparse.Parse(*sigName)
	if err != nil {
		return fmt.Errorf("abort monitor: %w", err)
	}

	var deadline *time.Time
	if *deadlineStr != "" {
		t, err := time.Parse(time.RFC3339Nano, *deadlineStr)
		if err != nil {
			return fmt.Errorf("abort monitor: parse deadline: %w", err)
		}
		deadline = &t
	}

	return Run(ctx, *pid, sig, deadline, files)
}

type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return fmt.Sprint([]string(*s)) }

func (s *stringSliceFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}
