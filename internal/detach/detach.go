// Package detach turns the calling process into a session-leader
// background process with no controlling terminal, via the classical
// double-fork.
//
// Go's runtime cannot safely call a raw fork(2) once goroutines and the
// scheduler are running, so the two forks are modeled as two self-reexec
// hops, the same idiom tjper-teleport uses to hand a job off to a
// grandchild process (internal/jobworker/job.New's
// exec.CommandContext(ctx, shellCmd, jobworker.Reexec)): the original
// process execs itself with the reexec.DetachStep1 marker and exits; that
// child becomes a session leader, execs itself again with
// reexec.DetachStep2, and exits; the resulting grandchild is the
// fully-detached supervisor.
package detach

import (
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/reexec"
)

// Spawn performs the first fork hop: it re-execs the current binary with
// the reexec.DetachStep1 marker followed by passthroughArgs, with stdin,
// stdout, and stderr rebound to the null device. The new process is
// placed in a new session so it has no controlling terminal.
// Spawn does not wait for the child; the caller should exit immediately
// after Spawn returns, per the double-fork discipline.
func Spawn(passthroughArgs []string) error {
	exe, err := os.Executable()
	if err != nil {
		return ierrors.Wrap(err, "locate jobman executable")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return ierrors.Wrap(err, "open null device")
	}
	defer devNull.Close()

	args := append([]string{reexec.DetachStep1}, passthroughArgs...)
	cmd := exec.Command(exe, args...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return ierrors.Wrap(err, "start detach step1")
	}
	// The parent's job here is solely to launch the session leader; it does
	// not wait for it, so it can exit and relinquish the terminal.
	return nil
}

// RunStep1 is the reexec.DetachStep1 entrypoint. The process running it is
// already a session leader with no controlling terminal (Spawn set
// Setsid); it performs the second fork by re-execing once more with the
// reexec.DetachStep2 marker, then returns so the caller can exit. The
// second hop guarantees the final process is not itself a session leader,
// so it can never reacquire a controlling terminal.
func RunStep1(passthroughArgs []string) error {
	exe, err := os.Executable()
	if err != nil {
		return ierrors.Wrap(err, "locate jobman executable")
	}

	args := append([]string{reexec.DetachStep2}, passthroughArgs...)
	cmd := exec.Command(exe, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return ierrors.Wrap(err, "start detach step2")
	}
	return nil
}

// ShellQuote renders a single raw command string for the shell: a lone
// token passes through verbatim; multiple tokens are joined with POSIX
// single-quoting so embedded quoting and pipes survive the round trip
// through argv.
func ShellQuote(tokens []string) string {
	if len(tokens) == 1 {
		return tokens[0]
	}
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = posixQuote(t)
	}
	return strings.Join(quoted, " ")
}

func posixQuote(s string) string {
	if s == "" {
		return "''"
	}
	needsQuote := strings.ContainsAny(s, " \t\n'\"\\$`|&;()<>*?[]{}~!#")
	if !needsQuote {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
