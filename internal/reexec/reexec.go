// Package reexec holds the hidden subcommand markers jobman passes to
// os.Executable() when it re-execs itself to become a detached supervisor
// or a sibling abort-monitor process. Mirrors tjper-teleport's
// internal/jobworker package, whose single Reexec constant plays the same
// role for its grandchild handoff.
package reexec

const (
	// DetachStep1 marks the first re-exec hop of the double-fork detach: a
	// new session leader that immediately re-execs again into DetachStep2
	// and exits, so the process group can never reacquire a controlling
	// terminal.
	DetachStep1 = "__detach-step1"
	// DetachStep2 marks the grandchild that runs the actual supervisor
	// loop, fully detached.
	DetachStep2 = "__detach-step2"
	// AbortMonitor marks the sibling process spawned to run the abort
	// monitor outside the supervisor's own address space and signal mask.
	AbortMonitor = "__abort-monitor"
)
