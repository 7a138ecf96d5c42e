package store

// JobState is the lifecycle stage of a Job. Values are stored as integer
// codes (0=submitted, 1=running, 2=complete).
type JobState int

const (
	JobSubmitted JobState = 0
	JobRunning   JobState = 1
	JobComplete  JobState = 2
)

func (s JobState) String() string {
	switch s {
	case JobSubmitted:
		return "submitted"
	case JobRunning:
		return "running"
	case JobComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// RunState is the lifecycle stage of a single Run.
type RunState int

const (
	RunSubmitted RunState = 0
	RunRunning   RunState = 1
	RunComplete  RunState = 2
)

func (s RunState) String() string {
	switch s {
	case RunSubmitted:
		return "submitted"
	case RunRunning:
		return "running"
	case RunComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// DefaultSuccessCodes is the success_codes default when none are given.
var DefaultSuccessCodes = IntList{0}

// Job is the identity, policy, and terminal outcome of a single submitted
// command.
type Job struct {
	JobID  string
	HostID string

	Command string

	WaitTime      NullTime
	WaitDuration  NullDuration
	WaitForFiles  StringList
	AbortTime     NullTime
	AbortDuration NullDuration
	AbortForFiles StringList

	RetryAttempts    int
	RetryDelay       NullDuration
	RetryExpoBackoff bool
	RetryJitter      bool

	SuccessCodes IntList

	NotifyOnRunCompletion StringList
	NotifyOnJobCompletion StringList
	NotifyOnJobSuccess    StringList
	NotifyOnRunSuccess    StringList
	NotifyOnJobFailure    StringList
	NotifyOnRunFailure    StringList

	Follow bool

	StartTime  NullTime
	FinishTime NullTime
	State      JobState
	ExitCode   *int
}

// IsComplete reports whether the Job has reached its terminal state.
// Supplements the original Python Job.is_completed().
func (j Job) IsComplete() bool {
	return j.State == JobComplete
}

// IsFailed reports whether the Job's recorded exit code falls outside its
// success codes. Supplements the original Python Job.is_failed().
func (j Job) IsFailed() bool {
	if j.ExitCode == nil {
		return false
	}
	codes := j.SuccessCodes
	if len(codes) == 0 {
		codes = DefaultSuccessCodes
	}
	for _, c := range codes {
		if c == *j.ExitCode {
			return false
		}
	}
	return true
}

// Run is a single attempted execution of a Job.
type Run struct {
	JobID   string
	Attempt int

	LogPath string

	PID        *int
	StartTime  NullTime
	FinishTime NullTime
	State      RunState
	ExitCode   *int
	Killed     bool
}

// IsComplete reports whether the Run has reached its terminal state.
func (r Run) IsComplete() bool {
	return r.State == RunComplete
}

// Succeeded reports whether exitCode is a member of codes, defaulting to
// [0] when codes is empty.
func Succeeded(exitCode int, codes IntList) bool {
	if len(codes) == 0 {
		codes = DefaultSuccessCodes
	}
	for _, c := range codes {
		if c == exitCode {
			return true
		}
	}
	return false
}
