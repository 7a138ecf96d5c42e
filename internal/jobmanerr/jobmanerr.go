// Package jobmanerr defines jobman's error taxonomy and the exit codes each
// kind maps to, generalizing the per-subcommand exit code constants teleport
// defines in its jobworker CLI (ecCgroupService, ecJobService, ...) into a
// single typed error that any entrypoint can return and convert to a process
// exit code.
package jobmanerr

import "fmt"

// Kind categorizes an error for exit-code purposes.
type Kind int

const (
	// OK indicates complete success.
	OK Kind = iota
	// Usage indicates malformed arguments, mutually exclusive flags, or an
	// unparseable duration/time.
	Usage
	// Config indicates an unreadable/invalid config file, or conflicting
	// display flags.
	Config
	// OS indicates a fork/detach failure or a signal delivery failure.
	OS
	// Unavailable indicates status requested an unknown job id, or
	// shell-completion install targeted an unsupported shell.
	Unavailable
	// NotFound indicates the user's shell could not be inferred.
	NotFound
	// DataErr indicates one or more specified job ids did not match or were
	// not in the expected state for kill/purge.
	DataErr
	// Internal indicates a store I/O failure or other unexpected failure.
	Internal
)

// ExitCode returns the standard process exit code associated with k.
func (k Kind) ExitCode() int {
	switch k {
	case OK:
		return 0
	case Usage:
		return 64 // EX_USAGE
	case Config:
		return 78 // EX_CONFIG
	case OS:
		return 71 // EX_OSERR
	case Unavailable:
		return 69 // EX_UNAVAILABLE
	case NotFound:
		return 68 // EX_NOHOST, repurposed here as "not found"
	case DataErr:
		return 65 // EX_DATAERR
	default:
		return 70 // EX_SOFTWARE
	}
}

// Error is a jobman error tagged with the Kind that determines the process's
// exit code.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// New creates an Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode extracts the exit code that should terminate the process for err.
// A nil error, or one that isn't a *Error, is treated as Internal unless nil.
func ExitCode(err error) int {
	if err == nil {
		return OK.ExitCode()
	}
	var jerr *Error
	if ok := asError(err, &jerr); ok {
		return jerr.Kind.ExitCode()
	}
	return Internal.ExitCode()
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
