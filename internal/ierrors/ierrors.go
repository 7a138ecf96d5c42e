// Package ierrors provides jobman's error wrapping helpers, built on
// github.com/pkg/errors so internal failures carry a stack trace from the
// point they were first observed.
package ierrors

import "github.com/pkg/errors"

// Wrap returns a new error annotating err with a stack trace and msg. If err
// is nil, Wrap returns nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is like Wrap but formats msg with args.
func Wrapf(err error, msg string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, msg, args...)
}

// New is a re-export of errors.New so callers need only import ierrors for
// stack-carrying sentinel errors.
func New(msg string) error {
	return errors.New(msg)
}

// Is re-exports errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
