package jobmanerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeNil(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestExitCodeWrapped(t *testing.T) {
	inner := New(DataErr, "bad job id")
	outer := Wrap(DataErr, inner, "context")
	if got := ExitCode(outer); got != 65 {
		t.Errorf("got %d, want 65", got)
	}
}

func TestExitCodeUnwrapsThroughFmt(t *testing.T) {
	inner := New(Usage, "bad flag")
	wrapped := fmt.Errorf("parse flags: %w", inner)
	if got := ExitCode(wrapped); got != 64 {
		t.Errorf("got %d, want 64", got)
	}
}

func TestExitCodeNonJobmanErrFallsBackToInternal(t *testing.T) {
	if got := ExitCode(errors.New("boom")); got != 70 {
		t.Errorf("got %d, want 70", got)
	}
}

func TestErrorMessageIncludesWrappedErr(t *testing.T) {
	e := Wrap(OS, errors.New("signal failed"), "kill job")
	if e.Error() != "kill job: signal failed" {
		t.Errorf("got %q", e.Error())
	}
}
