package cli

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	got, err := parseTime("14:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	want := time.Date(now.Year(), now.Month(), now.Day(), 14, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseTimeFullDate(t *testing.T) {
	got, err := parseTime("2026-01-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 2 {
		t.Errorf("got %v", got)
	}
}

func TestParseTimeInvalid(t *testing.T) {
	if _, err := parseTime("not-a-time"); err == nil {
		t.Errorf("expected error for invalid time")
	}
}
