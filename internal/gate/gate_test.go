package gate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWaitNoConditionsReturnsImmediately(t *testing.T) {
	start := time.Now()
	if err := Wait(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("expected immediate return, took %v", time.Since(start))
	}
}

func TestWaitBlocksUntilDeadline(t *testing.T) {
	deadline := time.Now().Add(250 * time.Millisecond)
	start := time.Now()
	if err := Wait(context.Background(), &deadline, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 200*time.Millisecond {
		t.Errorf("expected wait to block past deadline, returned after %v", time.Since(start))
	}
}

func TestWaitBlocksUntilFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ready")

	done := make(chan error, 1)
	go func() {
		done <- Wait(context.Background(), nil, []string{path})
	}()

	select {
	case err := <-done:
		t.Fatalf("expected gate to block while file is absent, got err=%v", err)
	case <-time.After(150 * time.Millisecond):
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected gate to unblock once file appeared")
	}
}

func TestWaitCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	deadline := time.Now().Add(time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- Wait(ctx, &deadline, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected context cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Wait to return promptly after cancellation")
	}
}

func TestDeadlineCombinesMax(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	absolute := since.Add(time.Hour)
	duration := 2 * time.Hour

	got := Deadline(&absolute, &duration, since)
	want := since.Add(duration)
	if got == nil || !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeadlineNilWhenBothAbsent(t *testing.T) {
	if got := Deadline(nil, nil, time.Now()); got != nil {
		t.Errorf("expected nil deadline, got %v", got)
	}
}
