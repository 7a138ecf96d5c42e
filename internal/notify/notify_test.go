package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/jlog"
)

func testLogger() *jlog.Logger {
	return jlog.New(io.Discard, "notify-test")
}

func TestDispatchExecSink(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "fired")

	cfg := &config.Config{NotificationSinks: []config.Sink{
		{Name: "touch", Kind: "exec", Target: "cat > " + marker},
	}}
	d := New(cfg, testLogger())

	d.Dispatch(context.Background(), []string{"touch"}, Payload{
		JobID:     "job-1",
		Event:     EventRunCompletion,
		Timestamp: time.Now(),
	})

	if _, err := os.Stat(marker); err != nil {
		t.Fatalf("expected exec sink to run and write marker: %v", err)
	}
}

func TestDispatchWebhookSink(t *testing.T) {
	received := make(chan Payload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p Payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.Config{NotificationSinks: []config.Sink{
		{Name: "hook", Kind: "webhook", Target: srv.URL},
	}}
	d := New(cfg, testLogger())

	exitCode := 0
	d.Dispatch(context.Background(), []string{"hook"}, Payload{
		JobID:    "job-2",
		Event:    EventJobSuccess,
		ExitCode: &exitCode,
	})

	select {
	case p := <-received:
		if p.JobID != "job-2" || p.Event != EventJobSuccess {
			t.Errorf("unexpected payload: %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected webhook to be called")
	}
}

func TestDispatchUnresolvedSinkDoesNotPanic(t *testing.T) {
	d := New(&config.Config{}, testLogger())
	d.Dispatch(context.Background(), []string{"missing"}, Payload{JobID: "job-3", Event: EventRunFailure})
}
