// Package notify resolves jobman's six notify-on-event lifecycle hooks
// against the sinks configured in internal/config, and dispatches a
// structured payload to each, swallowing delivery failures into the
// logger so a broken notification never fails a job.
//
// Grounded on tjper-teleport's internal/log.Logger usage pattern (package-
// level *log.Logger, Errorf on failure paths that must not propagate) and
// on nandlabs-golly's idea of a small sink registry keyed by name, adapted
// here to jobman's exec/webhook sink kinds.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/jlog"
)

// Event identifies one of jobman's six lifecycle notification kinds.
type Event string

const (
	EventRunCompletion Event = "run_completion"
	EventRunSuccess    Event = "run_success"
	EventRunFailure    Event = "run_failure"
	EventJobCompletion Event = "job_completion"
	EventJobSuccess    Event = "job_success"
	EventJobFailure    Event = "job_failure"
)

// Payload is the structured message delivered to every resolved sink.
type Payload struct {
	JobID     string    `json:"job_id"`
	Attempt   *int      `json:"attempt,omitempty"`
	Event     Event     `json:"event"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher resolves a callback name against the configured sinks and
// delivers a Payload to it.
type Dispatcher struct {
	sinks map[string]config.Sink
	log   *jlog.Logger
}

// New builds a Dispatcher from the notification sinks declared in cfg.
func New(cfg *config.Config, log *jlog.Logger) *Dispatcher {
	d := &Dispatcher{sinks: make(map[string]config.Sink, len(cfg.NotificationSinks)), log: log}
	for _, s := range cfg.NotificationSinks {
		d.sinks[s.Name] = s
	}
	return d
}

// Dispatch delivers payload to every callback in callbacks. Resolution or
// delivery failures are logged and otherwise ignored: a notification
// failure must never fail the job.
func (d *Dispatcher) Dispatch(ctx context.Context, callbacks []string, payload Payload) {
	for _, name := range callbacks {
		sink, ok := d.sinks[name]
		if !ok {
			d.log.Warnf("notify: unresolved sink %q for job %s", name, payload.JobID)
			continue
		}
		if err := d.deliver(ctx, sink, payload); err != nil {
			d.log.Errorf("notify: deliver to sink %q for job %s: %v", name, payload.JobID, err)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink config.Sink, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	switch sink.Kind {
	case "exec":
		cmd := exec.CommandContext(ctx, "sh", "-c", sink.Target)
		cmd.Stdin = bytes.NewReader(body)
		return cmd.Run()
	case "webhook":
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sink.Target, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	default:
		return fmt.Errorf("unsupported sink kind %q", sink.Kind)
	}
}
