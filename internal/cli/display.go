package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// displayMode selects how an app renders its results: pretty, plain, or
// structured JSON.
type displayMode int

const (
	displayPretty displayMode = iota
	displayPlain
	displayJSON
)

// jsonResult is the structured envelope JSON mode emits: `{result, message}`.
type jsonResult struct {
	Result  string      `json:"result"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// display renders CLI output according to the app's mode, honoring quiet
// (which suppresses everything but JSON and error output).
type display struct {
	mode   displayMode
	quiet  bool
	stdout io.Writer
	stderr io.Writer
}

// Line prints one plain informational line to stdout. It prints nothing in
// quiet mode or in JSON mode.
func (d *display) Line(format string, args ...interface{}) {
	if d.mode == displayJSON {
		return
	}
	if d.quiet {
		return
	}
	fmt.Fprintf(d.stdout, format+"\n", args...)
}

// Data prints a successful structured result. In JSON mode it always
// emits a `{result: "ok", data: ...}` envelope, ignoring quiet.
func (d *display) Data(data interface{}) {
	if d.mode == displayJSON {
		d.writeJSON(jsonResult{Result: "ok", Data: data})
		return
	}
	if d.quiet {
		return
	}
	fmt.Fprintln(d.stdout, data)
}

// Error renders a failure, prefixed with "ERROR!" in pretty/plain modes,
// or as a `{result: "error", ...}` JSON envelope. Error output is never
// suppressed by quiet.
func (d *display) Error(err error) {
	if d.mode == displayJSON {
		d.writeJSON(jsonResult{Result: "error", Message: err.Error()})
		return
	}
	fmt.Fprintf(d.stderr, "ERROR! %s\n", err.Error())
}

func (d *display) writeJSON(r jsonResult) {
	enc := json.NewEncoder(d.stdout)
	enc.Encode(r)
}
