package cli

import (
	"context"
	"os"

	"github.com/ryancswallace/jobman/internal/config"
	"github.com/ryancswallace/jobman/internal/gc"
	"github.com/ryancswallace/jobman/internal/hostid"
	"github.com/ryancswallace/jobman/internal/jlog"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
	"github.com/ryancswallace/jobman/internal/ops"
	"github.com/ryancswallace/jobman/internal/store"
)

// app bundles the collaborators every subcommand (other than reset,
// install-completions and the hidden reexec entrypoints) needs: the
// resolved configuration, the durable
// store scoped to this host, an Ops handle over it, and a logger/display
// pair reflecting the global flags.
type app struct {
	cfg    *config.Config
	hostID string
	store  *store.Store
	ops    *ops.Ops
	log    *jlog.Logger
	disp   *display
}

// newApp loads configuration, derives the host id, and opens the store,
// wiring an Ops over it. Every subcommand but install-completions and reset
// uses this; install-completions operates only on the user's shell rc file
// and skips it entirely, and reset loads the configuration and opens the
// store itself.
func newApp(ctx context.Context, disp *display, debug bool) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, func() {}, err
	}

	hid, err := hostid.Get()
	if err != nil {
		return nil, func() {}, jobmanerr.Wrap(jobmanerr.OS, err, "derive host id")
	}

	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, func() {}, jobmanerr.Wrap(jobmanerr.Internal, err, "open store")
	}

	log := jlog.New(logWriter(debug), "jobman: ")

	o := ops.New(s, hid, cfg.DBPath, cfg.StdioPath)
	gc.SweepAsync(ctx, o, cfg.GCExpiry, log)

	a := &app{cfg: cfg, hostID: hid, store: s, ops: o, log: log, disp: disp}
	cleanup := func() { s.Close() }
	return a, cleanup, nil
}

// logWriter picks stderr for -d/--debug runs and the null device
// otherwise, so jlog's Warnf/Errorf calls are visible only when asked for.
func logWriter(debug bool) *os.File {
	if debug {
		return os.Stderr
	}
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return os.Stderr
	}
	return f
}
