// Package gc implements jobman's background log garbage collector: a
// best-effort sweep, spawned at the start of any inspection or run
// operation, that purges Complete jobs older than the configured expiry
// horizon. Failures are never surfaced to the caller.
package gc

import (
	"context"
	"time"

	"github.com/ryancswallace/jobman/internal/jlog"
	"github.com/ryancswallace/jobman/internal/ops"
)

// Sweep runs ops.Purge against every Complete job whose start_time is
// older than now-expiry, with Metadata left false (logs only, not store
// rows). Errors are logged, never returned: a failure to GC is never
// surfaced to the caller.
func Sweep(ctx context.Context, o *ops.Ops, expiry time.Duration, log *jlog.Logger) {
	until := time.Now().Add(-expiry)
	_, err := o.Purge(ctx, ops.PurgeFilter{All: true, Until: &until})
	if err != nil {
		log.Warnf("log gc: sweep failed: %v", err)
	}
}

// SweepAsync launches Sweep in its own goroutine, for callers that must not
// block their own operation on GC.
func SweepAsync(ctx context.Context, o *ops.Ops, expiry time.Duration, log *jlog.Logger) {
	go Sweep(ctx, o, expiry, log)
}
