package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// the threshold. Useful as a liveness check against goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		count := runtime.NumGoroutine()
		if count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck reports unhealthy when any recorded GC stop-the-world
// pause exceeds the threshold. Catches memory pressure before the OOM
// killer does.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// StalenessCheck reports unhealthy when the monitored value has not been
// refreshed within maxAge. fetchedAt returns the last refresh time and
// whether any refresh has happened; before the first refresh the check
// passes, since the initial load is covered by readiness gating instead.
func StalenessCheck(maxAge time.Duration, fetchedAt func() (time.Time, bool)) CheckFunc {
	return func(_ context.Context) error {
		at, ok := fetchedAt()
		if !ok {
			return nil
		}
		if age := time.Since(at); age > maxAge {
			return errors.Errorf("value is stale: refreshed %s ago, max %s", age, maxAge)
		}
		return nil
	}
}
