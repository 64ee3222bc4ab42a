// Package health runs component checks for the arbiter.
//
// A Checker holds named check functions and runs them concurrently, each
// with its own timeout. The arbiter registers checks for the snapshot
// store, the supervisor shards and the loaded configuration:
//
//	checker := health.New(2 * time.Second)
//	checker.Register("store", func(ctx context.Context) error {
//	    _, err := st.List(ctx)
//	    return err
//	})
//	report := checker.Run(ctx)
//	if !report.Healthy() {
//	    return report.Err()
//	}
//
// # Report
//
// Run returns a Report whose status is "healthy" when every check passed
// and "degraded" otherwise. Results are sorted by check name:
//
//	{
//	    "status": "degraded",
//	    "results": [
//	        {"name": "config", "status": "ok", "duration_ms": 0},
//	        {"name": "store", "status": "failed", "message": "database is locked", "duration_ms": 3}
//	    ],
//	    "timestamp": "2026-10-19T10:30:00Z"
//	}
//
// A check that does not return before its timeout is reported with status
// "timeout". The check keeps running in the background but its result is
// discarded.
package health
