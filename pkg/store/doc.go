// Package store persists supervisor snapshots as numbered generations.
//
// A Store encodes snapshots in the ARB1 format and hands the bytes to a
// Backend. MemoryBackend keeps generations in process; SQLiteBackend keeps
// them in a SQLite database through either the pure Go driver
// (modernc.org/sqlite, driver name "sqlite") or the cgo driver
// (github.com/mattn/go-sqlite3, driver name "sqlite3").
//
// Saving is always explicit:
//
//	st, err := store.Open(&cfg.Store)
//	gen, err := st.Checkpoint(ctx, sup)
//	...
//	gen, stats, err := st.Recover(ctx, sup, false)
//
// A Pruner removes old generations and a Scheduler runs it on a cron
// schedule.
package store
