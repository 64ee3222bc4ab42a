// Package supervisor turns batches of raw signals into per-intent
// escalation actions while owning the hysteresis state of every intent.
//
// # Sharding
//
// State is partitioned into N shards by FNV-1a 64 of the intent id. Each
// shard has its own lock; there is no process-wide lock. A batch acquires
// each shard's lock at most once, and administrative operations (export,
// import) take shard locks one at a time in shard-index order.
//
// # Batch Ingest
//
//	sup := supervisor.New(8, arbiter.DefaultConfig(),
//	    supervisor.WithSourceProfiles(arbiter.DefaultSourceProfiles()),
//	    supervisor.WithMetrics(supervisor.NewMetrics(reg)),
//	)
//
//	actions := sup.Ingest(ctx, supervisor.NewBasicBuilder(), signals)
//	for _, a := range actions {
//	    if a.Escalation != arbiter.EscalationNone {
//	        // route a.IntentID to a critique pass
//	    }
//	}
//
// The returned actions are sorted by intent id. For a fixed batch and
// prior state the result is identical across runs and shard counts.
//
// # Snapshot and Restore
//
// Export returns every intent's counters sorted by id. Restore clears all
// shards and inserts the snapshot; RestoreMerge leaves intents absent from
// the snapshot untouched. Use package snapshot to encode a Snapshot in the
// ARB1 binary format.
//
// # Failure Model
//
// A panic raised while a shard lock is held (for example from an export
// predicate) poisons the shard. Every later operation touching that shard
// panics with ErrShardPoisoned. This is never recovered internally.
package supervisor
