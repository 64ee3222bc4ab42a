package supervisor

import (
	"errors"
	"fmt"
	"sync"

	"nsc-hq/arbiter/pkg/arbiter"
)

// ErrShardPoisoned is the panic value raised when a shard is used after a
// previous holder panicked while holding its lock. The shard may be half
// mutated, so the process is expected to stop rather than continue.
var ErrShardPoisoned = errors.New("supervisor shard poisoned")

const (
	fnvOffsetBasis uint64 = 0xcbf29ce484222325
	fnvPrime       uint64 = 0x100000001b3
)

// fnv1a64 is FNV-1a over the bytes of s. It must stay stable across
// releases: shard assignment depends only on it.
func fnv1a64(s string) uint64 {
	h := fnvOffsetBasis
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// ShardIndex maps intentID to a shard in [0, shardCount). It is a pure
// function of its arguments; shardCount below 1 is treated as 1.
func ShardIndex(intentID string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	return int(fnv1a64(intentID) % uint64(shardCount))
}

// shard is one independently lockable partition of the intent state map.
type shard struct {
	index    int
	mu       sync.Mutex
	poisoned bool
	states   map[string]arbiter.HysteresisState
}

func newShard(index int) *shard {
	return &shard{
		index:  index,
		states: make(map[string]arbiter.HysteresisState),
	}
}

// acquire locks the shard, panicking if it was poisoned.
func (sh *shard) acquire() {
	sh.mu.Lock()
	if sh.poisoned {
		sh.mu.Unlock()
		panic(fmt.Errorf("%w: shard %d", ErrShardPoisoned, sh.index))
	}
}

// release unlocks the shard. It must be deferred directly after acquire so
// that a panic raised while holding the lock poisons the shard before the
// panic continues.
func (sh *shard) release() {
	if r := recover(); r != nil {
		sh.poisoned = true
		sh.mu.Unlock()
		panic(r)
	}
	sh.mu.Unlock()
}

// isPoisoned reports whether the shard was poisoned, without panicking.
func (sh *shard) isPoisoned() bool {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.poisoned
}
