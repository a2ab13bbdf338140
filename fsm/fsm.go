// Package fsm implements the state machine committed log entries are
// applied to: a simple string-key to byte-value mapping, the way bundoc's
// raft.StateMachine interface expected a caller-supplied Apply(cmd) to
// mutate the embedded document store. Here the domain is narrower (a single
// flat key/value map) so the applier lives in-tree rather than behind an
// interface seam.
package fsm

import (
	"sync"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// KV is a deterministic, idempotent-on-replay key/value state machine.
// Apply must only ever be called with entries in strictly increasing index
// order, once each; KV does not itself track lastApplied (the consensus
// core does) so a re-delivered index would double-apply.
type KV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New returns an empty KV state machine.
func New() *KV {
	return &KV{data: make(map[string][]byte)}
}

// Apply applies a single committed entry. EntryNoop is a no-op marker;
// EntryConfigSet writes Key -> Value.
func (k *KV) Apply(e wire.LogEntry) {
	if e.Kind != wire.EntryConfigSet {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[e.Key] = e.Value
}

// Get returns the current value for key, if any.
func (k *KV) Get(key string) ([]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	v, ok := k.data[key]
	return v, ok
}

// Len reports how many keys are currently set, mainly for tests.
func (k *KV) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.data)
}
