// Package raft implements the Raft consensus algorithm over a replicated
// key/value state machine: leader election, log replication, persistent
// state, and commit-index advancement. It generalizes the sketch in the
// sibling bundoc/raft package (role state machine, timer-driven election,
// lock-guarded node state, goroutine-per-RPC fan-out) into a complete
// engine backed by durable storage (store.LogStore, store.PersistentState)
// and a pluggable transport (transport.PeerSender / transport.InboundSink).
//
// Invariants a correct Node preserves at all times:
//
//	I1 Election Safety:       at most one leader per term.
//	I2 Leader Append-Only:    a leader never overwrites or deletes its own entries.
//	I3 Log Matching:          entries agreeing on (index, term) agree on everything before them.
//	I4 Leader Completeness:   an entry committed in term T is present in every later leader's log.
//	I5 State Machine Safety:  no two nodes apply different entries at the same index.
//	I6 Term Monotonicity:     observing a higher term updates currentTerm, clears votedFor,
//	                          and steps down to Follower before any further processing.
//	I7 Commit Rule:           commitIndex only advances to N when a majority (including self)
//	                          has matchIndex >= N AND termAt(N) == currentTerm.
package raft
