package raft

import "errors"

// ErrNotLeader is returned by client-facing calls on a node that isn't the
// current leader. Callers should retry at LeaderHint, if non-empty.
var ErrNotLeader = errors.New("raft: not leader")

// ErrProposalOverwritten is returned to a pending Propose call whose entry
// was truncated from the log by a later leader before it committed.
var ErrProposalOverwritten = errors.New("raft: proposal overwritten, retry")

// ErrShuttingDown is returned by calls made after Stop has been invoked.
var ErrShuttingDown = errors.New("raft: node is shutting down")

// ErrNotReady is returned by Read(consistent=true) when the leader hasn't
// yet committed an entry in its current term (its initial noop).
var ErrNotReady = errors.New("raft: leader has not committed in its current term yet")
