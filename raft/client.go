package raft

import (
	"context"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// ProposeResult is returned by a successful Propose.
type ProposeResult struct {
	Index uint64
	Term  uint64
}

// ReadResult is returned by a successful Read.
type ReadResult struct {
	Value []byte
	Found bool
}

// Propose appends (kind, key, value) to the log at the next index in the
// leader's current term and waits for it to be applied. It is only valid to
// call on the current leader; non-leaders return ErrNotLeader wrapping the
// current LeaderHint.
func (n *Node) Propose(ctx context.Context, kind wire.EntryKind, key string, value []byte) (*ProposeResult, error) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if n.role != Leader {
		hint := n.leaderHint
		n.mu.Unlock()
		return nil, notLeaderError(hint)
	}

	term := n.state.CurrentTerm()
	index := n.state.Log.LastIndex() + 1
	entry := wire.LogEntry{Term: term, Index: index, Kind: kind, Key: key, Value: value}

	if err := n.state.Log.Append([]wire.LogEntry{entry}); err != nil {
		n.fatalLocked(err)
		n.mu.Unlock()
		return nil, err
	}

	w := &proposalWaiter{term: term, done: make(chan error, 1)}
	n.waiters[index] = w
	n.triggerReplicationLocked()
	n.mu.Unlock()

	select {
	case err := <-w.done:
		if err != nil {
			return nil, err
		}
		return &ProposeResult{Index: index, Term: term}, nil
	case <-ctx.Done():
		n.mu.Lock()
		delete(n.waiters, index)
		n.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Read serves a client read. A strongly consistent read is only served by
// the leader once it has committed an entry in its own current term (the
// initial noop, at minimum); a caller may opt into a possibly-stale read
// from any node by passing consistent=false.
func (n *Node) Read(key string, consistent bool) (*ReadResult, error) {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if consistent {
		if n.role != Leader {
			hint := n.leaderHint
			n.mu.Unlock()
			return nil, notLeaderError(hint)
		}
		if !n.committedInCurrentTerm {
			n.mu.Unlock()
			return nil, ErrNotReady
		}
	}
	n.mu.Unlock()

	value, found := n.machine.Get(key)
	return &ReadResult{Value: value, Found: found}, nil
}

// ClusterState reports this node's current view of the cluster, for
// GetClusterState.
func (n *Node) ClusterState() wire.ClusterStateReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	nodes := make([]string, 0, len(n.peers)+1)
	nodes = append(nodes, n.id)
	nodes = append(nodes, n.peers...)

	leaderID := n.leaderHint
	if n.role == Leader {
		leaderID = n.id
	}
	return wire.ClusterStateReply{
		LeaderID:    leaderID,
		CurrentTerm: n.state.CurrentTerm(),
		Nodes:       nodes,
	}
}

// notLeaderErr carries the current leader hint alongside ErrNotLeader so
// callers can extract it with errors.As without string-parsing.
type notLeaderErr struct {
	hint string
}

func (e *notLeaderErr) Error() string {
	if e.hint == "" {
		return ErrNotLeader.Error()
	}
	return ErrNotLeader.Error() + ": try " + e.hint
}

func (e *notLeaderErr) Unwrap() error { return ErrNotLeader }

// Hint returns the leader hint carried by a NotLeader error, if any.
func (e *notLeaderErr) Hint() string { return e.hint }

func notLeaderError(hint string) error {
	return &notLeaderErr{hint: hint}
}
