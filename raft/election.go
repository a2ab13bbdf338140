package raft

import (
	"context"
	"sync/atomic"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// startElection transitions a Follower or Candidate into a new Candidate
// term and fans out RequestVote, mirroring bundoc/raft's startElection but
// driven through durable PersistentState and the transport.PeerSender
// capability instead of a direct RPCClient field.
func (n *Node) startElection() {
	n.mu.Lock()
	if n.role == Leader {
		n.mu.Unlock()
		return
	}

	term := n.state.CurrentTerm() + 1
	if err := n.state.SetTerm(term); err != nil {
		n.fatalLocked(err)
		n.mu.Unlock()
		return
	}
	if err := n.state.RecordVote(n.id); err != nil {
		n.fatalLocked(err)
		n.mu.Unlock()
		return
	}
	n.role = Candidate
	n.leaderHint = ""
	n.resetElectionTimerLocked()
	n.metrics.SetTerm(n.id, term)
	n.metrics.SetRole(n.id, n.role.String())
	n.metrics.IncElectionStarted(n.id)

	lastIndex := n.state.Log.LastIndex()
	lastTerm := n.state.Log.LastTerm()
	peers := append([]string(nil), n.peers...)
	n.logger.Info("starting election", "term", term)

	// A self-vote alone may already be a majority (the single-node cluster
	// case, where peers is empty): no RequestVote round-trip will ever
	// arrive to push the vote count over quorumSizeLocked, so check here
	// before fanning out.
	if 1 >= n.quorumSizeLocked() {
		n.becomeLeaderLocked()
		n.mu.Unlock()
		return
	}
	n.mu.Unlock()

	go n.runElection(term, lastIndex, lastTerm, peers)
}

// runElection fans RequestVote out concurrently and transitions to Leader
// the instant a strict majority (including self) is reached, without
// waiting for stragglers, per the spec's early-majority-return rule.
func (n *Node) runElection(term, lastIndex, lastTerm uint64, peers []string) {
	var votes int32 = 1 // self

	for _, peer := range peers {
		go func(p string) {
			ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RPCTimeout)
			defer cancel()

			req := wire.RequestVoteRequest{
				Term:         term,
				CandidateID:  n.id,
				LastLogIndex: lastIndex,
				LastLogTerm:  lastTerm,
			}
			reply, err := n.sender.SendRequestVote(ctx, p, req)
			if err != nil {
				return
			}

			n.mu.Lock()
			defer n.mu.Unlock()

			if n.observeTermLocked(reply.Term) {
				return
			}
			if n.role != Candidate || n.state.CurrentTerm() != term {
				return // election is stale
			}
			if !reply.VoteGranted {
				return
			}

			count := atomic.AddInt32(&votes, 1)
			if int(count) >= n.quorumSizeLocked() {
				n.becomeLeaderLocked()
			}
		}(peer)
	}
}

// becomeLeaderLocked transitions to Leader, initializes per-peer replication
// state, and appends the term's noop entry. Callers must hold n.mu.
func (n *Node) becomeLeaderLocked() {
	if n.role == Leader {
		return
	}
	n.role = Leader
	n.leaderHint = n.id
	n.committedInCurrentTerm = false
	if n.electionTimer != nil {
		n.electionTimer.Stop()
	}
	n.metrics.SetRole(n.id, n.role.String())
	n.logger.Info("became leader", "term", n.state.CurrentTerm())

	lastIndex := n.state.Log.LastIndex()
	n.nextIndex = make(map[string]uint64, len(n.peers))
	n.matchIndex = make(map[string]uint64, len(n.peers))
	n.peerState = make(map[string]*peerState, len(n.peers))
	for _, p := range n.peers {
		n.nextIndex[p] = lastIndex + 1
		n.matchIndex[p] = 0
		n.peerState[p] = &peerState{}
	}

	noop := wire.LogEntry{
		Term:  n.state.CurrentTerm(),
		Index: lastIndex + 1,
		Kind:  wire.EntryNoop,
	}
	if err := n.state.Log.Append([]wire.LogEntry{noop}); err != nil {
		n.fatalLocked(err)
		return
	}

	n.startHeartbeatLocked()
	n.triggerReplicationLocked()
}
