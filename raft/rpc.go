package raft

import (
	"github.com/kartikbazzad/raftkv/raft/wire"
)

// RequestVote implements transport.InboundSink. It is the receiver side of
// the election driver in election.go.
func (n *Node) RequestVote(req wire.RequestVoteRequest) wire.RequestVoteReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.observeTermLocked(req.Term)

	reply := wire.RequestVoteReply{
		Term:    n.state.CurrentTerm(),
		VoterID: n.id,
	}
	if req.Term < n.state.CurrentTerm() {
		return reply
	}

	upToDate := req.LastLogTerm > n.state.Log.LastTerm() ||
		(req.LastLogTerm == n.state.Log.LastTerm() && req.LastLogIndex >= n.state.Log.LastIndex())

	votedFor := n.state.VotedFor()
	if (votedFor == "" || votedFor == req.CandidateID) && upToDate {
		if err := n.state.RecordVote(req.CandidateID); err != nil {
			n.fatalLocked(err)
			return reply
		}
		n.resetElectionTimerLocked()
		reply.VoteGranted = true
		n.logger.Info("granted vote", "candidate", req.CandidateID, "term", req.Term)
	}
	return reply
}

// AppendEntries implements transport.InboundSink. It performs the
// consistency check, truncation/append, and commit-index advancement
// described for followers.
func (n *Node) AppendEntries(req wire.AppendEntriesRequest) wire.AppendEntriesReply {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.observeTermLocked(req.Term)

	reply := wire.AppendEntriesReply{
		Term:       n.state.CurrentTerm(),
		FollowerID: n.id,
	}
	if req.Term < n.state.CurrentTerm() {
		return reply
	}

	// A valid leader in >= our term: stay/become Follower, recognize it.
	if n.role != Follower {
		n.role = Follower
		n.metrics.SetRole(n.id, n.role.String())
	}
	n.leaderHint = req.LeaderID
	n.resetElectionTimerLocked()

	log := n.state.Log

	if req.PrevLogIndex > 0 {
		if log.LastIndex() < req.PrevLogIndex {
			reply.ConflictIndex = log.LastIndex() + 1
			return reply
		}
		if t := log.TermAt(req.PrevLogIndex); t != req.PrevLogTerm {
			reply.ConflictIndex = firstIndexOfTerm(log, req.PrevLogIndex, t)
			return reply
		}
	}

	for _, e := range req.Entries {
		existing, found := log.Get(e.Index)
		switch {
		case found && existing.Term != e.Term:
			if err := log.TruncateFrom(e.Index); err != nil {
				n.fatalLocked(err)
				return reply
			}
			n.failWaitersFromLocked(e.Index)
			if err := log.Append([]wire.LogEntry{e}); err != nil {
				n.fatalLocked(err)
				return reply
			}
		case !found:
			if err := log.Append([]wire.LogEntry{e}); err != nil {
				n.fatalLocked(err)
				return reply
			}
		default:
			// duplicate (same index, same term): no-op
		}
	}

	if req.LeaderCommit > n.commitIndex {
		lastNew := req.PrevLogIndex + uint64(len(req.Entries))
		if req.LeaderCommit < lastNew {
			n.commitIndex = req.LeaderCommit
		} else {
			n.commitIndex = lastNew
		}
		n.metrics.SetCommitIndex(n.id, n.commitIndex)
		n.wakeApplier()
	}

	reply.Success = true
	return reply
}

// firstIndexOfTerm walks backward from index while the local log still
// shows term t, returning the first index of that conflicting term. This is
// the jump-back hint a leader uses to skip many indices at once rather than
// decrementing nextIndex one at a time.
func firstIndexOfTerm(log interface {
	TermAt(uint64) uint64
}, index uint64, t uint64) uint64 {
	i := index
	for i > 1 && log.TermAt(i-1) == t {
		i--
	}
	return i
}

// failWaitersFromLocked resolves ErrProposalOverwritten for every pending
// waiter whose index is being truncated away. Only meaningful on a node
// that was recently a leader with outstanding client waiters; harmless
// no-op otherwise. Callers must hold n.mu.
func (n *Node) failWaitersFromLocked(from uint64) {
	for idx, w := range n.waiters {
		if idx >= from {
			w.done <- ErrProposalOverwritten
			delete(n.waiters, idx)
		}
	}
}
