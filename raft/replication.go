package raft

import (
	"context"
	"time"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// tryBegin claims the single in-flight slot for a peer, enforcing the "at
// most one in-flight AppendEntries per peer" ordering discipline.
func (ps *peerState) tryBegin() bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.inFlight {
		return false
	}
	ps.inFlight = true
	return true
}

func (ps *peerState) end() {
	ps.mu.Lock()
	ps.inFlight = false
	ps.mu.Unlock()
}

// startHeartbeatLocked arms the fixed-interval ticker that re-triggers
// replication to every peer whose in-flight slot is idle. Callers must hold
// n.mu; only valid to call while n.role == Leader.
func (n *Node) startHeartbeatLocked() {
	if n.heartbeatTicker != nil {
		n.heartbeatTicker.Stop()
	}
	n.heartbeatTicker = time.NewTicker(n.cfg.HeartbeatInterval)
	ticker := n.heartbeatTicker
	term := n.state.CurrentTerm()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ticker.C:
				n.mu.Lock()
				if n.role != Leader || n.state.CurrentTerm() != term {
					n.mu.Unlock()
					return
				}
				n.triggerReplicationLocked()
				n.mu.Unlock()
			case <-n.stopCh:
				return
			}
		}
	}()
}

// triggerReplicationLocked spawns a replication pump for every peer not
// already mid-flight. In a single-node cluster there is no peer reply to
// drive commit advancement, so it advances commitIndex directly. Callers
// must hold n.mu and n.role must be Leader.
func (n *Node) triggerReplicationLocked() {
	if len(n.peers) == 0 {
		n.maybeAdvanceCommitLocked()
		return
	}
	term := n.state.CurrentTerm()
	for _, p := range n.peers {
		ps := n.peerState[p]
		n.wg.Add(1)
		go func(peer string, ps *peerState) {
			defer n.wg.Done()
			n.replicationPump(peer, term, ps)
		}(p, ps)
	}
}

// replicationPump drives AppendEntries to a single peer until it is caught
// up or stops being leader of term. It claims the peer's single in-flight
// slot for its entire run and releases it on return.
func (n *Node) replicationPump(peer string, term uint64, ps *peerState) {
	if !ps.tryBegin() {
		return
	}
	defer ps.end()

	attempts := 0
	for {
		n.mu.Lock()
		if n.role != Leader || n.state.CurrentTerm() != term {
			n.mu.Unlock()
			return
		}
		next := n.nextIndex[peer]
		prevIndex := next - 1
		prevTerm := n.state.Log.TermAt(prevIndex)
		entries := n.state.Log.Range(next, next+uint64(n.cfg.MaxEntriesPerAppend))
		leaderCommit := n.commitIndex
		req := wire.AppendEntriesRequest{
			Term:         term,
			LeaderID:     n.id,
			PrevLogIndex: prevIndex,
			PrevLogTerm:  prevTerm,
			Entries:      entries,
			LeaderCommit: leaderCommit,
		}
		n.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RPCTimeout)
		reply, err := n.sender.SendAppendEntries(ctx, peer, req)
		cancel()

		if err != nil {
			n.metrics.IncAppendEntriesSent(n.id, false)
			attempts++
			if attempts > n.cfg.MaxAppendRetries {
				return // idle until the next heartbeat tick
			}
			time.Sleep(n.cfg.AppendRetryInterval)
			continue
		}
		attempts = 0
		n.metrics.IncAppendEntriesSent(n.id, true)

		n.mu.Lock()
		if n.observeTermLocked(reply.Term) {
			n.mu.Unlock()
			return
		}
		if n.role != Leader || n.state.CurrentTerm() != term {
			n.mu.Unlock()
			return
		}

		if reply.Success {
			matched := prevIndex + uint64(len(entries))
			if matched > n.matchIndex[peer] {
				n.matchIndex[peer] = matched
			}
			n.nextIndex[peer] = matched + 1
			n.maybeAdvanceCommitLocked()
			moreToSend := n.state.Log.LastIndex() >= n.nextIndex[peer]
			n.mu.Unlock()
			if moreToSend {
				continue
			}
			return
		}

		if reply.ConflictIndex > 0 {
			n.nextIndex[peer] = reply.ConflictIndex
		} else if n.nextIndex[peer] > 1 {
			n.nextIndex[peer]--
		}
		n.mu.Unlock()
	}
}

// maybeAdvanceCommitLocked implements the Commit Rule (I7): commitIndex may
// advance to N only if a majority (including self) have matchIndex >= N and
// the entry at N was created in the leader's current term. Callers must
// hold n.mu and n.role must be Leader.
func (n *Node) maybeAdvanceCommitLocked() {
	term := n.state.CurrentTerm()
	lastIndex := n.state.Log.LastIndex()

	for N := lastIndex; N > n.commitIndex; N-- {
		if n.state.Log.TermAt(N) != term {
			continue
		}
		count := 1 // self
		for _, p := range n.peers {
			if n.matchIndex[p] >= N {
				count++
			}
		}
		if count >= n.quorumSizeLocked() {
			n.commitIndex = N
			n.committedInCurrentTerm = true
			n.metrics.SetCommitIndex(n.id, N)
			n.wakeApplier()
			return
		}
	}
}

// runApplier is the single sequential loop advancing lastApplied toward
// commitIndex, one entry at a time, in index order.
func (n *Node) runApplier() {
	defer n.wg.Done()
	for {
		select {
		case <-n.stopCh:
			return
		case <-n.applyCh:
		}
		n.applyCommitted()
	}
}

func (n *Node) applyCommitted() {
	n.mu.Lock()
	var toApply []wire.LogEntry
	for n.lastApplied < n.commitIndex {
		idx := n.lastApplied + 1
		e, ok := n.state.Log.Get(idx)
		if !ok {
			break
		}
		toApply = append(toApply, e)
		n.lastApplied = idx
	}
	n.metrics.SetLastApplied(n.id, n.lastApplied)

	var resolved []*proposalWaiter
	for _, e := range toApply {
		if w, ok := n.waiters[e.Index]; ok {
			delete(n.waiters, e.Index)
			if w.term == e.Term {
				resolved = append(resolved, w)
			} else {
				w.done <- ErrProposalOverwritten
			}
		}
	}
	n.mu.Unlock()

	for _, e := range toApply {
		n.machine.Apply(e)
	}
	for _, w := range resolved {
		w.done <- nil
	}
}
