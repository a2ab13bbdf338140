package raft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// TestFollowersCatchUpToLeaderLog checks that, after a run of proposals,
// every node's log reaches the leader's last index. The conflictIndex
// jump-back hint itself is covered by the AppendEntries tests in
// rpc_test.go.
func TestFollowersCatchUpToLeaderLog(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	for i := 0; i < 20; i++ {
		_, err := leader.Propose(context.Background(), wire.EntryConfigSet, "k", []byte("v"))
		require.NoError(t, err)
	}

	leader.mu.Lock()
	lastIndex := leader.state.Log.LastIndex()
	leader.mu.Unlock()
	require.Greater(t, lastIndex, uint64(1))

	for _, n := range tc.nodes {
		require.Eventually(t, func() bool {
			n.mu.Lock()
			defer n.mu.Unlock()
			return n.state.Log.LastIndex() == lastIndex
		}, 2*time.Second, 10*time.Millisecond, "node %s never caught up to leader's log", n.id)
	}
}

func TestCommitDoesNotCountReplicasFromPriorTerm(t *testing.T) {
	// A leader must only advance commitIndex by counting replicas of an
	// entry from ITS OWN current term (I4/I7). Construct that directly:
	// a leader whose peers both replicated an index whose term is older than
	// currentTerm must not consider that index committed via replica count
	// alone.
	n := newBareNode(t, "leader", []string{"p1", "p2"})
	require.NoError(t, n.state.SetTerm(3))
	require.NoError(t, n.state.Log.Append([]wire.LogEntry{
		{Term: 2, Index: 1, Kind: wire.EntryConfigSet, Key: "old"},
		{Term: 3, Index: 2, Kind: wire.EntryNoop},
	}))

	n.mu.Lock()
	n.role = Leader
	n.matchIndex = map[string]uint64{"p1": 1, "p2": 1} // both replicated the term-2 entry
	n.commitIndex = 0
	n.maybeAdvanceCommitLocked()
	commit := n.commitIndex
	n.mu.Unlock()

	require.Equal(t, uint64(0), commit, "must not commit an entry from a prior term via replica count alone")
}

func TestCommitAdvancesOnceCurrentTermEntryReplicated(t *testing.T) {
	n := newBareNode(t, "leader", []string{"p1", "p2"})
	require.NoError(t, n.state.SetTerm(3))
	require.NoError(t, n.state.Log.Append([]wire.LogEntry{
		{Term: 2, Index: 1, Kind: wire.EntryConfigSet, Key: "old"},
		{Term: 3, Index: 2, Kind: wire.EntryNoop},
	}))

	n.mu.Lock()
	n.role = Leader
	n.matchIndex = map[string]uint64{"p1": 2, "p2": 0}
	n.commitIndex = 0
	n.maybeAdvanceCommitLocked()
	commit := n.commitIndex
	n.mu.Unlock()

	require.Equal(t, uint64(2), commit)
}
