package raft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

func TestProposeReplicatesAndApplies(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	_, err := leader.Propose(context.Background(), wire.EntryConfigSet, "cluster.name", []byte("x"))
	require.NoError(t, err)

	for _, n := range tc.nodes {
		require.Eventually(t, func() bool {
			v, ok := n.machine.Get("cluster.name")
			return ok && string(v) == "x"
		}, time.Second, 10*time.Millisecond, "node %s never applied the committed entry", n.id)
	}
}

func TestProposeOnFollowerReturnsNotLeader(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	var follower *Node
	for _, n := range tc.nodes {
		if n != leader {
			follower = n
			break
		}
	}
	require.NotNil(t, follower)

	_, err := follower.Propose(context.Background(), wire.EntryConfigSet, "k", []byte("v"))
	require.ErrorIs(t, err, ErrNotLeader)
}

func TestReadConsistentRequiresLeaderCommitInCurrentTerm(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	// Shortly after election the noop should commit, making consistent
	// reads servable.
	require.Eventually(t, func() bool {
		_, err := leader.Read("anything", true)
		return err == nil || err == ErrNotReady
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := leader.Read("anything", true)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	res, err := leader.Read("absent-key", true)
	require.NoError(t, err)
	require.False(t, res.Found)
}

func TestGetClusterState(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	for _, n := range tc.nodes {
		state := n.ClusterState()
		require.Equal(t, leader.id, state.LeaderID)
		require.Len(t, state.Nodes, 3)
	}
}
